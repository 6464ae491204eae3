/*
 * Copyright 2025 gRPC authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package fdtransport hands a region's file descriptor to a child
// process the systemd socket-activation way: the parent opens the
// descriptor starting at fd 3 and exports LISTEN_FDS / LISTEN_FDNAMES
// so the child can recover it without any IPC beyond
// the exec(2) itself.
//
// Publish is the parent side: it appends the descriptor to an
// exec.Cmd's ExtraFiles and sets the environment the child expects.
// Consume is the child side: it validates the environment once per
// process and returns the descriptor by name.
package fdtransport
