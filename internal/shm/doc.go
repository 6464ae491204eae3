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

// Package shm owns the memory layout of the region shared between a
// single writer and any number of readers: an anonymous or path-backed
// file, memory-mapped, partitioned into a header, a control ring and a
// user-data arena.
//
// This package only knows about bytes and offsets. The seqlock protocol
// that publishes and reads records through the control ring lives in
// internal/ring; this package just gets the region mapped and the header
// fields validated.
package shm
