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

// Package ring implements the queue strategy: a single writer appends
// variable-length records into a control ring of fixed-size slots
// indexing a user-data arena, while any number of concurrent readers
// extract consistent records without ever blocking the writer.
//
// Each slot carries a seqlock-style sequence number: odd means a write
// is in progress, even means committed, zero means never written. A
// reader takes an optimistic snapshot of a slot's fields, copies the
// payload bytes the slot pointed to, then re-checks the sequence number
// and the payload checksum before trusting what it read. Any mismatch
// is reported as Stale, never as corruption — the writer is free to
// reuse a slot at any time and the protocol is built to make that safe
// to observe, not to prevent.
//
// The writer side (Reserve, Payload, Commit, Abort) never blocks and
// never retries: it is wait-free. The reader side (Scan, ReadSlot) may
// retry a bounded number of times against a fast writer cycling the
// same slot; it is obstruction-free, not wait-free, by design.
package ring
