// Package snapshot periodically walks a shared region's control ring
// and appends a self-describing frame to an append-only backing file,
// and restores a region's ring from the most recent valid frame in
// that file on startup.
//
// A backing file is a concatenation of frames, newest last. Restore
// scans from the end of the file backwards, accepting the first frame
// whose magic and checksum both validate; any trailing garbage from a
// crash mid-write is simply skipped in favor of the frame before it.
package snapshot
