// package actionfile persists tracked action records.
//
// A file is a versioned header followed by length-prefixed records encoded by a [Codec].
// The whole file is rewritten on every change through a temporary file and a rename, and a
// [Writer] serializes those rewrites on a single goroutine so callers never wait on disk I/O.
package actionfile
