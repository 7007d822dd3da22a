// Package header parses the 288-byte-or-longer leading header of a
// sas7bdat file: the magic number, the word-width and byte-order flags
// that govern every offset downstream of it, and the file-level
// metadata (dataset name, creation/modification timestamps, page
// geometry, and the producing platform's version strings).
package header
