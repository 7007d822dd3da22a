// Package compress implements the row decompressors for sas7bdat's two
// proprietary compression schemes.
//
// # Overview
//
// A sas7bdat file declares at most one compression scheme for the whole
// dataset, identified by a literal embedded in the first column-text
// subheader:
//
//   - "SASYZCRL" — SAS's own run-length scheme (RLE): a stream of control
//     bytes whose high nibble selects an opcode (copy literal run, fill
//     with one repeated byte, fill with spaces/nulls/'@', repeat next byte
//     n times).
//   - "SASYZCR2" — Ross Data Compression (RDC): a bit-prefixed stream where
//     each of 16 bits preceding a block of items selects literal-copy vs.
//     marker, and markers further subdivide into short-RLE, one/two/three
//     -byte markers each encoding either a fill or a back-reference copy.
//
// Both schemes only ever appear on a per-row basis: a row's bytes on the
// page are compressed independently, so DecompressRow operates on one row's
// compressed span at a time rather than the whole page.
//
// # Architecture
//
// The package exposes a single RowDecompressor interface (see codec.go).
// Unlike the teacher's symmetric Compressor/Decompressor/Codec split, this
// package has no Compressor: writing sas7bdat files is out of scope, so
// only the decompression half of each scheme is implemented.
//
// NewDecompressor selects the concrete implementation from
// format.CompressionType, including CompressionNone (see noop.go), so
// every compression type maps to a RowDecompressor. The reader still checks
// for CompressionNone before calling it, and reads uncompressed rows
// directly.
package compress
