package compress

import (
	"fmt"

	"github.com/go-sas/sas7bdat/errs"
	"github.com/go-sas/sas7bdat/internal/pool"
)

// RDCDecompressor expands rows compressed with Ross Data Compression,
// signature "SASYZCR2" (format.RDCLiteral).
//
// The scheme reads two prefix bytes as 16 bits, MSB first; each bit governs
// one subsequent item. A zero bit means "copy the next source byte
// literally". A one bit means the next bytes form a marker, classified in
// this priority order:
//
//  1. short RLE: first byte in 0x00-0x05, fills next byte repeated
//     (first byte + 3) times
//  2. single-byte back-reference: first byte in {0x02,0x04,0x06,0x08,0x0A}
//     (excluding the case where the second byte's nibbles are equal),
//     length = first byte + 14, back-reference offset fixed by first byte
//     (24 for 0x08, 40 for 0x0A, 0 otherwise)
//  3. two-byte back-reference: high nibble of first byte > 2, length =
//     that nibble, offset = 3 + low nibble + second byte * 16
//  4. three-byte marker: high nibble of first byte is 1 (fill) or 2
//     (back-reference), with length/offset packed across the three bytes
//
// Back-references copy from earlier in the same output buffer. The
// source range is snapshotted before the write, matching the original
// decompressor's Python list-slice assignment: when a back-reference's
// length exceeds its offset, the tail of the copy reproduces
// not-yet-written (zero-filled) bytes rather than echoing output this
// same copy just produced, unlike an LZ77-style overlapping copy.
type RDCDecompressor struct{}

var _ RowDecompressor = RDCDecompressor{}

// NewRDCDecompressor returns an RDC row decompressor.
func NewRDCDecompressor() RDCDecompressor {
	return RDCDecompressor{}
}

// DecompressRow expands src, the compressed bytes for one row, into a
// buffer of rowLength bytes (which may grow further if a pattern's length
// runs past rowLength, mirroring the original reader's behavior).
func (RDCDecompressor) DecompressRow(src []byte, rowLength int) ([]byte, error) {
	bb := pool.GetRowBuffer()
	defer pool.PutRowBuffer(bb)

	bb.ExtendOrGrow(rowLength)
	for i := range bb.B {
		bb.B[i] = 0
	}

	outOffset := 0
	srcOffset := 0
	n := len(src)

	ensure := func(capacity int) {
		if capacity <= bb.Len() {
			return
		}
		newLen := capacity
		if 2*bb.Len() > newLen {
			newLen = 2 * bb.Len()
		}
		extra := newLen - bb.Len()
		cur := bb.Len()
		bb.ExtendOrGrow(extra)
		for i := cur; i < bb.Len(); i++ {
			bb.B[i] = 0
		}
	}

	// copyBack mirrors the original decompressor's slice assignment
	// (out_row[out_offset:out_offset+length] = out_row[start:end]
	// against a plain Python list), which snapshots the source range
	// before writing. When length exceeds backOffset the source range
	// extends past outOffset into bytes not yet written by this copy,
	// so the snapshot must be taken up front rather than read
	// byte-by-byte — a live read-as-you-write would instead echo bytes
	// this same call had just produced, which is the LZ77 overlap
	// semantic the original's snapshot assignment does not have.
	copyBack := func(backOffset, length int) {
		start := outOffset - backOffset
		snapshot := make([]byte, length)
		copy(snapshot, bb.B[start:start+length])
		copy(bb.B[outOffset:outOffset+length], snapshot)
	}

	for srcOffset < n-2 {
		prefix := prefixBits(src[srcOffset], src[srcOffset+1])
		srcOffset += 2

		for bitIndex := 0; bitIndex < 16; bitIndex++ {
			if srcOffset >= n {
				break
			}

			if prefix[bitIndex] == 0 {
				ensure(outOffset + 1)
				bb.B[outOffset] = src[srcOffset]
				srcOffset++
				outOffset++

				continue
			}

			markerByte := src[srcOffset]
			if srcOffset+1 >= n {
				break
			}
			nextByte := src[srcOffset+1]

			switch {
			case isShortRLE(markerByte):
				length := int(markerByte) + 3
				ensure(outOffset + length)
				for k := 0; k < length; k++ {
					bb.B[outOffset+k] = nextByte
				}
				outOffset += length
				srcOffset += 2

			case isSingleByteMarker(markerByte) && (nextByte&0xF0) != (nextByte<<4)&0xF0:
				length := int(markerByte) + 14
				ensure(outOffset + length)
				copyBack(offsetForSingleByteMarker(markerByte), length)
				outOffset += length
				srcOffset++

			case srcOffset+1 < n && isTwoByteMarker(src[srcOffset], src[srcOffset+1]):
				length := int(src[srcOffset]>>4) & 0xF
				ensure(outOffset + length)
				backOffset := 3 + int(src[srcOffset]&0xF) + int(src[srcOffset+1])*16
				copyBack(backOffset, length)
				outOffset += length
				srcOffset += 2

			case srcOffset+2 < n && isThreeByteMarker(src[srcOffset]):
				pType := int(src[srcOffset]>>4) & 0xF
				b0, b1, b2 := src[srcOffset], src[srcOffset+1], src[srcOffset+2]

				var length int
				if pType == 1 {
					length = 19 + int(b0&0xF) + int(b1)*16
				} else {
					length = int(b2) + 16
				}
				ensure(outOffset + length)

				if pType == 1 {
					for k := 0; k < length; k++ {
						bb.B[outOffset+k] = b2
					}
				} else {
					backOffset := 3 + int(b0&0xF) + int(b1)*16
					copyBack(backOffset, length)
				}
				outOffset += length
				srcOffset += 3

			default:
				return nil, fmt.Errorf("%w: 0x%02X at offset %d", errs.ErrUnknownMarker, markerByte, srcOffset)
			}
		}
	}

	out := make([]byte, bb.Len())
	copy(out, bb.B)

	return out, nil
}

// prefixBits turns two bytes into 16 bits, most significant bit first
// within each byte.
func prefixBits(b0, b1 byte) [16]byte {
	var bits [16]byte
	for i, b := range [2]byte{b0, b1} {
		for bit := 0; bit < 8; bit++ {
			if b&(1<<uint(7-bit)) != 0 {
				bits[8*i+bit] = 1
			}
		}
	}

	return bits
}

func isShortRLE(b byte) bool {
	return b <= 0x05
}

func isSingleByteMarker(b byte) bool {
	switch b {
	case 0x02, 0x04, 0x06, 0x08, 0x0A:
		return true
	default:
		return false
	}
}

func offsetForSingleByteMarker(b byte) int {
	switch b {
	case 0x08:
		return 24
	case 0x0A:
		return 40
	default:
		return 0
	}
}

func isTwoByteMarker(b0, _ byte) bool {
	return (b0>>4)&0xF > 2
}

func isThreeByteMarker(b0 byte) bool {
	flag := (b0 >> 4) & 0xF

	return flag == 1 || flag == 2
}
