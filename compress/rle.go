package compress

import (
	"fmt"

	"github.com/go-sas/sas7bdat/errs"
)

// RLEDecompressor expands rows compressed with SAS's own run-length scheme,
// signature "SASYZCRL" (format.RLELiteral).
//
// The scheme is a stream of control bytes whose high nibble selects an
// opcode and whose low nibble usually carries part of a length:
//
//	0x0_  copy a literal run (length from the next byte + the nibble)
//	0x4_  fill with one repeated literal byte
//	0x6_  fill with spaces
//	0x7_  fill with nulls
//	0x8_-0xB_  copy a literal run, length = nibble + a fixed base
//	0xC_  repeat the next byte nibble+3 times
//	0xD_  fill nibble+2 '@' bytes
//	0xE_  fill nibble+2 space bytes
//	0xF_  fill nibble+2 null bytes
type RLEDecompressor struct{}

var _ RowDecompressor = RLEDecompressor{}

// NewRLEDecompressor returns an RLE row decompressor.
func NewRLEDecompressor() RLEDecompressor {
	return RLEDecompressor{}
}

// DecompressRow expands src, the compressed bytes for one row. rowLength
// only sizes the initial buffer; the result is as long as src's commands
// produce.
func (RLEDecompressor) DecompressRow(src []byte, rowLength int) ([]byte, error) {
	out := make([]byte, 0, rowLength)
	n := len(src)

	for i := 0; i < n; {
		controlByte := src[i] & 0xF0
		nibble := int(src[i] & 0x0F)

		switch controlByte {
		case 0x00:
			if i == n-1 {
				i++
				continue
			}
			count := int(src[i+1]) + 64 + nibble*256
			start, end := i+2, i+2+count
			if end > n {
				return nil, fmt.Errorf("%w: RLE literal run overruns row", errs.ErrTruncatedField)
			}
			out = append(out, src[start:end]...)
			i += count + 2
		case 0x40:
			count := nibble*16 + int(src[i+1])
			b := src[i+2]
			for k := 0; k < count+18; k++ {
				out = append(out, b)
			}
			i += 3
		case 0x60:
			count := nibble*256 + int(src[i+1]) + 17
			out = appendRepeated(out, ' ', count)
			i += 2
		case 0x70:
			count := int(src[i+1]) + 17
			out = appendRepeated(out, 0x00, count)
			i += 2
		case 0x80:
			count := min(nibble+1, n-(i+1))
			out = append(out, src[i+1:i+1+count]...)
			i += count + 1
		case 0x90:
			count := min(nibble+17, n-(i+1))
			out = append(out, src[i+1:i+1+count]...)
			i += count + 1
		case 0xA0:
			count := min(nibble+33, n-(i+1))
			out = append(out, src[i+1:i+1+count]...)
			i += count + 1
		case 0xB0:
			count := min(nibble+49, n-(i+1))
			out = append(out, src[i+1:i+1+count]...)
			i += count + 1
		case 0xC0:
			b := src[i+1]
			out = appendRepeated(out, b, nibble+3)
			i += 2
		case 0xD0:
			out = appendRepeated(out, '@', nibble+2)
			i++
		case 0xE0:
			out = appendRepeated(out, ' ', nibble+2)
			i++
		case 0xF0:
			out = appendRepeated(out, 0x00, nibble+2)
			i++
		default:
			return nil, fmt.Errorf("%w: 0x%02X", errs.ErrUnknownControlByte, src[i])
		}
	}

	return out, nil
}

func appendRepeated(dst []byte, b byte, count int) []byte {
	for k := 0; k < count; k++ {
		dst = append(dst, b)
	}

	return dst
}
