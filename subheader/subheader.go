package subheader

import (
	"github.com/go-sas/sas7bdat/endian"
	"github.com/go-sas/sas7bdat/primitive"
)

// Kind identifies what a subheader pointer's payload describes.
type Kind uint8

const (
	// KindSkipped marks a pointer Dispatch ignores on purpose: zero
	// length, a truncated-subheader compression flag, or a signature
	// read that would run past the page. None of these warrant a
	// warning.
	KindSkipped Kind = iota
	// KindUnrecognized marks a pointer whose signature matched nothing
	// in signatureTable and did not qualify as a compressed-row
	// pointer either — the one case callers should warn about.
	KindUnrecognized
	KindRowSize
	KindColumnSize
	KindSubheaderCounts
	KindColumnText
	KindColumnName
	KindColumnAttributes
	KindFormatAndLabel
	KindColumnList
	KindData // a compressed-row pointer, not a signature match
)

func (k Kind) String() string {
	switch k {
	case KindSkipped:
		return "skipped"
	case KindUnrecognized:
		return "unrecognized"
	case KindRowSize:
		return "row_size"
	case KindColumnSize:
		return "column_size"
	case KindSubheaderCounts:
		return "subheader_counts"
	case KindColumnText:
		return "column_text"
	case KindColumnName:
		return "column_name"
	case KindColumnAttributes:
		return "column_attributes"
	case KindFormatAndLabel:
		return "format_and_label"
	case KindColumnList:
		return "column_list"
	case KindData:
		return "data"
	default:
		return "unknown"
	}
}

const (
	// TruncatedCompressionFlag marks a pointer whose subheader was
	// truncated by the producer; it is always skipped.
	TruncatedCompressionFlag = 1
	// CompressedDataFlag is one of the two compression_flag values a
	// compressed-row pointer carries when no signature matches.
	CompressedDataFlag = 4
	// CompressedDataType is the type_flag a compressed-row pointer
	// carries.
	CompressedDataType = 1

	// PointersOffset is the fixed byte offset of the subheader pointer
	// table, relative to the page's bit offset.
	PointersOffset = 8
)

// Pointer is one entry of a page's subheader pointer table.
type Pointer struct {
	Offset          int
	Length          int
	CompressionFlag int8
	TypeFlag        int8
}

// signatureTable maps every mirrored signature form (4-byte and
// 8-byte, both byte orders) to the Kind it identifies. The entries are
// the literal byte sequences real files use, not a generative mirror,
// since the 8-byte forms are not a clean zero-extension of the 4-byte
// ones in both directions.
var signatureTable = map[string]Kind{
	"\xF7\xF7\xF7\xF7":                 KindRowSize,
	"\x00\x00\x00\x00\xF7\xF7\xF7\xF7": KindRowSize,
	"\xF7\xF7\xF7\xF7\x00\x00\x00\x00": KindRowSize,

	"\xF6\xF6\xF6\xF6":                 KindColumnSize,
	"\x00\x00\x00\x00\xF6\xF6\xF6\xF6": KindColumnSize,
	"\xF6\xF6\xF6\xF6\x00\x00\x00\x00": KindColumnSize,

	"\x00\xFC\xFF\xFF":                 KindSubheaderCounts,
	"\xFF\xFF\xFC\x00":                 KindSubheaderCounts,
	"\x00\xFC\xFF\xFF\xFF\xFF\xFF\xFF": KindSubheaderCounts,
	"\xFF\xFF\xFF\xFF\xFF\xFF\xFC\x00": KindSubheaderCounts,

	"\xFD\xFF\xFF\xFF":                 KindColumnText,
	"\xFF\xFF\xFF\xFD":                 KindColumnText,
	"\xFD\xFF\xFF\xFF\xFF\xFF\xFF\xFF": KindColumnText,
	"\xFF\xFF\xFF\xFF\xFF\xFF\xFF\xFD": KindColumnText,

	"\xFF\xFF\xFF\xFF":                 KindColumnName,
	"\xFF\xFF\xFF\xFF\xFF\xFF\xFF\xFF": KindColumnName,

	"\xFC\xFF\xFF\xFF":                 KindColumnAttributes,
	"\xFF\xFF\xFF\xFC":                 KindColumnAttributes,
	"\xFC\xFF\xFF\xFF\xFF\xFF\xFF\xFF": KindColumnAttributes,
	"\xFF\xFF\xFF\xFF\xFF\xFF\xFF\xFC": KindColumnAttributes,

	"\xFE\xFB\xFF\xFF":                 KindFormatAndLabel,
	"\xFF\xFF\xFB\xFE":                 KindFormatAndLabel,
	"\xFE\xFB\xFF\xFF\xFF\xFF\xFF\xFF": KindFormatAndLabel,
	"\xFF\xFF\xFF\xFF\xFF\xFF\xFB\xFE": KindFormatAndLabel,

	"\xFE\xFF\xFF\xFF":                 KindColumnList,
	"\xFF\xFF\xFF\xFE":                 KindColumnList,
	"\xFE\xFF\xFF\xFF\xFF\xFF\xFF\xFF": KindColumnList,
	"\xFF\xFF\xFF\xFF\xFF\xFF\xFF\xFE": KindColumnList,
}

// Identify classifies a raw signature slice (4 or 8 bytes, as read
// from the subheader's own offset) against the known table, returning
// KindUnrecognized when nothing matches.
func Identify(signature []byte) Kind {
	if k, ok := signatureTable[string(signature)]; ok {
		return k
	}
	return KindUnrecognized
}

// ReadPointer decodes the subheader pointer at logical index i within
// a page's pointer table, which begins at tableOffset bytes into data.
func ReadPointer(data []byte, tableOffset, wordWidth, i int, engine endian.EndianEngine) (Pointer, error) {
	entryLength := pointerEntryLength(wordWidth)
	base := tableOffset + i*entryLength

	offset, err := primitive.ReadInt(data[base:], wordWidth, engine)
	if err != nil {
		return Pointer{}, err
	}
	length, err := primitive.ReadInt(data[base+wordWidth:], wordWidth, engine)
	if err != nil {
		return Pointer{}, err
	}
	compFlag, err := primitive.ReadInt(data[base+2*wordWidth:], 1, engine)
	if err != nil {
		return Pointer{}, err
	}
	typeFlag, err := primitive.ReadInt(data[base+2*wordWidth+1:], 1, engine)
	if err != nil {
		return Pointer{}, err
	}

	return Pointer{
		Offset:          int(offset),
		Length:          int(length),
		CompressionFlag: int8(compFlag),
		TypeFlag:        int8(typeFlag),
	}, nil
}

// pointerEntryLength is the byte size of one subheader pointer entry:
// two word_width fields (offset, length), the compression-flag and
// type-flag bytes, then padding — 12 bytes for 4-byte files, 24 for
// 8-byte files.
func pointerEntryLength(wordWidth int) int {
	if wordWidth == 8 {
		return 24
	}
	return 12
}

// Dispatch applies the four-rule classification from the subheader
// dispatcher: skip truncated/zero-length pointers (KindSkipped), match
// by signature, fall back to the compressed-data-pointer rule, or
// report a genuinely unrecognized signature (KindUnrecognized) — the
// only one of these a caller should warn about.
func Dispatch(data []byte, p Pointer, wordWidth int, compressed bool) Kind {
	if p.Length == 0 || p.CompressionFlag == TruncatedCompressionFlag {
		return KindSkipped
	}

	sigLen := wordWidth
	if p.Offset+sigLen > len(data) {
		return KindSkipped
	}
	if k := Identify(data[p.Offset : p.Offset+sigLen]); k != KindUnrecognized {
		return k
	}

	if compressed &&
		(p.CompressionFlag == 0 || p.CompressionFlag == CompressedDataFlag) &&
		p.TypeFlag == CompressedDataType {
		return KindData
	}

	return KindUnrecognized
}
