package metadata

import (
	"fmt"

	"github.com/go-sas/sas7bdat/endian"
	"github.com/go-sas/sas7bdat/errs"
	"github.com/go-sas/sas7bdat/format"
	"github.com/go-sas/sas7bdat/primitive"
)

// Row-size subheader field offsets, counted in word_width units.
const (
	rowLengthMultiplier       = 5
	rowCountMultiplier        = 6
	mixPageRowCountMultiplier = 15
)

// Compression-literal locator offsets within the row-size subheader,
// word-width dependent. When lcs is nonzero, the compression literal
// (if any) sits at [lcp, lcp+lcs) in the row-size subheader's own
// payload, not in the column-text blob.
const (
	lcsOffset8 = 682
	lcpOffset8 = 706
	lcsOffset4 = 354
	lcpOffset4 = 378
)

// Column-name pointer layout: a W-byte signature and 8 further header
// bytes, then 8-byte records of (text_subheader_index u16, offset u16,
// length u16, _).
const (
	columnNamePointerLength   = 8
	columnNameTextIndexOffset = 0
	columnNameOffsetOffset    = 2
	columnNameLengthOffset    = 4
)

// Column-attributes record layout: a (W+8)-byte header, then
// (W+8)-byte records of (data_offset W bytes at record offset 0,
// data_length 4 bytes at record offset W, type byte at record offset
// W+6). The constants below count from W (data_offset) and from 2*W
// (data_length, type) past the subheader start.
const (
	columnDataOffsetOffset = 8
	columnDataLengthOffset = 8
	columnTypeOffset       = 14
)

// Format-and-label layout: two 6-byte (index u16, offset u16,
// length u16) triples at fixed offsets, shifted by 3*W.
const (
	formatTextIndexOffset = 22
	formatOffsetOffset    = 24
	formatLengthOffset    = 26
	labelTextIndexOffset  = 28
	labelOffsetOffset     = 30
	labelLengthOffset     = 32
)

// Builder accumulates metadata subheader contents into a Schema. Its
// handlers may be interleaved across pages. HandleFormatAndLabel
// assembles a Column from the column names and attributes recorded
// before it is called; a name or attribute record handled after that
// column's format-and-label subheader is not added to it. Finish
// validates the accumulated state once the metadata walk is complete.
type Builder struct {
	WordWidth int
	Engine    endian.EndianEngine

	datasetName string

	rowLength       int
	rowCount        int
	mixPageRowCount int
	sawRowSize      bool

	columnCount  int
	sawColumnSize bool

	columnTextBlobs [][]byte
	compression     format.CompressionType

	columnNames []string

	columnDataOffsets []int
	columnDataLengths []int
	columnTypes       []format.LogicalType

	columns             []Column
	currentColumnNumber int

	warn func(string, ...any)
}

// NewBuilder returns an empty Builder for a file of the given word
// width and byte order. warn receives non-fatal diagnostics (unknown
// subheader, host string, count mismatches); a nil warn discards them.
func NewBuilder(wordWidth int, engine endian.EndianEngine, warn func(string, ...any)) *Builder {
	if warn == nil {
		warn = func(string, ...any) {}
	}
	return &Builder{WordWidth: wordWidth, Engine: engine, warn: warn}
}

// SetDatasetName records the dataset name decoded from the global
// header, carried into the final Schema.
func (b *Builder) SetDatasetName(name string) {
	b.datasetName = name
}

// HandleRowSize processes a row-size subheader's payload, which begins
// at offset within data.
func (b *Builder) HandleRowSize(data []byte, offset int) error {
	b.sawRowSize = true
	w := b.WordWidth

	rowLength, err := primitive.ReadInt(data[offset+rowLengthMultiplier*w:], w, b.Engine)
	if err != nil {
		return err
	}
	rowCount, err := primitive.ReadInt(data[offset+rowCountMultiplier*w:], w, b.Engine)
	if err != nil {
		return err
	}
	mixCount, err := primitive.ReadInt(data[offset+mixPageRowCountMultiplier*w:], w, b.Engine)
	if err != nil {
		return err
	}

	if b.rowLength == 0 {
		b.rowLength = int(rowLength)
	}
	if b.rowCount == 0 {
		b.rowCount = int(rowCount)
	}
	if b.mixPageRowCount == 0 {
		b.mixPageRowCount = int(mixCount)
	}

	b.detectCompressionFromRowSize(data, offset, w)

	return nil
}

// detectCompressionFromRowSize reads the lcs/lcp fields and, when lcs
// is nonzero, compares the literal they locate against the two known
// compression signatures. A miss here is not an error: the column-text
// handler's blob scan is the fallback path.
func (b *Builder) detectCompressionFromRowSize(data []byte, offset, w int) {
	lcsOff, lcpOff := lcsOffset4, lcpOffset4
	if w == 8 {
		lcsOff, lcpOff = lcsOffset8, lcpOffset8
	}

	if offset+lcsOff+2 > len(data) || offset+lcpOff+2 > len(data) {
		return
	}

	lcs, err := primitive.ReadInt(data[offset+lcsOff:], 2, b.Engine)
	if err != nil || lcs <= 0 {
		return
	}
	lcp, err := primitive.ReadInt(data[offset+lcpOff:], 2, b.Engine)
	if err != nil || lcp < 0 {
		return
	}

	start := offset + int(lcp)
	if start < 0 || start+int(lcs) > len(data) {
		return
	}

	literal, err := primitive.ReadString(data[start:], int(lcs))
	if err != nil {
		return
	}

	switch literal {
	case format.RLELiteral:
		b.compression = format.CompressionRLE
	case format.RDCLiteral:
		b.compression = format.CompressionRDC
	}
}

// HandleColumnSize processes a column-size subheader's payload.
func (b *Builder) HandleColumnSize(data []byte, offset int) error {
	b.sawColumnSize = true
	w := b.WordWidth

	count, err := primitive.ReadInt(data[offset+w:], w, b.Engine)
	if err != nil {
		return err
	}
	b.columnCount = int(count)

	return nil
}

// HandleColumnText processes a column-text subheader's payload,
// appending its blob to the ordered text pool and, on the first blob
// only, scanning for an embedded compression literal.
func (b *Builder) HandleColumnText(data []byte, offset int) error {
	w := b.WordWidth
	offset += w

	textBlockSize, err := primitive.ReadInt(data[offset:], 2, b.Engine)
	if err != nil {
		return err
	}
	// The block's own length prefix is counted as part of the block:
	// the blob spans [offset, offset+textBlockSize), not the bytes
	// after the prefix.
	if textBlockSize < 0 || offset+int(textBlockSize) > len(data) {
		return fmt.Errorf("%w: column-text block size %d out of range", errs.ErrSchemaInconsistent, textBlockSize)
	}

	blob := make([]byte, textBlockSize)
	copy(blob, data[offset:offset+int(textBlockSize)])
	b.columnTextBlobs = append(b.columnTextBlobs, blob)

	if len(b.columnTextBlobs) == 1 && b.compression == format.CompressionNone {
		b.scanCompressionLiteral(blob)
	}

	return nil
}

func (b *Builder) scanCompressionLiteral(blob []byte) {
	s := string(blob)
	switch {
	case containsLiteral(s, format.RLELiteral):
		b.compression = format.CompressionRLE
	case containsLiteral(s, format.RDCLiteral):
		b.compression = format.CompressionRDC
	}
}

func containsLiteral(haystack, needle string) bool {
	if len(needle) > len(haystack) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

// HandleColumnName processes a column-name subheader's payload,
// appending each pointed-to substring to the ordered column name list.
func (b *Builder) HandleColumnName(data []byte, offset, length int) error {
	w := b.WordWidth
	offset += w

	count := (length - 2*w - 12) / columnNamePointerLength
	for i := 0; i < count; i++ {
		base := offset + columnNamePointerLength*(i+1)

		idx, err := primitive.ReadInt(data[base+columnNameTextIndexOffset:], 2, b.Engine)
		if err != nil {
			return err
		}
		colOffset, err := primitive.ReadInt(data[base+columnNameOffsetOffset:], 2, b.Engine)
		if err != nil {
			return err
		}
		colLength, err := primitive.ReadInt(data[base+columnNameLengthOffset:], 2, b.Engine)
		if err != nil {
			return err
		}

		name, err := b.extractText(int(idx), int(colOffset), int(colLength))
		if err != nil {
			b.warn("column-name: %v", err)
			name = ""
		}
		b.columnNames = append(b.columnNames, name)
	}

	return nil
}

// HandleColumnAttributes processes a column-attributes subheader's
// payload, appending to the parallel data-offset/data-length/type
// arrays.
func (b *Builder) HandleColumnAttributes(data []byte, offset, length int) error {
	w := b.WordWidth
	recordLength := w + 8
	count := (length - 2*w - 12) / recordLength

	for i := 0; i < count; i++ {
		dataOffset, err := primitive.ReadInt(data[offset+w+columnDataOffsetOffset+i*recordLength:], w, b.Engine)
		if err != nil {
			return err
		}
		dataLength, err := primitive.ReadInt(data[offset+2*w+columnDataLengthOffset+i*recordLength:], 4, b.Engine)
		if err != nil {
			return err
		}
		colType, err := primitive.ReadInt(data[offset+2*w+columnTypeOffset+i*recordLength:], 1, b.Engine)
		if err != nil {
			return err
		}

		b.columnDataOffsets = append(b.columnDataOffsets, int(dataOffset))
		if dataLength < 0 {
			dataLength = 0
		}
		b.columnDataLengths = append(b.columnDataLengths, int(dataLength))

		logical := format.LogicalString
		if colType == 1 {
			logical = format.LogicalNumber
		}
		b.columnTypes = append(b.columnTypes, logical)
	}

	return nil
}

// HandleFormatAndLabel processes a format-and-label subheader's
// payload, assembling one fully-populated Column and appending it to
// the schema's column list in declaration order.
func (b *Builder) HandleFormatAndLabel(data []byte, offset int) error {
	w := b.WordWidth
	base := offset + 3*w

	formatIdx, err := primitive.ReadInt(data[base+formatTextIndexOffset:], 2, b.Engine)
	if err != nil {
		return err
	}
	formatStart, err := primitive.ReadInt(data[base+formatOffsetOffset:], 2, b.Engine)
	if err != nil {
		return err
	}
	formatLen, err := primitive.ReadInt(data[base+formatLengthOffset:], 2, b.Engine)
	if err != nil {
		return err
	}
	labelIdx, err := primitive.ReadInt(data[base+labelTextIndexOffset:], 2, b.Engine)
	if err != nil {
		return err
	}
	labelStart, err := primitive.ReadInt(data[base+labelOffsetOffset:], 2, b.Engine)
	if err != nil {
		return err
	}
	labelLen, err := primitive.ReadInt(data[base+labelLengthOffset:], 2, b.Engine)
	if err != nil {
		return err
	}

	// Clamp indices to tolerate a known file-producer bug that emits
	// an out-of-range text-subheader index.
	formatIdx = clampIndex(formatIdx, len(b.columnTextBlobs))
	labelIdx = clampIndex(labelIdx, len(b.columnTextBlobs))

	formatStr, err := b.extractText(int(formatIdx), int(formatStart), int(formatLen))
	if err != nil {
		b.warn("format-and-label format: %v", err)
	}
	label, err := b.extractText(int(labelIdx), int(labelStart), int(labelLen))
	if err != nil {
		b.warn("format-and-label label: %v", err)
	}

	n := b.currentColumnNumber
	col := Column{
		Index:  n,
		Label:  label,
		Format: formatStr,
	}
	if n < len(b.columnNames) {
		col.Name = b.columnNames[n]
	}
	if n < len(b.columnTypes) {
		col.Type = b.columnTypes[n]
	}
	if n < len(b.columnDataLengths) {
		col.Length = b.columnDataLengths[n]
	}
	if n < len(b.columnDataOffsets) {
		col.DataOffset = b.columnDataOffsets[n]
	}

	b.columns = append(b.columns, col)
	b.currentColumnNumber++

	return nil
}

func clampIndex(idx int64, blobCount int) int64 {
	if blobCount == 0 {
		return 0
	}
	if idx > int64(blobCount-1) {
		return int64(blobCount - 1)
	}
	if idx < 0 {
		return 0
	}
	return idx
}

// extractText slices [start, start+length) out of the blobIndex'th
// column-text blob. Negative lengths are never honored.
func (b *Builder) extractText(blobIndex, start, length int) (string, error) {
	if length < 0 {
		length = 0
	}
	if blobIndex < 0 || blobIndex >= len(b.columnTextBlobs) {
		return "", fmt.Errorf("%w: text-subheader index %d out of range", errs.ErrSchemaInconsistent, blobIndex)
	}
	blob := b.columnTextBlobs[blobIndex]
	if start < 0 || start+length > len(blob) {
		return "", fmt.Errorf("%w: text extent [%d:%d] out of range for blob of length %d", errs.ErrSchemaInconsistent, start, start+length, len(blob))
	}
	return string(blob[start : start+length]), nil
}

// Compressed reports whether a compression scheme has been detected so
// far, either from the row-size subheader's lcs/lcp fields or from the
// first column-text blob. Subheader dispatch consults this to decide
// whether an unrecognized signature may still be a compressed-row
// pointer.
func (b *Builder) Compressed() bool {
	return b.compression != format.CompressionNone
}

// Finish validates the accumulated metadata and produces the frozen
// Schema, or a SchemaInconsistent error describing what is missing.
func (b *Builder) Finish() (*Schema, error) {
	if !b.sawRowSize {
		return nil, fmt.Errorf("%w: no row-size subheader", errs.ErrSchemaInconsistent)
	}
	if !b.sawColumnSize {
		return nil, fmt.Errorf("%w: no column-size subheader", errs.ErrSchemaInconsistent)
	}
	if len(b.columnTextBlobs) == 0 {
		return nil, fmt.Errorf("%w: no column-text subheader", errs.ErrSchemaInconsistent)
	}
	if b.columnCount > 0 && len(b.columnNames) == 0 {
		return nil, fmt.Errorf("%w: no column-name subheader", errs.ErrSchemaInconsistent)
	}
	if b.columnCount > 0 && len(b.columnTypes) == 0 {
		return nil, fmt.Errorf("%w: no column-attributes subheader", errs.ErrSchemaInconsistent)
	}
	if len(b.columnNames) != b.columnCount {
		b.warn("column name count %d does not match column count %d", len(b.columnNames), b.columnCount)
	}
	if len(b.columnTypes) != b.columnCount {
		b.warn("column attribute count %d does not match column count %d", len(b.columnTypes), b.columnCount)
	}
	if len(b.columns) != b.columnCount {
		return nil, fmt.Errorf("%w: assembled %d columns, expected %d", errs.ErrSchemaInconsistent, len(b.columns), b.columnCount)
	}

	return &Schema{
		DatasetName:     b.datasetName,
		RowLength:       b.rowLength,
		RowCount:        b.rowCount,
		MixPageRowCount: b.mixPageRowCount,
		ColumnCount:     b.columnCount,
		Compression:     b.compression,
		Columns:         b.columns,
	}, nil
}
