package sas7bdat_test

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-sas/sas7bdat"
	"github.com/go-sas/sas7bdat/endian"
)

// readerAt adapts a plain byte slice to io.ReaderAt, matching the
// fixture convention used by the page and header packages' own tests.
type readerAt struct{ data []byte }

func (r readerAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(r.data)) {
		return 0, io.EOF
	}
	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// buildLeadingHeader lays out the fixed 288-byte 4-byte little-endian
// leading header, with just the fields this package's components read.
func buildLeadingHeader(le endian.EndianEngine, datasetName string, pageLength, pageCount int) []byte {
	buf := make([]byte, 288)
	copy(buf, magic())
	buf[37] = 0x01 // little-endian
	buf[39] = '1'  // unix
	copy(buf[92:92+64], []byte(datasetName))
	copy(buf[156:156+8], []byte("DATA"))
	le.PutUint32(buf[196:], 288)
	le.PutUint32(buf[200:], uint32(pageLength))
	le.PutUint32(buf[204:], uint32(pageCount))
	copy(buf[216:216+8], []byte("9.4"))
	copy(buf[240:240+16], []byte("Linux"))
	return buf
}

func magic() []byte {
	return []byte{
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0xC2, 0xEA, 0x81, 0x60,
		0xB3, 0x14, 0x11, 0xCF, 0xBD, 0x92, 0x08, 0x00,
		0x09, 0xC7, 0x31, 0x8C, 0x18, 0x1F, 0x10, 0x11,
	}
}

func putPageHeader(page []byte, bitOffset int, pageType, blockCount, subheaderCount int16) {
	put16 := func(off int, v int16) {
		page[off] = byte(uint16(v))
		page[off+1] = byte(uint16(v) >> 8)
	}
	put16(bitOffset+0, pageType)
	put16(bitOffset+2, blockCount)
	put16(bitOffset+4, subheaderCount)
}

func putPointerEntry(page []byte, tableOffset, w, i int, le endian.EndianEngine, ptrOffset, ptrLength int, compFlag, typeFlag byte) {
	entryLen := 12
	if w == 8 {
		entryLen = 24
	}
	base := tableOffset + i*entryLen
	le.PutUint32(page[base:], uint32(ptrOffset))
	le.PutUint32(page[base+w:], uint32(ptrLength))
	page[base+2*w] = compFlag
	page[base+2*w+1] = typeFlag
}

// oneColumnSchemaPayloads writes the six metadata subheaders describing
// a single 8-byte numeric column named COL1 with the given format
// string, into page starting at startOffset, each preceded by its
// signature. It returns the offset/length pairs in pointer-table order
// and the offset immediately past the last payload.
type payloadSpan struct{ offset, length int }

func oneColumnSchemaPayloads(page []byte, startOffset, w int, le endian.EndianEngine, rowLength, rowCount, mixPageRowCount int, formatStr string) ([]payloadSpan, int) {
	off := startOffset
	var spans []payloadSpan

	// row-size
	rowSize := make([]byte, 16*w)
	le.PutUint32(rowSize[5*w:], uint32(rowLength))
	le.PutUint32(rowSize[6*w:], uint32(rowCount))
	le.PutUint32(rowSize[15*w:], uint32(mixPageRowCount))
	copy(page[off:], rowSize)
	copy(page[off:off+4], []byte{0xF7, 0xF7, 0xF7, 0xF7})
	spans = append(spans, payloadSpan{off, len(rowSize)})
	off += len(rowSize)

	// column-size
	colSize := make([]byte, 2*w)
	le.PutUint32(colSize[w:], 1)
	copy(page[off:], colSize)
	copy(page[off:off+4], []byte{0xF6, 0xF6, 0xF6, 0xF6})
	spans = append(spans, payloadSpan{off, len(colSize)})
	off += len(colSize)

	// column-text: "COL1" then the format string, both in one blob
	text := "COL1" + formatStr
	blockLen := 2 + len(text)
	colText := make([]byte, w+blockLen)
	le.PutUint16(colText[w:], uint16(blockLen))
	copy(colText[w+2:], text)
	copy(page[off:], colText)
	copy(page[off:off+4], []byte{0xFD, 0xFF, 0xFF, 0xFF})
	spans = append(spans, payloadSpan{off, len(colText)})
	off += len(colText)

	// column-name: one record pointing at "COL1" (blob offset 2, length 4)
	colName := make([]byte, 8+2*w+12)
	base := w + 8
	le.PutUint16(colName[base:], 0)
	le.PutUint16(colName[base+2:], 2)
	le.PutUint16(colName[base+4:], 4)
	copy(page[off:], colName)
	copy(page[off:off+4], []byte{0xFF, 0xFF, 0xFF, 0xFF})
	spans = append(spans, payloadSpan{off, len(colName)})
	off += len(colName)

	// column-attributes: one record, data_offset=0, data_length=8, number
	recLen := w + 8
	colAttr := make([]byte, recLen+2*w+12)
	le.PutUint32(colAttr[w+8:], 0)
	le.PutUint32(colAttr[2*w+8:], uint32(rowLength))
	colAttr[2*w+14] = 1
	copy(page[off:], colAttr)
	copy(page[off:off+4], []byte{0xFC, 0xFF, 0xFF, 0xFF})
	spans = append(spans, payloadSpan{off, len(colAttr)})
	off += len(colAttr)

	// format-and-label: format at blob offset 6, length len(formatStr); no label
	fl := make([]byte, 3*w+34)
	flBase := 3 * w
	le.PutUint16(fl[flBase+22:], 0)
	le.PutUint16(fl[flBase+24:], 6)
	le.PutUint16(fl[flBase+26:], uint16(len(formatStr)))
	copy(page[off:], fl)
	copy(page[off:off+4], []byte{0xFE, 0xFB, 0xFF, 0xFF})
	spans = append(spans, payloadSpan{off, len(fl)})
	off += len(fl)

	return spans, off
}

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sas7bdat")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestReader_UncompressedDataPage(t *testing.T) {
	le := endian.GetLittleEndianEngine()
	w := 4
	bitOffset := 16
	pageLength := 300

	page1 := make([]byte, pageLength)
	putPageHeader(page1, bitOffset, 0 /* META */, 0, 6)
	tableOffset := bitOffset + 8
	spans, _ := oneColumnSchemaPayloads(page1, tableOffset+6*12, w, le, 8, 2, 2, "")
	for i, sp := range spans {
		putPointerEntry(page1, tableOffset, w, i, le, sp.offset, sp.length, 0, 0)
	}

	page2 := make([]byte, pageLength)
	putPageHeader(page2, bitOffset, 256 /* DATA */, 2, 0)
	le.PutUint64(page2[bitOffset+8:], math.Float64bits(3.5))
	le.PutUint64(page2[bitOffset+8+8:], math.Float64bits(7.25))

	lead := buildLeadingHeader(le, "DEMO", pageLength, 2)
	data := append(append(append([]byte{}, lead...), page1...), page2...)

	path := writeFile(t, data)
	rd, err := sas7bdat.Open(path)
	require.NoError(t, err)
	defer rd.Close()

	schema := rd.Schema()
	require.Equal(t, "DEMO", schema.DatasetName)
	require.Equal(t, 2, schema.RowCount)
	require.Len(t, schema.Columns, 1)
	require.Equal(t, "COL1", schema.Columns[0].Name)

	var got []float64
	for cells, err := range rd.Rows() {
		require.NoError(t, err)
		require.Len(t, cells, 1)
		got = append(got, cells[0].Double)
	}
	require.Equal(t, []float64{3.5, 7.25}, got)
}

func TestReader_MixPageAlignment(t *testing.T) {
	le := endian.GetLittleEndianEngine()
	w := 4
	bitOffset := 16
	pageLength := 320

	page := make([]byte, pageLength)
	putPageHeader(page, bitOffset, 512 /* MIX1 */, 0, 6)
	tableOffset := bitOffset + 8

	// X = bitOffset + 8 + subheaderCount*pointerLength = 16+8+6*12 = 96
	// align_correction = 96 % 8 = 0, so rows start at 96.
	rowStart := 96
	le.PutUint64(page[rowStart:], math.Float64bits(1.5))
	le.PutUint64(page[rowStart+8:], math.Float64bits(-2.25))

	spans, _ := oneColumnSchemaPayloads(page, rowStart+16, w, le, 8, 2, 2, "")
	for i, sp := range spans {
		putPointerEntry(page, tableOffset, w, i, le, sp.offset, sp.length, 0, 0)
	}

	lead := buildLeadingHeader(le, "MIXD", pageLength, 1)
	data := append(append([]byte{}, lead...), page...)

	path := writeFile(t, data)
	rd, err := sas7bdat.Open(path)
	require.NoError(t, err)
	defer rd.Close()

	var got []float64
	for cells, err := range rd.Rows() {
		require.NoError(t, err)
		got = append(got, cells[0].Double)
	}
	require.Equal(t, []float64{1.5, -2.25}, got)
}

func TestReader_CompressedRowViaMetaPagePointer(t *testing.T) {
	le := endian.GetLittleEndianEngine()
	w := 4
	bitOffset := 16
	pageLength := 320

	page := make([]byte, pageLength)
	putPageHeader(page, bitOffset, 0 /* META */, 0, 7)
	tableOffset := bitOffset + 8

	// The column-text blob carries the RLE compression literal alongside
	// the column name, so the builder detects compression while still
	// walking this same page's subheaders, before the data pointer
	// (index 6) is dispatched.
	spans, next := oneColumnSchemaPayloads(page, tableOffset+7*12, w, le, 8, 1, 1, "SASYZCRL")

	// compressed row: opcode 0xC0 repeats the next byte (nibble+3) times,
	// 5+3=8 zero bytes — the whole row, in 2 compressed bytes.
	dataOffset := next
	page[dataOffset] = 0xC5
	page[dataOffset+1] = 0x00

	for i, sp := range spans {
		putPointerEntry(page, tableOffset, w, i, le, sp.offset, sp.length, 0, 0)
	}
	putPointerEntry(page, tableOffset, w, 6, le, dataOffset, 2, 0, 1)

	lead := buildLeadingHeader(le, "COMP", pageLength, 1)
	data := append(append([]byte{}, lead...), page...)

	path := writeFile(t, data)
	rd, err := sas7bdat.Open(path)
	require.NoError(t, err)
	defer rd.Close()

	require.Equal(t, "RLE", rd.Schema().Compression.String())

	var rows int
	for cells, err := range rd.Rows() {
		require.NoError(t, err)
		require.False(t, cells[0].IsMissing())
		require.Equal(t, 0.0, cells[0].Double)
		rows++
	}
	require.Equal(t, 1, rows)
}

func TestReader_ExtraDateFormatOption(t *testing.T) {
	le := endian.GetLittleEndianEngine()
	w := 4
	bitOffset := 16
	pageLength := 300

	buildFile := func(formatStr string) string {
		page1 := make([]byte, pageLength)
		putPageHeader(page1, bitOffset, 0, 0, 6)
		tableOffset := bitOffset + 8
		spans, _ := oneColumnSchemaPayloads(page1, tableOffset+6*12, w, le, 8, 1, 1, formatStr)
		for i, sp := range spans {
			putPointerEntry(page1, tableOffset, w, i, le, sp.offset, sp.length, 0, 0)
		}

		page2 := make([]byte, pageLength)
		putPageHeader(page2, bitOffset, 256, 1, 0)
		le.PutUint64(page2[bitOffset+8:], math.Float64bits(100)) // 100 days since epoch

		lead := buildLeadingHeader(le, "DATEFMT", pageLength, 2)
		data := append(append(append([]byte{}, lead...), page1...), page2...)
		return writeFile(t, data)
	}

	t.Run("unregistered custom format decodes as a plain number", func(t *testing.T) {
		path := buildFile("MYDATE")
		rd, err := sas7bdat.Open(path)
		require.NoError(t, err)
		defer rd.Close()

		for cells, err := range rd.Rows() {
			require.NoError(t, err)
			require.Equal(t, "double", cells[0].Kind.String())
		}
	})

	t.Run("registering the format via an option decodes it as a date", func(t *testing.T) {
		path := buildFile("MYDATE")
		rd, err := sas7bdat.Open(path, sas7bdat.WithExtraDateFormats("MYDATE"))
		require.NoError(t, err)
		defer rd.Close()

		for cells, err := range rd.Rows() {
			require.NoError(t, err)
			require.Equal(t, "date", cells[0].Kind.String())
		}
	})
}

func TestReader_OpenRejectsNonSASFile(t *testing.T) {
	path := writeFile(t, make([]byte, 288))
	_, err := sas7bdat.Open(path)
	require.Error(t, err)
}

// TestReader_RowsReportsTruncation builds a MIX page holding the schema
// plus exactly one row (mix_page_row_count=1) out of a declared
// row_count of 2, so the second row forces an advance onto a page that
// is truncated short of its declared page_length. The schema parses
// fine at Open time; the truncation only surfaces once Rows() tries to
// fetch the page that isn't fully there.
func TestReader_RowsReportsTruncation(t *testing.T) {
	le := endian.GetLittleEndianEngine()
	w := 4
	bitOffset := 16
	pageLength := 320

	page1 := make([]byte, pageLength)
	putPageHeader(page1, bitOffset, 512 /* MIX1 */, 0, 6)
	tableOffset := bitOffset + 8

	rowStart := 96
	le.PutUint64(page1[rowStart:], math.Float64bits(1))

	spans, _ := oneColumnSchemaPayloads(page1, rowStart+16, w, le, 8, 2, 1, "")
	for i, sp := range spans {
		putPointerEntry(page1, tableOffset, w, i, le, sp.offset, sp.length, 0, 0)
	}

	page2 := make([]byte, pageLength)
	putPageHeader(page2, bitOffset, 256, 1, 0)
	le.PutUint64(page2[bitOffset+8:], math.Float64bits(2))
	page2 = page2[:pageLength-50] // truncated short of page_length

	lead := buildLeadingHeader(le, "TRUNC", pageLength, 2)
	data := append(append(append([]byte{}, lead...), page1...), page2...)

	path := writeFile(t, data)
	rd, err := sas7bdat.Open(path)
	require.NoError(t, err)
	defer rd.Close()

	var sawErr bool
	for _, err := range rd.Rows() {
		if err != nil {
			sawErr = true
			break
		}
	}
	require.True(t, sawErr)
}
