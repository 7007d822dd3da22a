package page_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-sas/sas7bdat/endian"
	"github.com/go-sas/sas7bdat/format"
	"github.com/go-sas/sas7bdat/header"
	"github.com/go-sas/sas7bdat/page"
)

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

// buildPage writes a page of pageLength bytes with its page-header
// fields set at bitOffset, little-endian.
func buildPage(pageLength, bitOffset int, pageType int16, blockCount, subheaderCount int16) []byte {
	buf := make([]byte, pageLength)
	put16 := func(off int, v int16) {
		buf[off] = byte(uint16(v))
		buf[off+1] = byte(uint16(v) >> 8)
	}
	put16(bitOffset+0, pageType)
	put16(bitOffset+2, blockCount)
	put16(bitOffset+4, subheaderCount)
	return buf
}

func TestReader_Next(t *testing.T) {
	h := &header.GlobalHeader{
		WordWidth:    4,
		HeaderLength: 288,
		PageLength:   256,
		PageCount:    2,
	}
	h.Engine = endian.GetLittleEndianEngine()

	page1 := buildPage(256, 16, int16(format.PageMeta), 0, 3)
	page2 := buildPage(256, 16, int16(format.PageData), 5, 0)
	data := append(append(make([]byte, h.HeaderLength), page1...), page2...)

	pr := page.NewReader(readerAt{data}, h, "test.sas7bdat")

	p1, err := pr.Next()
	require.NoError(t, err)
	require.Equal(t, format.PageMeta, p1.Type)
	require.Equal(t, 3, p1.SubheaderCount)
	require.Equal(t, 0, p1.Index)

	p2, err := pr.Next()
	require.NoError(t, err)
	require.Equal(t, format.PageData, p2.Type)
	require.Equal(t, 5, p2.BlockCount)
	require.Equal(t, 1, p2.Index)

	_, err = pr.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestReader_Next_TruncatedPage(t *testing.T) {
	h := &header.GlobalHeader{
		WordWidth:    4,
		HeaderLength: 288,
		PageLength:   256,
		PageCount:    1,
	}
	h.Engine = endian.GetLittleEndianEngine()

	short := buildPage(256, 16, int16(format.PageMeta), 0, 0)[:100]
	data := append(make([]byte, h.HeaderLength), short...)
	pr := page.NewReader(readerAt{data}, h, "test.sas7bdat")

	_, err := pr.Next()
	require.Error(t, err)
}

