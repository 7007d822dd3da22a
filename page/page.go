package page

import (
	"fmt"
	"io"

	"github.com/go-sas/sas7bdat/errs"
	"github.com/go-sas/sas7bdat/format"
	"github.com/go-sas/sas7bdat/header"
	"github.com/go-sas/sas7bdat/internal/pool"
	"github.com/go-sas/sas7bdat/primitive"
)

const (
	pageTypeOffset      = 0
	blockCountOffset    = 2
	subheaderCountOffset = 4
	pageHeaderFieldSize = 2
)

// Page is one fixed-length page of a sas7bdat file body: its
// classified type, its block/subheader counts, and its raw bytes for
// the subheader dispatcher and row projector to index into.
type Page struct {
	Index          int
	Type           format.PageType
	BlockCount     int
	SubheaderCount int
	Data           []byte
}

// Reader fetches pages sequentially from a sas7bdat file body, one
// page_length slice at a time, starting right after the global header.
type Reader struct {
	r      io.ReaderAt
	header *header.GlobalHeader
	path   string
	offset int64
	index  int
}

// NewReader returns a Reader positioned at the first page following
// the global header.
func NewReader(r io.ReaderAt, h *header.GlobalHeader, path string) *Reader {
	return &Reader{
		r:      r,
		header: h,
		path:   path,
		offset: int64(h.HeaderLength),
	}
}

// Next fetches and classifies the next page, or returns io.EOF once
// the file's page_count pages have all been read.
func (pr *Reader) Next() (*Page, error) {
	if pr.header.PageCount > 0 && pr.index >= pr.header.PageCount {
		return nil, io.EOF
	}

	buf := pool.GetPageBuffer()
	defer pool.PutPageBuffer(buf)
	buf.ExtendOrGrow(pr.header.PageLength)

	n, err := pr.r.ReadAt(buf.B, pr.offset)
	if err != nil && err != io.EOF {
		return nil, errs.Wrap(pr.path, "page.Next", fmt.Errorf("%w: %v", errs.ErrTruncatedFile, err))
	}
	if n == 0 {
		return nil, io.EOF
	}
	if n != pr.header.PageLength {
		return nil, errs.Wrap(pr.path, "page.Next", fmt.Errorf("%w: got %d of %d bytes", errs.ErrTruncatedFile, n, pr.header.PageLength))
	}

	data := make([]byte, n)
	copy(data, buf.B[:n])

	bitOffset := pr.header.PageBitOffset()

	pageType, err := primitive.ReadInt(data[bitOffset+pageTypeOffset:], pageHeaderFieldSize, pr.header.Engine)
	if err != nil {
		return nil, errs.Wrap(pr.path, "page.Next", err)
	}
	blockCount, err := primitive.ReadInt(data[bitOffset+blockCountOffset:], pageHeaderFieldSize, pr.header.Engine)
	if err != nil {
		return nil, errs.Wrap(pr.path, "page.Next", err)
	}
	subheaderCount, err := primitive.ReadInt(data[bitOffset+subheaderCountOffset:], pageHeaderFieldSize, pr.header.Engine)
	if err != nil {
		return nil, errs.Wrap(pr.path, "page.Next", err)
	}

	p := &Page{
		Index:          pr.index,
		Type:           format.PageType(pageType),
		BlockCount:     int(blockCount),
		SubheaderCount: int(subheaderCount),
		Data:           data,
	}

	pr.offset += int64(pr.header.PageLength)
	pr.index++

	return p, nil
}

// SubheaderPointersOffset is the fixed byte offset of the subheader
// pointer table, relative to the page's bit offset.
const SubheaderPointersOffset = 8
