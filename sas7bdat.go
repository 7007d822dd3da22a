package sas7bdat

import (
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/go-sas/sas7bdat/compress"
	"github.com/go-sas/sas7bdat/errs"
	"github.com/go-sas/sas7bdat/format"
	"github.com/go-sas/sas7bdat/header"
	"github.com/go-sas/sas7bdat/internal/options"
	"github.com/go-sas/sas7bdat/metadata"
	"github.com/go-sas/sas7bdat/page"
	"github.com/go-sas/sas7bdat/row"
	"github.com/go-sas/sas7bdat/subheader"
)

// Reader decodes a sas7bdat file: its schema, and the row stream that
// follows it. A zero Reader is not usable; construct one with Open or
// NewReader.
type Reader struct {
	r      io.ReaderAt
	closer io.Closer
	path   string

	hdr    *header.GlobalHeader
	schema *metadata.Schema

	pages        *page.Reader
	decompressor compress.RowDecompressor
	formatSets   row.FormatSets
	warn         func(string, ...any)

	cur             *page.Page
	pendingPointers []subheader.Pointer
	rowOnPage       int
	rowsEmitted     int
}

// Open opens the sas7bdat file at path and parses its schema. The
// returned Reader owns the underlying file; callers must Close it.
func Open(path string, opts ...Option) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(path, "sas7bdat.Open", err)
	}

	rd, err := NewReader(f, path, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	rd.closer = f

	return rd, nil
}

// NewReader parses a sas7bdat file's schema from an already-open
// io.ReaderAt, which Close leaves untouched. path is used only to
// label errors.
func NewReader(r io.ReaderAt, path string, opts ...Option) (*Reader, error) {
	cfg := defaultConfig()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, errs.Wrap(path, "sas7bdat.NewReader", err)
	}

	hdr, err := header.Parse(r, path, cfg.warn)
	if err != nil {
		return nil, err
	}

	rd := &Reader{
		r:          r,
		path:       path,
		hdr:        hdr,
		pages:      page.NewReader(r, hdr, path),
		formatSets: cfg.formatSets,
		warn:       cfg.warn,
	}

	if err := rd.buildSchema(); err != nil {
		return nil, err
	}

	dec, err := compress.NewDecompressor(rd.schema.Compression)
	if err != nil {
		return nil, errs.Wrap(path, "sas7bdat.NewReader", err)
	}
	rd.decompressor = dec

	return rd, nil
}

// Schema returns the dataset's parsed row layout.
func (rd *Reader) Schema() *metadata.Schema {
	return rd.schema
}

// Close releases the file Open opened. Calling Close on a Reader built
// with NewReader over a caller-owned io.ReaderAt is a no-op.
func (rd *Reader) Close() error {
	if rd.closer != nil {
		return rd.closer.Close()
	}
	return nil
}

// buildSchema walks every metadata-bearing page — META, MIX, AMD —
// from the start of the file, dispatching each subheader pointer to
// the metadata builder until a row-bearing page (MIX or DATA) is
// reached, or a META page yields its first compressed-row pointers.
// The page where the walk stops becomes the cursor Rows (via nextRow)
// resumes from; it is never re-fetched.
func (rd *Reader) buildSchema() error {
	b := metadata.NewBuilder(rd.hdr.WordWidth, rd.hdr.Engine, rd.warn)
	b.SetDatasetName(rd.hdr.DatasetName)

	var cur *page.Page
	var pending []subheader.Pointer

	for {
		p, err := rd.pages.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		cur = p

		if p.Type.IsMetaWalk() {
			walked, err := rd.walkSubheaders(b, p)
			if err != nil {
				return err
			}
			pending = append(pending, walked...)
		}

		if p.Type.IsMix() || p.Type == format.PageData || len(pending) > 0 {
			break
		}
	}

	schema, err := b.Finish()
	if err != nil {
		return err
	}

	rd.schema = schema
	rd.cur = cur
	rd.pendingPointers = pending
	rd.rowOnPage = 0

	return nil
}

// walkSubheaders dispatches every subheader pointer on p to the
// matching metadata.Builder handler, returning the pointers identified
// as compressed-row data (only possible on a META page).
func (rd *Reader) walkSubheaders(b *metadata.Builder, p *page.Page) ([]subheader.Pointer, error) {
	tableOffset := rd.hdr.PageBitOffset() + subheader.PointersOffset

	var pending []subheader.Pointer

	for i := 0; i < p.SubheaderCount; i++ {
		ptr, err := subheader.ReadPointer(p.Data, tableOffset, rd.hdr.WordWidth, i, rd.hdr.Engine)
		if err != nil {
			return nil, errs.Wrap(rd.path, "sas7bdat.walkSubheaders", err)
		}

		kind := subheader.Dispatch(p.Data, ptr, rd.hdr.WordWidth, b.Compressed())
		switch kind {
		case subheader.KindRowSize:
			err = b.HandleRowSize(p.Data, ptr.Offset)
		case subheader.KindColumnSize:
			err = b.HandleColumnSize(p.Data, ptr.Offset)
		case subheader.KindColumnText:
			err = b.HandleColumnText(p.Data, ptr.Offset)
		case subheader.KindColumnName:
			err = b.HandleColumnName(p.Data, ptr.Offset, ptr.Length)
		case subheader.KindColumnAttributes:
			err = b.HandleColumnAttributes(p.Data, ptr.Offset, ptr.Length)
		case subheader.KindFormatAndLabel:
			err = b.HandleFormatAndLabel(p.Data, ptr.Offset)
		case subheader.KindData:
			pending = append(pending, ptr)
		case subheader.KindUnrecognized:
			rd.warn("sas7bdat: unrecognized subheader signature at offset %d", ptr.Offset)
			// KindSkipped, KindSubheaderCounts, and KindColumnList all
			// dispatch to no handler here: KindSkipped is an
			// intentional no-op (truncated or zero-length pointer),
			// and the latter two carry nothing Schema needs.
		}
		if err != nil {
			return nil, errs.Wrap(rd.path, "sas7bdat.walkSubheaders", err)
		}
	}

	return pending, nil
}

// Rows returns an iterator over the dataset's rows in file order. Each
// step yields one row's cells, or a non-nil error if the file is
// truncated or malformed partway through; iteration stops after the
// first error.
func (rd *Reader) Rows() iter.Seq2[[]row.Cell, error] {
	return func(yield func([]row.Cell, error) bool) {
		for rd.rowsEmitted < rd.schema.RowCount {
			cells, err := rd.nextRow()
			if err != nil {
				yield(nil, err)
				return
			}
			rd.rowsEmitted++
			if !yield(cells, nil) {
				return
			}
		}
	}
}

// nextRow decodes the dataset's next row from the current page cursor,
// advancing that cursor (and, when exhausted, fetching the next page)
// as needed.
func (rd *Reader) nextRow() ([]row.Cell, error) {
	if rd.cur == nil {
		return nil, errs.Wrap(rd.path, "sas7bdat.Rows", errs.ErrTruncatedFile)
	}

	switch {
	case rd.cur.Type == format.PageMeta:
		if rd.rowOnPage >= len(rd.pendingPointers) {
			// A compressed dataset's META page can carry pure metadata
			// with no row pointers of its own, leaving this list
			// exhausted before row_count is satisfied. The original
			// reader's equivalent branch (readlines' IndexError case)
			// still advances its row counter and re-yields the
			// previous row here, silently duplicating it; this
			// refill retries instead of emitting anything, since a
			// metadata-only page contributes no row of its own.
			if err := rd.advancePage(); err != nil {
				return nil, err
			}
			return rd.nextRow()
		}

		ptr := rd.pendingPointers[rd.rowOnPage]
		rd.rowOnPage++
		return rd.decodeRow(rd.cur.Data, ptr.Offset, ptr.Length)

	case rd.cur.Type.IsMix():
		bitOffset := rd.hdr.PageBitOffset()
		x := bitOffset + page.SubheaderPointersOffset + rd.cur.SubheaderCount*rd.hdr.SubheaderPointerLength()
		rowBase := x + x%8 + rd.rowOnPage*rd.schema.RowLength

		cells, err := rd.decodeRow(rd.cur.Data, rowBase, rd.schema.RowLength)
		if err != nil {
			return nil, err
		}

		rd.rowOnPage++
		if rd.rowOnPage == min(rd.schema.RowCount, rd.schema.MixPageRowCount) {
			// A fetch failure here (truncation or EOF) is not this
			// row's problem: cells already decoded successfully, and
			// advancePage has left rd.cur nil, so the failure
			// resurfaces on the next call if more rows are expected.
			_ = rd.advancePage()
		}
		return cells, nil

	case rd.cur.Type == format.PageData:
		bitOffset := rd.hdr.PageBitOffset()
		rowBase := bitOffset + page.SubheaderPointersOffset + rd.rowOnPage*rd.schema.RowLength

		cells, err := rd.decodeRow(rd.cur.Data, rowBase, rd.schema.RowLength)
		if err != nil {
			return nil, err
		}

		rd.rowOnPage++
		if rd.rowOnPage == rd.cur.BlockCount {
			_ = rd.advancePage()
		}
		return cells, nil

	default:
		return nil, errs.Wrap(rd.path, "sas7bdat.Rows", fmt.Errorf("%w: %s", errs.ErrUnknownPageType, rd.cur.Type))
	}
}

// advancePage fetches the next page, re-running the metadata walk on
// it when it is itself a META page (a compressed dataset can interleave
// further column metadata between blocks of compressed rows), and
// skipping past any AMD, METC, COMP, or unrecognized page transparently
// — only META, MIX, and DATA pages ever carry rows.
func (rd *Reader) advancePage() error {
	for {
		p, err := rd.pages.Next()
		if err != nil {
			rd.cur = nil
			return err
		}

		rd.cur = p
		rd.rowOnPage = 0
		rd.pendingPointers = rd.pendingPointers[:0]

		if p.Type == format.PageMeta {
			pending, err := rd.discardMetadataBuilder(p)
			if err != nil {
				return err
			}
			rd.pendingPointers = pending
		}

		if p.Type.IsRowBearing() {
			return nil
		}
	}
}

// discardMetadataBuilder re-runs the subheader walk on a META page
// encountered after the schema is already built, to collect its
// compressed-row pointers. A fresh, throwaway Builder absorbs any
// metadata-handler calls the walk makes along the way — the schema is
// already frozen and does not change mid-stream.
func (rd *Reader) discardMetadataBuilder(p *page.Page) ([]subheader.Pointer, error) {
	b := metadata.NewBuilder(rd.hdr.WordWidth, rd.hdr.Engine, rd.warn)
	return rd.walkSubheaders(b, p)
}

// decodeRow resolves length bytes at offset within page data into a
// row's worth of bytes — decompressing first when the dataset is
// compressed and the stored length is shorter than a full row, or
// slicing directly otherwise — then projects it into cells.
func (rd *Reader) decodeRow(data []byte, offset, length int) ([]row.Cell, error) {
	rowLen := rd.schema.RowLength

	source := data
	start := offset

	if rd.schema.Compression != format.CompressionNone && length < rowLen {
		if offset < 0 || length < 0 || offset+length > len(data) {
			return nil, errs.Wrap(rd.path, "sas7bdat.decodeRow", fmt.Errorf("%w: compressed row pointer out of page bounds", errs.ErrTruncatedFile))
		}

		decompressed, err := rd.decompressor.DecompressRow(data[offset:offset+length], rowLen)
		if err != nil {
			return nil, errs.Wrap(rd.path, "sas7bdat.decodeRow", err)
		}
		source = decompressed
		start = 0
	}

	if start < 0 || start+rowLen > len(source) {
		return nil, errs.Wrap(rd.path, "sas7bdat.decodeRow", fmt.Errorf("%w: row extends past available bytes", errs.ErrTruncatedFile))
	}

	return row.Project(source[start:start+rowLen], rd.schema, rd.hdr.Engine, rd.formatSets)
}
