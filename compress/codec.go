package compress

import (
	"fmt"

	"github.com/go-sas/sas7bdat/errs"
	"github.com/go-sas/sas7bdat/format"
)

// RowDecompressor expands one compressed row payload back to its original,
// uncompressed row_length bytes.
//
// Example:
//
//	dec, err := compress.NewDecompressor(format.CompressionRLE)
//	if err != nil {
//	    return fmt.Errorf("select decompressor: %w", err)
//	}
//	row, err := dec.DecompressRow(compressed, rowLength)
//	if err != nil {
//	    return fmt.Errorf("decompress row: %w", err)
//	}
//
// Thread Safety: implementations in this package hold no mutable state and
// are safe for concurrent use.
type RowDecompressor interface {
	// DecompressRow expands src, the compressed form of one row of
	// rowLength bytes.
	//
	// src holds the compressed payload read directly from a page at the
	// row's pointer offset; its length is sas7bdat's own compressed
	// row length, which is independent of rowLength.
	//
	// Only the no-op implementation forces its output to rowLength. RLE
	// output is as long as src's commands produce; RDC output is at least
	// rowLength bytes, longer when a command writes past it.
	DecompressRow(src []byte, rowLength int) ([]byte, error)
}

var builtinDecompressors = map[format.CompressionType]RowDecompressor{
	format.CompressionNone: NewNoOpRowDecompressor(),
	format.CompressionRLE:  NewRLEDecompressor(),
	format.CompressionRDC:  NewRDCDecompressor(),
}

// NewDecompressor returns the RowDecompressor for compressionType.
func NewDecompressor(compressionType format.CompressionType) (RowDecompressor, error) {
	if dec, ok := builtinDecompressors[compressionType]; ok {
		return dec, nil
	}

	return nil, fmt.Errorf("%w: %s", errs.ErrUnsupportedCompression, compressionType)
}
