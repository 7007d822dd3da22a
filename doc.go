// Package sas7bdat reads SAS's sas7bdat dataset format: a paged binary
// container holding a column schema and a fixed-width row stream,
// optionally RLE- or RDC-compressed.
//
// # Basic Usage
//
//	rd, err := sas7bdat.Open("data.sas7bdat")
//	if err != nil {
//	    return fmt.Errorf("open dataset: %w", err)
//	}
//	defer rd.Close()
//
//	fmt.Println(rd.Schema())
//
//	for cells, err := range rd.Rows() {
//	    if err != nil {
//	        return fmt.Errorf("read row: %w", err)
//	    }
//	    for _, c := range cells {
//	        fmt.Print(c, " ")
//	    }
//	    fmt.Println()
//	}
//
// # Design
//
// Opening a dataset eagerly walks the metadata-bearing pages (META,
// MIX, AMD) from the start of the file up to the first page that
// carries rows (a MIX or DATA page, or a META page holding
// compressed-row pointers), assembling the column schema before the
// first row is ever requested — this mirrors how the format's own
// metadata walk must complete before row offsets are computable at all,
// since a MIX page's row stride depends on column layout that might
// span several pages. META pages met later are read only for their
// compressed-row pointers; their metadata is not added to the schema.
// Row decoding itself is lazy: Rows() streams one row at a time
// from the page cached by the metadata walk, decompressing as needed,
// without loading the whole file into memory.
//
// # Thread Safety
//
// A Reader is not safe for concurrent use: Rows() advances the
// reader's own page cursor, so two goroutines calling it on the same
// Reader will corrupt each other's position. Open separate Readers (or
// serialize access) for concurrent iteration.
package sas7bdat
