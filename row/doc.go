// Package row projects a dataset row's raw bytes — taken directly
// from a page or expanded by a RowDecompressor — into a slice of typed
// Cells, one per column, following each column's logical type, stored
// width, and optional format string.
package row
