// Package metadata assembles a dataset's schema from the sequence of
// metadata subheaders a sas7bdat file's pages carry: row geometry,
// column count, the shared text pool, column names, column
// attributes, and per-column format/label. The Builder accumulates
// state across handler calls and only produces a Schema once every
// required piece has been seen. A column is assembled when its
// format-and-label subheader is handled, from the column names and
// attributes recorded before it.
package metadata
