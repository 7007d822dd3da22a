// Package subheader reads a metadata-bearing page's subheader pointer
// table and classifies each pointer by its 4- or 8-byte signature,
// dispatching it to the metadata handler (or pending-row list) that
// owns it.
package subheader
