package metadata

import (
	"fmt"
	"strings"

	"github.com/go-sas/sas7bdat/format"
)

// Column describes one column of a dataset's row layout.
type Column struct {
	Index      int
	Name       string
	Label      string
	Format     string
	Type       format.LogicalType
	Length     int
	DataOffset int
}

// IsCompactInteger reports whether this column's stored width is the
// legacy 2-byte-or-smaller compact form, always decoded as a signed
// 16-bit integer regardless of format.
func (c Column) IsCompactInteger() bool {
	return c.Type == format.LogicalNumber && c.Length <= 2
}

// Schema is a dataset's frozen row layout: geometry, compression, and
// the ordered column list.
type Schema struct {
	DatasetName     string
	RowLength       int
	RowCount        int
	MixPageRowCount int
	ColumnCount     int
	Compression     format.CompressionType
	Columns         []Column
}

// String renders the schema as an aligned table, in the style of the
// original reader's human-readable dataset summary.
func (s *Schema) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Dataset %q: %d rows, %d columns, compression=%s\n",
		s.DatasetName, s.RowCount, s.ColumnCount, s.Compression)

	nameWidth, typeWidth, formatWidth := len("Name"), len("Type"), len("Format")
	for _, c := range s.Columns {
		if len(c.Name) > nameWidth {
			nameWidth = len(c.Name)
		}
		if len(c.Type.String()) > typeWidth {
			typeWidth = len(c.Type.String())
		}
		if len(c.Format) > formatWidth {
			formatWidth = len(c.Format)
		}
	}

	fmt.Fprintf(&b, "%-4s %-*s %-*s %6s %-*s %s\n",
		"Num", nameWidth, "Name", typeWidth, "Type", "Length", formatWidth, "Format", "Label")
	for _, c := range s.Columns {
		fmt.Fprintf(&b, "%-4d %-*s %-*s %6d %-*s %s\n",
			c.Index+1, nameWidth, c.Name, typeWidth, c.Type.String(), c.Length, formatWidth, c.Format, c.Label)
	}

	return b.String()
}
