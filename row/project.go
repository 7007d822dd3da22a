package row

import (
	"github.com/go-sas/sas7bdat/endian"
	"github.com/go-sas/sas7bdat/errs"
	"github.com/go-sas/sas7bdat/format"
	"github.com/go-sas/sas7bdat/metadata"
	"github.com/go-sas/sas7bdat/primitive"
)

// Project decodes one row's worth of bytes into a Cell per column.
// source must already be the fully resolved, uncompressed row bytes —
// a direct page slice for an uncompressed dataset, or a
// RowDecompressor's output otherwise — with column offsets read
// relative to source[0].
//
// Projection stops at the first column whose stored length is zero,
// leaving the remaining cells absent from the result: some producers
// truncate a row's trailing columns this way.
func Project(source []byte, schema *metadata.Schema, engine endian.EndianEngine, sets FormatSets) ([]Cell, error) {
	cells := make([]Cell, 0, len(schema.Columns))

	for _, col := range schema.Columns {
		if col.Length == 0 {
			break
		}

		start := col.DataOffset
		end := start + col.Length
		if start < 0 || end > len(source) {
			return nil, errs.Wrap("", "row.Project", errs.ErrTruncatedField)
		}
		field := source[start:end]

		cell, err := projectColumn(col, field, engine, sets)
		if err != nil {
			return nil, err
		}
		cells = append(cells, cell)
	}

	return cells, nil
}

func projectColumn(col metadata.Column, field []byte, engine endian.EndianEngine, sets FormatSets) (Cell, error) {
	if col.Type == format.LogicalString {
		s, err := primitive.ReadString(field, len(field))
		if err != nil {
			return Cell{}, err
		}
		return Cell{Kind: KindString, String: s}, nil
	}

	if col.IsCompactInteger() {
		v, err := primitive.ReadInt(field, len(field), engine)
		if err != nil {
			return Cell{}, err
		}
		return Cell{Kind: KindInteger, Integer: v}, nil
	}

	switch sets.classify(col.Format) {
	case KindTime:
		d, missing, err := primitive.ReadTime(field, len(field), engine)
		if err != nil {
			return Cell{}, err
		}
		if missing {
			return Cell{Kind: KindMissing}, nil
		}
		return Cell{Kind: KindTime, Duration: d}, nil

	case KindDateTime:
		t, missing, err := primitive.ReadDateTime(field, len(field), engine)
		if err != nil {
			return Cell{}, err
		}
		if missing {
			return Cell{Kind: KindMissing}, nil
		}
		return Cell{Kind: KindDateTime, Time: t}, nil

	case KindDate:
		t, missing, err := primitive.ReadDate(field, len(field), engine)
		if err != nil {
			return Cell{}, err
		}
		if missing {
			return Cell{Kind: KindMissing}, nil
		}
		return Cell{Kind: KindDate, Time: t}, nil

	default:
		v, missing, err := primitive.ReadNumeric(field, len(field), engine)
		if err != nil {
			return Cell{}, err
		}
		if missing {
			return Cell{Kind: KindMissing}, nil
		}
		return Cell{Kind: KindDouble, Double: v}, nil
	}
}
