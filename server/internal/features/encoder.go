package features

import (
	"strings"

	"github.com/delaycast/delaycast/pkg/types"
	"github.com/delaycast/delaycast/server/internal/target"
)

// Matrix is a dense row-major feature matrix whose columns follow a schema.
type Matrix struct {
	Columns []string
	Data    [][]float64
}

// Rows returns the number of rows.
func (m Matrix) Rows() int { return len(m.Data) }

// Width returns the number of columns.
func (m Matrix) Width() int { return len(m.Columns) }

// Row returns row i. The slice is shared with the matrix.
func (m Matrix) Row(i int) []float64 { return m.Data[i] }

// Encoder one-hot encodes raw records onto a fixed schema.
// It holds no mutable state and is safe for concurrent use.
type Encoder struct {
	schema Schema
}

// NewEncoder returns an Encoder for schema.
func NewEncoder(schema Schema) *Encoder {
	return &Encoder{schema: schema}
}

// Schema returns the encoder's schema.
func (e *Encoder) Schema() Schema { return e.schema }

// Encode maps records to a matrix with exactly the schema's columns.
func (e *Encoder) Encode(records []types.Record) Matrix {
	m := Matrix{
		Columns: e.schema.Columns(),
		Data:    make([][]float64, len(records)),
	}
	width := e.schema.Width()
	for i, r := range records {
		row := make([]float64, width)
		for _, name := range indicators(r) {
			if j, ok := e.schema.Index(name); ok {
				row[j] = 1
			}
		}
		m.Data[i] = row
	}
	return m
}

// indicators returns the indicator columns a record switches on before
// reindexing. Every attribute contributes exactly one name.
func indicators(r types.Record) [3]string {
	return [3]string{
		ColumnName(AttrOperator, r.Operator),
		ColumnName(AttrFlightType, r.FlightType),
		ColumnName(AttrMonth, r.Month),
	}
}

// Preprocess turns a raw batch into features and, when targetColumn is set,
// the parallel label vector. Labels are derived from the timestamps unless the
// batch already carries them.
func (e *Encoder) Preprocess(batch types.Batch, targetColumn string) (Matrix, []int, error) {
	var labels []int
	if targetColumn != "" {
		labelled, err := target.Build(batch)
		if err != nil {
			return Matrix{}, nil, err
		}
		labels = labelled.Labels
	}
	return e.Encode(batch.Records), labels, nil
}

// Key returns a compact string identifying an encoded row, suitable as a
// cache key. Rows from the same schema with equal values have equal keys.
func Key(row []float64) string {
	var b strings.Builder
	b.Grow(len(row))
	for _, v := range row {
		if v != 0 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}
