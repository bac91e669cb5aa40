package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/delaycast/delaycast/pkg/types"
	"github.com/delaycast/delaycast/server/internal/target"
)

// Column headers in the raw dataset.
const (
	ColumnOperator   = "OPERA"
	ColumnFlightType = "TIPOVUELO"
	ColumnMonth      = "MES"
)

// DefaultTargetColumn is the header of a precomputed delay label.
const DefaultTargetColumn = "delay"

// InvalidMonth replaces month values that are not numbers.
const InvalidMonth = -1

// Options control how a dataset is read.
type Options struct {
	// TargetColumn names an optional column of 0/1 labels. When the column
	// is present every row must carry a label; when absent Batch.Labels is nil.
	TargetColumn string
}

// Load reads the CSV file at path.
func Load(path string, opts Options) (types.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.Batch{}, fmt.Errorf("dataset: open %q: %w", path, err)
	}
	defer f.Close()

	b, err := Read(f, opts)
	if err != nil {
		return types.Batch{}, fmt.Errorf("dataset: %s: %w", path, err)
	}
	return b, nil
}

// Read parses CSV from r. The first line is the header.
func Read(r io.Reader, opts Options) (types.Batch, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return types.Batch{}, errors.New("empty input")
		}
		return types.Batch{}, fmt.Errorf("header: %w", err)
	}
	cols, err := locate(header, opts.TargetColumn)
	if err != nil {
		return types.Batch{}, err
	}

	var b types.Batch
	if cols.label >= 0 {
		b.Labels = []int{}
	}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return types.Batch{}, err
		}
		line, _ := cr.FieldPos(0)

		b.Records = append(b.Records, types.Record{
			Operator:   strings.TrimSpace(row[cols.operator]),
			FlightType: strings.TrimSpace(row[cols.flightType]),
			Month:      parseMonth(row[cols.month]),
			Scheduled:  field(row, cols.scheduled),
			Actual:     field(row, cols.actual),
		})
		if cols.label >= 0 {
			y, err := parseLabel(row[cols.label])
			if err != nil {
				return types.Batch{}, fmt.Errorf("line %d: column %q: %w", line, opts.TargetColumn, err)
			}
			b.Labels = append(b.Labels, y)
		}
	}
	if b.Records == nil {
		b.Records = []types.Record{}
	}
	return b, nil
}

type columns struct {
	operator, flightType, month, scheduled, actual, label int
}

func locate(header []string, targetColumn string) (columns, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}

	var missing []string
	find := func(name string) int {
		i, ok := idx[name]
		if !ok {
			missing = append(missing, name)
			return -1
		}
		return i
	}
	c := columns{
		operator:   find(ColumnOperator),
		flightType: find(ColumnFlightType),
		month:      find(ColumnMonth),
		scheduled:  -1,
		actual:     -1,
		label:      -1,
	}
	if targetColumn != "" {
		if i, ok := idx[targetColumn]; ok {
			c.label = i
		}
	}
	// Timestamps are only needed to derive a missing label column.
	if c.label < 0 {
		c.scheduled = find(target.FieldScheduled)
		c.actual = find(target.FieldActual)
	} else {
		c.scheduled = optional(idx, target.FieldScheduled)
		c.actual = optional(idx, target.FieldActual)
	}
	if len(missing) > 0 {
		return columns{}, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return c, nil
}

func optional(idx map[string]int, name string) int {
	if i, ok := idx[name]; ok {
		return i
	}
	return -1
}

// field returns the trimmed value at column i, or "" when the column is absent.
func field(row []string, i int) string {
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseMonth accepts integral numbers ("7", "7.0") and maps anything else
// to InvalidMonth.
func parseMonth(s string) int {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return InvalidMonth
	}
	return int(f)
}

func parseLabel(s string) (int, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "0", "0.0":
		return 0, nil
	case "1", "1.0":
		return 1, nil
	}
	return 0, fmt.Errorf("label %q is not 0 or 1", s)
}
