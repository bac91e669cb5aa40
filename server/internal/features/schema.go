package features

import "fmt"

// Attribute prefixes used to name indicator columns.
const (
	AttrOperator   = "OPERA"
	AttrFlightType = "TIPOVUELO"
	AttrMonth      = "MES"
)

// Schema is an ordered, immutable list of feature column names.
type Schema struct {
	version string
	columns []string
	index   map[string]int
}

// Default is the v1 schema: four operators, international flag and five months.
var Default = NewSchema("v1",
	"OPERA_Latin American Wings",
	"OPERA_Grupo LATAM",
	"OPERA_Sky Airline",
	"OPERA_Copa Air",
	"TIPOVUELO_I",
	"MES_4",
	"MES_7",
	"MES_10",
	"MES_11",
	"MES_12",
)

// NewSchema builds a schema from version and columns. It panics on duplicate
// column names since a schema is a compile-time constant in practice.
func NewSchema(version string, columns ...string) Schema {
	cols := make([]string, len(columns))
	copy(cols, columns)
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		if _, dup := idx[c]; dup {
			panic(fmt.Sprintf("features: duplicate column %q in schema %s", c, version))
		}
		idx[c] = i
	}
	return Schema{version: version, columns: cols, index: idx}
}

// Version returns the schema version tag.
func (s Schema) Version() string { return s.version }

// Width returns the number of columns.
func (s Schema) Width() int { return len(s.columns) }

// Columns returns a copy of the ordered column names.
func (s Schema) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

// Index returns the position of column name and whether it is part of the schema.
func (s Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Equal reports whether two schemas have the same version and column order.
func (s Schema) Equal(o Schema) bool {
	if s.version != o.version || len(s.columns) != len(o.columns) {
		return false
	}
	for i := range s.columns {
		if s.columns[i] != o.columns[i] {
			return false
		}
	}
	return true
}

// ColumnName returns the indicator column name for attribute attr and value v.
func ColumnName(attr string, v any) string {
	return fmt.Sprintf("%s_%v", attr, v)
}
