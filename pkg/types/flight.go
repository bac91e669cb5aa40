package types

// Flight type codes used by the TIPOVUELO column.
const (
	FlightTypeDomestic      = "N"
	FlightTypeInternational = "I"
)

// Record is one raw flight observation. Timestamps are kept as the raw strings
// found in the dataset; the target builder parses them when a label is needed.
type Record struct {
	// Operator is the airline name (OPERA), free text.
	Operator string

	// FlightType is "N" (domestic) or "I" (international) (TIPOVUELO).
	FlightType string

	// Month is the month of the scheduled departure, 1–12 (MES).
	Month int

	// Scheduled is the scheduled departure timestamp (Fecha-I).
	Scheduled string

	// Actual is the actual departure timestamp (Fecha-O).
	Actual string
}

// Batch is a set of records plus an optional label column.
// Labels is nil when the source carried no label column; otherwise it has one
// entry per record.
type Batch struct {
	Records []Record
	Labels  []int
}

// HasLabels reports whether the batch already carries a label column.
func (b Batch) HasLabels() bool {
	return b.Labels != nil
}

// Len returns the number of records in the batch.
func (b Batch) Len() int {
	return len(b.Records)
}

// Flight is the request-time description of a flight to score.
// JSON names match the dataset columns so clients can post rows verbatim.
type Flight struct {
	Operator   string `json:"OPERA"`
	FlightType string `json:"TIPOVUELO"`
	Month      int    `json:"MES"`
}

// Record converts the request payload into a raw record with no timestamps.
func (f Flight) Record() Record {
	return Record{
		Operator:   f.Operator,
		FlightType: f.FlightType,
		Month:      f.Month,
	}
}

// Records converts a slice of flights into raw records, preserving order.
func Records(flights []Flight) []Record {
	out := make([]Record, len(flights))
	for i, f := range flights {
		out[i] = f.Record()
	}
	return out
}
