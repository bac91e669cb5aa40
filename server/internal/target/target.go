package target

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/delaycast/delaycast/pkg/types"
)

// DelayThreshold is the departure delay above which a flight counts as delayed.
// A delay of exactly DelayThreshold is not a delay.
const DelayThreshold = 15 * time.Minute

// Field names reported in MalformedTimestampError.
const (
	FieldScheduled = "Fecha-I"
	FieldActual    = "Fecha-O"
)

// layouts are the timestamp formats accepted for Fecha-I / Fecha-O, tried in order.
var layouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
}

// ErrMalformedTimestamp is the sentinel matched by errors.Is for any
// *MalformedTimestampError.
var ErrMalformedTimestamp = errors.New("malformed timestamp")

// MalformedTimestampError reports the first record whose timestamp could not
// be parsed.
type MalformedTimestampError struct {
	Row   int
	Field string
	Value string
	Err   error
}

func (e *MalformedTimestampError) Error() string {
	return fmt.Sprintf("target: row %d: %s %q: %v", e.Row, e.Field, e.Value, ErrMalformedTimestamp)
}

// Is makes errors.Is(err, ErrMalformedTimestamp) succeed.
func (e *MalformedTimestampError) Is(target error) bool {
	return target == ErrMalformedTimestamp
}

func (e *MalformedTimestampError) Unwrap() error { return e.Err }

// Build returns batch with a label for every record.
//
// When batch already has labels they are trusted and returned as-is. The
// returned batch shares its Records slice with the input.
func Build(batch types.Batch) (types.Batch, error) {
	if batch.HasLabels() {
		return batch, nil
	}

	labels := make([]int, len(batch.Records))
	for i, r := range batch.Records {
		sched, err := ParseTimestamp(r.Scheduled)
		if err != nil {
			return types.Batch{}, &MalformedTimestampError{Row: i, Field: FieldScheduled, Value: r.Scheduled, Err: err}
		}
		actual, err := ParseTimestamp(r.Actual)
		if err != nil {
			return types.Batch{}, &MalformedTimestampError{Row: i, Field: FieldActual, Value: r.Actual, Err: err}
		}
		labels[i] = Label(sched, actual)
	}

	return types.Batch{Records: batch.Records, Labels: labels}, nil
}

// Label applies the delay rule to one pair of timestamps.
func Label(scheduled, actual time.Time) int {
	if actual.Sub(scheduled) > DelayThreshold {
		return 1
	}
	return 0
}

// ParseTimestamp parses s using the accepted dataset layouts, in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty value")
	}
	var lastErr error
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
