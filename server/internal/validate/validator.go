package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/delaycast/delaycast/pkg/types"
)

// Field names as they appear on the wire.
const (
	FieldOperator   = "OPERA"
	FieldFlightType = "TIPOVUELO"
	FieldMonth      = "MES"
)

// ValidationError describes one field outside the training domain.
type ValidationError struct {
	Field   string
	Value   any
	Allowed string
	Reason  string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// ValidationErrors holds every failing field of one record in field order.
type ValidationErrors []*ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, ", ")
}

// Fields returns the failing field names.
func (es ValidationErrors) Fields() []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Field
	}
	return out
}

// checked mirrors types.Record with the domain rules as tags.
type checked struct {
	Operator   string `validate:"catalog"`
	FlightType string `validate:"oneof=N I"`
	Month      int    `validate:"min=1,max=12"`
}

// Validator checks records against a fixed catalog.
type Validator struct {
	catalog *Catalog
	v       *validator.Validate
}

// New returns a Validator bound to catalog. A nil catalog rejects every operator.
func New(catalog *Catalog) *Validator {
	v := validator.New()
	_ = v.RegisterValidation("catalog", func(fl validator.FieldLevel) bool {
		return catalog.Contains(fl.Field().String())
	})
	return &Validator{catalog: catalog, v: v}
}

// Catalog returns the operator catalog the validator enforces.
func (v *Validator) Catalog() *Catalog { return v.catalog }

// Validate returns r unchanged when it is inside the training domain.
// Otherwise it returns ValidationErrors listing every failing field.
func (v *Validator) Validate(r types.Record) (types.Record, error) {
	err := v.v.Struct(checked{Operator: r.Operator, FlightType: r.FlightType, Month: r.Month})
	if err == nil {
		return r, nil
	}
	var fes validator.ValidationErrors
	if !errors.As(err, &fes) {
		return types.Record{}, fmt.Errorf("validate: %w", err)
	}
	out := make(ValidationErrors, 0, len(fes))
	for _, fe := range fes {
		out = append(out, translate(fe, r))
	}
	return types.Record{}, out
}

// ValidateAll validates records in order and stops at the first failure,
// returning its index.
func (v *Validator) ValidateAll(records []types.Record) (int, error) {
	for i, r := range records {
		if _, err := v.Validate(r); err != nil {
			return i, err
		}
	}
	return -1, nil
}

func translate(fe validator.FieldError, r types.Record) *ValidationError {
	switch fe.StructField() {
	case "Operator":
		return &ValidationError{
			Field:   FieldOperator,
			Value:   r.Operator,
			Allowed: "operators seen in training",
			Reason:  "Invalid OPERA",
		}
	case "FlightType":
		return &ValidationError{
			Field:   FieldFlightType,
			Value:   r.FlightType,
			Allowed: "N, I",
			Reason:  "Invalid TIPOVUELO (must be 'N' or 'I')",
		}
	default:
		return &ValidationError{
			Field:   FieldMonth,
			Value:   r.Month,
			Allowed: "1..12",
			Reason:  "Invalid MES (must be 1..12)",
		}
	}
}
