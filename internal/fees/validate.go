package fees

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/guarzo/fbascout/internal/model"
)

// ErrInvalidInput is wrapped by every ValidationError.
var ErrInvalidInput = errors.New("invalid fee inputs")

// FieldError names one rejected input.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every rejected field of a FeeInputs.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " " + f.Message
	}
	return fmt.Sprintf("%v: %s", ErrInvalidInput, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// Validate checks inputs before they reach Compute. It returns nil or a
// *ValidationError naming every offending field.
func Validate(in model.FeeInputs) error {
	var errs []FieldError

	numbers := []struct {
		name string
		v    float64
	}{
		{"sellPrice", in.SellPrice},
		{"productCost", in.ProductCost},
		{"shippingCost", in.ShippingCost},
		{"prepCost", in.PrepCost},
		{"weight", in.Weight},
		{"length", in.Length},
		{"width", in.Width},
		{"height", in.Height},
		{"taxRate", in.TaxRate},
		{"customFees", in.CustomFees},
	}
	for _, n := range numbers {
		switch {
		case math.IsNaN(n.v) || math.IsInf(n.v, 0):
			errs = append(errs, FieldError{n.name, "must be a finite number"})
		case n.v < 0:
			errs = append(errs, FieldError{n.name, "must not be negative"})
		}
	}

	if in.UnitsPerPack < 1 {
		errs = append(errs, FieldError{"unitsPerPack", "must be at least 1"})
	}
	if in.TaxRate > 1 {
		errs = append(errs, FieldError{"taxRate", "must be a fraction no greater than 1"})
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ComputeChecked validates and then computes.
func ComputeChecked(in model.FeeInputs) (model.FeeResult, error) {
	if err := Validate(in); err != nil {
		return model.FeeResult{}, err
	}
	return Compute(in), nil
}
