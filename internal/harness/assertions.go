package harness

import (
	"fmt"
)

// AssertionError reports one failed structural expectation.
type AssertionError struct {
	Circuit  string
	Field    string
	Expected int
	Actual   int
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("circuit %q: expected %d %s layers, got %d", e.Circuit, e.Expected, e.Field, e.Actual)
}

// checkExpect validates one circuit expectation against the built
// pipeline.
func checkExpect(r *Result, expect CircuitExpect) error {
	c, ok := r.Circuits[expect.Circuit]
	if !ok {
		return fmt.Errorf("expectation references unknown circuit %q", expect.Circuit)
	}

	checks := []struct {
		field string
		want  *int
		got   int
	}{
		{"total", expect.Layers, len(c.Layers())},
		{"input", expect.Inputs, len(c.InputLayers())},
		{"dense", expect.Dense, len(c.DenseLayers())},
		{"product", expect.Products, len(c.ProductLayers())},
		{"mixing", expect.Mixing, len(c.MixingLayers())},
	}
	for _, check := range checks {
		if check.want != nil && *check.want != check.got {
			return &AssertionError{
				Circuit:  expect.Circuit,
				Field:    check.field,
				Expected: *check.want,
				Actual:   check.got,
			}
		}
	}
	return nil
}
