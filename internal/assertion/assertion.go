// Package assertion compares observed chart output against literal fixtures.
// Every failure carries both sides so a report can be read without re-running.
package assertion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// ErrMismatch is matched by every assertion failure
var ErrMismatch = errors.New("observed value does not match expected")

// MismatchError describes a failed comparison
type MismatchError struct {
	What     string
	Observed any
	Expected any
	Diff     string
}

func (e *MismatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s mismatch\n  observed: %v\n  expected: %v", e.What, e.Observed, e.Expected)
	if e.Diff != "" {
		fmt.Fprintf(&b, "\n  diff (-expected +observed):\n%s", e.Diff)
	}
	return b.String()
}

// Is lets errors.Is(err, ErrMismatch) match
func (e *MismatchError) Is(target error) bool {
	return target == ErrMismatch
}

// Equal is a deep, order-sensitive comparison. Nil and empty slices are equal.
func Equal[T any](what string, observed, expected T) error {
	opts := cmp.Options{cmpopts.EquateEmpty()}
	if cmp.Equal(expected, observed, opts) {
		return nil
	}
	return &MismatchError{
		What:     what,
		Observed: observed,
		Expected: expected,
		Diff:     cmp.Diff(expected, observed, opts),
	}
}

// Contains checks that observed holds substr
func Contains(what, observed, substr string) error {
	if strings.Contains(observed, substr) {
		return nil
	}
	return &MismatchError{
		What:     what,
		Observed: observed,
		Expected: fmt.Sprintf("contains %q", substr),
	}
}

// True checks a boolean condition
func True(what string, ok bool) error {
	if ok {
		return nil
	}
	return &MismatchError{What: what, Observed: false, Expected: true}
}
