package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation marks a completion that does not conform to its stage shape.
var ErrValidation = errors.New("structured output validation failed")

// ValidationError lists every problem found in one decoded output.
type ValidationError struct {
	Shape    string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Shape, strings.Join(e.Problems, "; "))
}

// Unwrap lets callers match ErrValidation with errors.Is.
func (e *ValidationError) Unwrap() error { return ErrValidation }

type validator struct {
	shape    string
	problems []string
}

func newValidator(shape string) *validator {
	return &validator{shape: shape}
}

func (v *validator) missing(path string) {
	v.problems = append(v.problems, path+" is required")
}

func (v *validator) required(path, value string) {
	if strings.TrimSpace(value) == "" {
		v.missing(path)
	}
}

func (v *validator) oneOf(path, value string, allowed []string) {
	if strings.TrimSpace(value) == "" {
		v.missing(path)
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.problems = append(v.problems, fmt.Sprintf("%s must be one of %v, got %q", path, allowed, value))
}

func (v *validator) url(path, value string) {
	if strings.TrimSpace(value) == "" {
		v.missing(path)
		return
	}
	if !isAbsoluteURL(value) {
		v.problems = append(v.problems, fmt.Sprintf("%s must be an absolute http(s) URL, got %q", path, value))
	}
}

func (v *validator) err() error {
	if len(v.problems) == 0 {
		return nil
	}
	return &ValidationError{Shape: v.shape, Problems: v.problems}
}

func indexed(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}
