package crm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedQuantifier is returned when a cardinality string is not of the
// form "min..max".
var ErrMalformedQuantifier = errors.New("malformed quantifier")

// Quantifier is a property cardinality constraint such as "0..1" or "1..*".
type Quantifier struct {
	Min       int
	Max       int
	Unbounded bool
}

// ParseQuantifier parses "min..max" where max may be "*" or "n".
func ParseQuantifier(s string) (Quantifier, error) {
	minPart, maxPart, ok := strings.Cut(strings.TrimSpace(s), "..")
	if !ok {
		return Quantifier{}, fmt.Errorf("%w: %q", ErrMalformedQuantifier, s)
	}

	minVal, err := strconv.Atoi(minPart)
	if err != nil || minVal < 0 {
		return Quantifier{}, fmt.Errorf("%w: invalid minimum in %q", ErrMalformedQuantifier, s)
	}

	if maxPart == "*" || maxPart == "n" {
		return Quantifier{Min: minVal, Unbounded: true}, nil
	}

	maxVal, err := strconv.Atoi(maxPart)
	if err != nil {
		return Quantifier{}, fmt.Errorf("%w: invalid maximum in %q", ErrMalformedQuantifier, s)
	}
	if maxVal < minVal {
		return Quantifier{}, fmt.Errorf("%w: maximum below minimum in %q", ErrMalformedQuantifier, s)
	}

	return Quantifier{Min: minVal, Max: maxVal}, nil
}

// MustParseQuantifier is like ParseQuantifier but panics on error.
func MustParseQuantifier(s string) Quantifier {
	q, err := ParseQuantifier(s)
	if err != nil {
		panic(err)
	}
	return q
}

// Allows reports whether n values satisfy the constraint.
func (q Quantifier) Allows(n int) bool {
	if n < q.Min {
		return false
	}
	return q.Unbounded || n <= q.Max
}

func (q Quantifier) String() string {
	if q.Unbounded {
		return fmt.Sprintf("%d..*", q.Min)
	}
	return fmt.Sprintf("%d..%d", q.Min, q.Max)
}

func (q Quantifier) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

func (q *Quantifier) UnmarshalText(text []byte) error {
	parsed, err := ParseQuantifier(string(text))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}
