package model

import (
	"fmt"
	"strings"
)

// Comparator is the relational operator a rule applies between a sample value and its threshold.
type Comparator string

const (
	ComparatorGT  Comparator = "GT"
	ComparatorLT  Comparator = "LT"
	ComparatorGTE Comparator = "GTE"
	ComparatorLTE Comparator = "LTE"
	ComparatorEQ  Comparator = "EQ"
)

// Comparators lists every supported comparator in display order.
var Comparators = []Comparator{ComparatorGT, ComparatorLT, ComparatorGTE, ComparatorLTE, ComparatorEQ}

func (c Comparator) String() string { return string(c) }

// IsValid reports whether c is one of the five supported comparators.
func (c Comparator) IsValid() bool {
	switch c {
	case ComparatorGT, ComparatorLT, ComparatorGTE, ComparatorLTE, ComparatorEQ:
		return true
	default:
		return false
	}
}

// Evaluate reports whether value relates to threshold according to c.
// EQ is exact float equality. Unknown comparators never match.
func (c Comparator) Evaluate(value, threshold float64) bool {
	switch c {
	case ComparatorGT:
		return value > threshold
	case ComparatorLT:
		return value < threshold
	case ComparatorGTE:
		return value >= threshold
	case ComparatorLTE:
		return value <= threshold
	case ComparatorEQ:
		return value == threshold
	default:
		return false
	}
}

// ParseComparator converts s into a Comparator, rejecting anything outside the supported set.
// Matching is exact: "gt" is not accepted.
func ParseComparator(s string) (Comparator, error) {
	c := Comparator(s)
	if !c.IsValid() {
		return "", &ValidationError{Field: "comparator", Message: comparatorMessage()}
	}
	return c, nil
}

func comparatorMessage() string {
	names := make([]string, 0, len(Comparators))
	for _, c := range Comparators {
		names = append(names, c.String())
	}
	return fmt.Sprintf("comparator must be one of %s", strings.Join(names, ", "))
}
