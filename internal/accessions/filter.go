package accessions

import (
	"strings"

	"accessionreport/pkg/sqlquery"
)

// Sentinel parameter values that switch a filter from exact match to a
// set/unset test.
const (
	NoDefinedValue  = "No Defined Value"
	AnyDefinedValue = "Any Defined Value"
)

// FilterState is the shape of a single filter dimension.
type FilterState int

const (
	Unconstrained FilterState = iota
	MustBeUnset
	MustBeSet
	Equals
)

func (s FilterState) String() string {
	switch s {
	case MustBeUnset:
		return "must_be_unset"
	case MustBeSet:
		return "must_be_set"
	case Equals:
		return "equals"
	default:
		return "unconstrained"
	}
}

// FilterSpec constrains one dimension. Value is only meaningful for Equals.
type FilterSpec struct {
	State FilterState
	Value string
}

// NoFilter leaves the dimension unconstrained.
func NoFilter() FilterSpec { return FilterSpec{} }

// Unset requires the dimension to have no value.
func Unset() FilterSpec { return FilterSpec{State: MustBeUnset} }

// Set requires the dimension to have some value.
func Set() FilterSpec { return FilterSpec{State: MustBeSet} }

// Is requires the dimension to equal v exactly.
func Is(v string) FilterSpec { return FilterSpec{State: Equals, Value: v} }

// ParseStatusFilter maps the external processing status/priority contract
// onto a FilterSpec. Blank input is unconstrained.
func ParseStatusFilter(raw string) FilterSpec {
	switch {
	case strings.TrimSpace(raw) == "":
		return NoFilter()
	case raw == NoDefinedValue:
		return Unset()
	case raw == AnyDefinedValue:
		return Set()
	default:
		return Is(raw)
	}
}

// ParseClassificationFilter maps the classification parameter onto a
// FilterSpec. Classification only supports exact matches.
func ParseClassificationFilter(raw string) FilterSpec {
	if strings.TrimSpace(raw) == "" {
		return NoFilter()
	}
	return Is(raw)
}

// Active reports whether the filter narrows results.
func (f FilterSpec) Active() bool { return f.State != Unconstrained }

// String renders the filter in its external parameter form.
func (f FilterSpec) String() string {
	switch f.State {
	case MustBeUnset:
		return NoDefinedValue
	case MustBeSet:
		return AnyDefinedValue
	case Equals:
		return f.Value
	default:
		return ""
	}
}

// Predicate returns the WHERE fragment testing column, or false when the
// filter is unconstrained.
func (f FilterSpec) Predicate(column string) (sqlquery.Predicate, bool) {
	switch f.State {
	case MustBeUnset:
		return sqlquery.IsNull(column), true
	case MustBeSet:
		return sqlquery.NotNull(column), true
	case Equals:
		return sqlquery.Eq(column, f.Value), true
	default:
		return sqlquery.Predicate{}, false
	}
}
