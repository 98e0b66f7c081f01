package domain

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// RangeKind tags the two shapes a NormalRange can take.
type RangeKind string

const (
	RangeKindInterval    RangeKind = "interval"
	RangeKindCategorical RangeKind = "categorical"
)

// Band is one named category of a categorical range, e.g. "Pre-Diabetes: 5.7 - 6.4".
// Boundary is the representative numeric edge derived from Description.
type Band struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Boundary    float64 `json:"boundary"`
}

// NormalRange is either a closed numeric interval or a set of labelled bands.
// Construct it with NewIntervalRange or NewCategoricalRange so Kind and the
// payload always agree.
type NormalRange struct {
	Kind  RangeKind `json:"kind"`
	Min   *float64  `json:"min,omitempty"`
	Max   *float64  `json:"max,omitempty"`
	Bands []Band    `json:"bands,omitempty"`
}

// NewIntervalRange builds a numeric range. min must not exceed max.
func NewIntervalRange(min, max float64) (*NormalRange, error) {
	if !IsFinite(min) || !IsFinite(max) {
		return nil, fmt.Errorf("%w: bounds must be finite", ErrInvalidRange)
	}
	if min > max {
		return nil, fmt.Errorf("%w: min %v exceeds max %v", ErrInvalidRange, min, max)
	}
	return &NormalRange{Kind: RangeKindInterval, Min: &min, Max: &max}, nil
}

// MustIntervalRange is NewIntervalRange for static tables; it panics on invalid bounds.
func MustIntervalRange(min, max float64) *NormalRange {
	r, err := NewIntervalRange(min, max)
	if err != nil {
		panic(err)
	}
	return r
}

var bandNumberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// NewCategoricalRange builds a labelled range from name/description pairs.
// Each band's boundary is the last number in its description, so "< 5.7"
// yields 5.7 and "5.7 - 6.4" yields 6.4.
func NewCategoricalRange(bands ...Band) (*NormalRange, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("%w: categorical range needs at least one band", ErrInvalidRange)
	}
	out := make([]Band, 0, len(bands))
	for _, b := range bands {
		nums := bandNumberPattern.FindAllString(b.Description, -1)
		if len(nums) == 0 {
			return nil, fmt.Errorf("%w: band %q has no numeric boundary", ErrInvalidRange, b.Name)
		}
		boundary, err := strconv.ParseFloat(nums[len(nums)-1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: band %q: %v", ErrInvalidRange, b.Name, err)
		}
		b.Boundary = boundary
		out = append(out, b)
	}
	return &NormalRange{Kind: RangeKindCategorical, Bands: out}, nil
}

// HbA1cRange is the categorical range attached to every HbA1c result.
func HbA1cRange() *NormalRange {
	r, _ := NewCategoricalRange(
		Band{Name: "normal", Description: "< 5.7"},
		Band{Name: "pre_diabetes", Description: "5.7 - 6.4"},
		Band{Name: "diabetes", Description: "≥ 6.5"},
	)
	return r
}

// IsInterval reports whether the range carries numeric bounds.
func (r *NormalRange) IsInterval() bool {
	return r != nil && r.Kind == RangeKindInterval && r.Min != nil && r.Max != nil
}

// IsCategorical reports whether the range is a set of bands.
func (r *NormalRange) IsCategorical() bool {
	return r != nil && r.Kind == RangeKindCategorical && len(r.Bands) > 0
}

// Bounds returns the interval bounds. ok is false for categorical or nil ranges.
func (r *NormalRange) Bounds() (min, max float64, ok bool) {
	if !r.IsInterval() {
		return 0, 0, false
	}
	return *r.Min, *r.Max, true
}

// Deviation compares value against an interval range.
// Categorical ranges never report a deviation.
func (r *NormalRange) Deviation(value float64) DeviationType {
	min, max, ok := r.Bounds()
	if !ok {
		return DeviationNone
	}
	switch {
	case value < min:
		return DeviationLow
	case value > max:
		return DeviationHigh
	default:
		return DeviationNone
	}
}

// Boundaries returns the representative band boundaries of a categorical range.
func (r *NormalRange) Boundaries() []float64 {
	if !r.IsCategorical() {
		return nil
	}
	out := make([]float64, 0, len(r.Bands))
	for _, b := range r.Bands {
		out = append(out, b.Boundary)
	}
	return out
}

// Validate checks the Kind/payload pairing after decoding from storage.
func (r *NormalRange) Validate() error {
	if r == nil {
		return nil
	}
	switch r.Kind {
	case RangeKindInterval:
		if r.Min == nil || r.Max == nil {
			return fmt.Errorf("%w: interval range missing bounds", ErrInvalidRange)
		}
		if *r.Min > *r.Max {
			return fmt.Errorf("%w: min %v exceeds max %v", ErrInvalidRange, *r.Min, *r.Max)
		}
	case RangeKindCategorical:
		if len(r.Bands) == 0 {
			return fmt.Errorf("%w: categorical range without bands", ErrInvalidRange)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRange, r.Kind)
	}
	return nil
}

// String renders the range the way reports print it.
func (r *NormalRange) String() string {
	switch {
	case r.IsInterval():
		return FormatValue(*r.Min) + " - " + FormatValue(*r.Max)
	case r.IsCategorical():
		parts := make([]string, 0, len(r.Bands))
		for _, b := range r.Bands {
			parts = append(parts, b.Name+": "+b.Description)
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

// FormatValue prints a number with the shortest exact representation (6.5, 12, 0.35).
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
