package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/labpanel-mcp-server/internal/domain"
)

// ReferenceComparator checks parsed results against stored per-demographic
// reference values. Lookup failures degrade to the range printed on the report.
type ReferenceComparator struct {
	logger *logrus.Logger
	lookup domain.ReferenceLookup
}

// NewReferenceComparator creates a new reference comparator
func NewReferenceComparator(logger *logrus.Logger, lookup domain.ReferenceLookup) *ReferenceComparator {
	return &ReferenceComparator{logger: logger, lookup: lookup}
}

// CompareWithReferenceValues compares each test to the stored reference for
// the patient's gender and age. Tests without a stored reference report
// "Reference not found" with the inline range, if any, and an unknown verdict.
func (c *ReferenceComparator) CompareWithReferenceValues(ctx context.Context, tests *domain.TestSet, category domain.ReportType, gender domain.Gender, age int) []domain.ReferenceComparison {
	comparisons := make([]domain.ReferenceComparison, 0, tests.Len())
	for _, test := range tests.Results() {
		ref := c.find(ctx, category, test.TestName, gender, age)
		comparisons = append(comparisons, compareOne(test, ref))
	}
	return comparisons
}

// ApplyReferenceRanges returns a copy of tests where results without a
// numeric range take the stored reference range. HbA1c keeps its glycemic
// bands. tests itself is not modified.
func (c *ReferenceComparator) ApplyReferenceRanges(ctx context.Context, tests *domain.TestSet, category domain.ReportType, gender domain.Gender, age int) *domain.TestSet {
	out := domain.NewTestSet()
	for _, test := range tests.Results() {
		if !test.NormalRange.IsInterval() && test.TestName != TestHbA1c {
			if ref := c.find(ctx, category, test.TestName, gender, age); ref != nil {
				if r, err := ref.Range(); err == nil {
					test.NormalRange = r
					if test.Unit == "" {
						test.Unit = ref.TestUnit
					}
				}
			}
		}
		out.Add(test)
	}
	return out
}

func (c *ReferenceComparator) find(ctx context.Context, category domain.ReportType, testName string, gender domain.Gender, age int) *domain.ReferenceValue {
	if c.lookup == nil {
		return nil
	}
	ref, err := c.lookup.Lookup(ctx, category, testName, gender, age)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"category": category,
			"test":     testName,
		}).Warn("Reference lookup failed, using inline range")
		return nil
	}
	return ref
}

func compareOne(test domain.TestResult, ref *domain.ReferenceValue) domain.ReferenceComparison {
	cmp := domain.ReferenceComparison{
		TestName: test.TestName,
		Value:    test.Value,
		Unit:     test.Unit,
	}

	if ref == nil {
		cmp.Status = domain.ComparisonNotFound
		if min, max, ok := test.NormalRange.Bounds(); ok {
			cmp.ReferenceMin = &min
			cmp.ReferenceMax = &max
		}
		return cmp
	}

	min, max := ref.MinValue, ref.MaxValue
	cmp.ReferenceMin = &min
	cmp.ReferenceMax = &max

	normal := test.Value >= min && test.Value <= max
	cmp.IsNormal = &normal
	switch {
	case test.Value < min:
		cmp.Status = domain.ComparisonLow
	case test.Value > max:
		cmp.Status = domain.ComparisonHigh
	default:
		cmp.Status = domain.ComparisonNormal
	}
	return cmp
}
