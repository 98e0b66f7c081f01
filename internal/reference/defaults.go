package reference

import (
	"context"
	"errors"
	"fmt"

	"github.com/labpanel-mcp-server/internal/domain"
	"github.com/labpanel-mcp-server/internal/service"
)

const adultAgeMin = 18

// DefaultValues returns adult reference ranges for the tests the panel parsers produce.
func DefaultValues() []*domain.ReferenceValue {
	adult := func(category domain.ReportType, test string, gender domain.ReferenceGender, min, max float64) *domain.ReferenceValue {
		return &domain.ReferenceValue{
			TestCategory: category,
			TestName:     test,
			TestUnit:     service.UnitFor(test),
			MinValue:     min,
			MaxValue:     max,
			Gender:       gender,
			AgeMin:       adultAgeMin,
			AgeMax:       150,
		}
	}

	const (
		male   = domain.ReferenceGenderMale
		female = domain.ReferenceGenderFemale
		both   = domain.ReferenceGenderBoth
		cbc    = domain.ReportTypeCBC
		liver  = domain.ReportTypeLiverFunction
	)

	return []*domain.ReferenceValue{
		adult(cbc, service.TestHb, male, 13.0, 17.0),
		adult(cbc, service.TestHb, female, 12.0, 15.5),
		adult(cbc, service.TestTotalRBC, male, 4.5, 5.9),
		adult(cbc, service.TestTotalRBC, female, 4.0, 5.2),
		adult(cbc, service.TestHCT, male, 40, 50),
		adult(cbc, service.TestHCT, female, 36, 46),
		adult(cbc, service.TestMCV, both, 80, 100),
		adult(cbc, service.TestMCH, both, 27, 32),
		adult(cbc, service.TestMCHC, both, 32, 36),
		adult(cbc, service.TestPlateletCount, both, 150, 450),
		adult(cbc, service.TestWBCCount, both, 4, 11),
		adult(liver, service.TestBilirubinTotal, both, 0.3, 1.2),
		adult(liver, service.TestBilirubinConjugated, both, 0, 0.3),
		adult(liver, service.TestSGPT, both, 0, 40),
		adult(liver, service.TestSGOT, both, 0, 40),
		adult(liver, service.TestAlkalinePhosphatase, both, 44, 147),
		adult(liver, service.TestGammaGT, male, 8, 61),
		adult(liver, service.TestGammaGT, female, 5, 36),
		adult(liver, service.TestTotalProtein, both, 6.0, 8.3),
		adult(liver, service.TestAlbumin, both, 3.5, 5.0),
		adult(domain.ReportTypeDiabetes, service.TestHbA1c, both, 4.0, 5.6),
		adult(domain.ReportTypeThyroid, service.TestTSH, both, 0.4, 4.0),
		adult(domain.ReportTypeThyroid, service.TestT3, both, 80, 200),
		adult(domain.ReportTypeThyroid, service.TestT4, both, 5.0, 12.0),
		adult(domain.ReportTypeThyroid, service.TestFreeT3, both, 2.3, 4.2),
		adult(domain.ReportTypeThyroid, service.TestFreeT4, both, 0.8, 1.8),
	}
}

// SeedDefaults loads DefaultValues into an empty store and returns how many were added.
func SeedDefaults(ctx context.Context, store Store) (int, error) {
	count, err := store.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	added := 0
	for _, ref := range DefaultValues() {
		err := store.Create(ctx, ref)
		if errors.Is(err, domain.ErrDuplicateReference) {
			continue
		}
		if err != nil {
			return added, fmt.Errorf("failed to seed %s: %w", ref.TestName, err)
		}
		added++
	}
	return added, nil
}
