package analysis

import (
	"fmt"
	"math"

	"github.com/asakaida/relcalc/internal/entities"
	"github.com/asakaida/relcalc/internal/repositories"
)

const (
	// generationGapCost applies when the generations differ by more than one
	generationGapCost = 0.5
	// xConflictCost applies when X sharing is claimed but ruled out
	xConflictCost = 0.1
	// curveScale turns curve probabilities into chart counts
	curveScale = 1000
)

// Interpolate returns the probability at cm on a curve ordered by cM,
// linearly interpolated between the two surrounding points.
// Values outside the curve have probability 0.
func Interpolate(curve []*entities.ProbabilityPoint, cm float64) float64 {
	for i := 0; i+1 < len(curve); i++ {
		a, b := curve[i], curve[i+1]
		if cm < a.CM || cm > b.CM {
			continue
		}
		if b.CM == a.CM {
			return a.Probability
		}
		return a.Probability + (cm-a.CM)/(b.CM-a.CM)*(b.Probability-a.Probability)
	}
	return 0
}

// Calculate returns the curve-based probability of every relationship
// covering the requested cM, in catalog order.
// It returns an error wrapping repositories.ErrNotFound when none does.
func Calculate(catalog *entities.Catalog, req *entities.CalculationRequest) ([]*entities.CalculationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cm := *req.CM
	candidates := catalog.Covering(cm)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no relationships found for the given cM value: %w", repositories.ErrNotFound)
	}

	results := make([]*entities.CalculationResult, 0, len(candidates))
	for _, rel := range candidates {
		prob := Interpolate(catalog.Curve(rel.Code), cm)

		if req.Generacion != nil && math.Abs(float64(rel.Generacion-*req.Generacion)) > 1 {
			prob *= generationGapCost
		}
		if req.XInheritance != nil && *req.XInheritance {
			if rules := catalog.XRules(rel.Code); len(rules) > 0 && !rules[0].CanShare {
				prob *= xConflictCost
			}
		}

		results = append(results, &entities.CalculationResult{
			Code:         rel.Code,
			Nombre:       rel.Nombre,
			Abreviado:    rel.Abreviado,
			PromedioCM:   rel.PromedioCM,
			MinCM:        rel.MinCM,
			MaxCM:        rel.MaxCM,
			Probabilidad: prob,
		})
	}
	return results, nil
}

// CurveHistogram returns the probability curve of a relationship as chart
// bins (the cM of each point) and counts (probability per thousand)
func CurveHistogram(catalog *entities.Catalog, code string) (*entities.CurveHistogram, error) {
	if _, ok := catalog.Relationship(code); !ok {
		return nil, fmt.Errorf("relationship %s: %w", code, repositories.ErrNotFound)
	}

	curve := catalog.Curve(code)
	h := &entities.CurveHistogram{
		Bins:   make([]float64, 0, len(curve)),
		Counts: make([]int, 0, len(curve)),
	}
	for _, p := range curve {
		h.Bins = append(h.Bins, p.CM)
		h.Counts = append(h.Counts, int(p.Probability*curveScale))
	}
	return h, nil
}
