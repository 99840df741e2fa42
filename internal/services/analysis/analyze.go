// Package analysis ranks the relationships that can explain an amount of
// shared DNA.
package analysis

import (
	"sort"

	"github.com/asakaida/relcalc/internal/entities"
)

// Analyze returns the relationships covering the requested cM ranked by
// adjusted probability. Candidates are selected with the raw cM; the
// endogamy level only lowers the cM used for scoring. Probabilities are
// normalised to sum to 1 when any candidate scores above zero.
// The catalog is never modified.
func Analyze(catalog *entities.Catalog, req *entities.AnalysisRequest) ([]*entities.AnalysisResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cm := *req.CM
	in := Input{
		CM:             AdjustForEndogamy(cm, req.Endogamia),
		Generacion:     req.Generacion,
		XInheritance:   req.XInheritance,
		Segments:       req.Segments,
		LargestSegment: req.LargestSegment,
	}

	candidates := catalog.Covering(cm)
	results := make([]*entities.AnalysisResult, 0, len(candidates))
	total := 0.0
	for _, rel := range candidates {
		prob := Score(rel, in)
		total += prob
		results = append(results, &entities.AnalysisResult{
			Relationship: *rel,
			AdjustedProb: prob,
			XPlausible:   xPlausible(catalog.XRules(rel.Code), req.XInheritance),
			AgePlausible: true,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].AdjustedProb > results[j].AdjustedProb
	})

	if total > 0 {
		for _, r := range results {
			r.AdjustedProb /= total
		}
	}
	return results, nil
}

// AdjustForEndogamy divides cm by the factor of the endogamy level.
// A missing or unknown level leaves cm unchanged.
func AdjustForEndogamy(cm float64, level *entities.EndogamyLevel) float64 {
	if level == nil {
		return cm
	}
	factor, ok := level.Factor()
	if !ok {
		return cm
	}
	return cm / factor
}

// xPlausible is false only when X sharing is claimed and no sex
// combination of the relationship can share X
func xPlausible(rules []*entities.XInheritance, shares *bool) bool {
	if shares == nil || !*shares || len(rules) == 0 {
		return true
	}
	for _, rule := range rules {
		if rule.CanShare {
			return true
		}
	}
	return false
}
