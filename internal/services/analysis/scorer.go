package analysis

import (
	"math"

	"github.com/asakaida/relcalc/internal/entities"
)

// Factor weights of the adjusted probability
const (
	weightCMDistance     = 0.5
	weightRangeFit       = 0.3
	weightSegments       = 0.15
	weightLargestSegment = 0.03
	weightXMatch         = 0.02
)

const (
	// maxDistanceCM normalises the distance to the average shared cM
	maxDistanceCM = 4000.0
	// softness flattens every penalty curve
	softness = 0.7
	// neutral is the score of a factor without data
	neutral = 0.5

	generationMatchBoost   = 1.4
	generationMismatchCost = 0.6
)

type span struct {
	min, max float64
}

// typicalSegments is the usual number of shared segments per relationship
var typicalSegments = map[string]span{
	"FS": {35, 45},
	"1C": {25, 35},
	"2C": {10, 20},
	"3C": {4, 8},
	"4C": {2, 5},
}

// typicalLargestSegment is the usual size of the largest shared segment in cM
var typicalLargestSegment = map[string]span{
	"FS": {150, 250},
	"1C": {80, 150},
	"2C": {50, 100},
	"3C": {20, 50},
	"4C": {10, 30},
}

// alwaysSharesX lists relationships that always share X. Any other code
// may or may not share it.
var alwaysSharesX = map[string]bool{
	"FS": true,
}

// Input is the normalised scoring input
type Input struct {
	CM             float64 // shared cM after the endogamy adjustment
	Generacion     *int
	XInheritance   *bool
	Segments       *int
	LargestSegment *float64
}

// Score returns the adjusted probability, in [0, 1], that rel explains in
func Score(rel *entities.Relationship, in Input) float64 {
	score := weightCMDistance*cmDistanceScore(rel, in.CM) +
		weightRangeFit*rangeFitScore(rel, in.CM) +
		weightSegments*segmentsScore(rel.Code, in.Segments) +
		weightLargestSegment*largestSegmentScore(rel.Code, in.LargestSegment) +
		weightXMatch*xMatchScore(rel.Code, in.XInheritance)

	if in.Generacion != nil {
		if *in.Generacion == rel.Generacion {
			score *= generationMatchBoost
		} else {
			score *= generationMismatchCost
		}
	}

	// many large segments point to third rather than fourth cousins
	if (rel.Code == "3C" || rel.Code == "4C") &&
		in.Segments != nil && in.LargestSegment != nil &&
		*in.Segments >= 5 && *in.LargestSegment >= 20 {
		if rel.Code == "3C" {
			score *= 1.2
		} else {
			score *= 0.8
		}
	}

	return clamp(score)
}

func cmDistanceScore(rel *entities.Relationship, cm float64) float64 {
	return 1 - math.Pow(math.Abs(cm-rel.PromedioCM)/maxDistanceCM, softness)
}

func rangeFitScore(rel *entities.Relationship, cm float64) float64 {
	if !rel.Covers(cm) {
		return 0
	}
	halfSize := (rel.MaxCM - rel.MinCM) / 2
	if halfSize == 0 {
		return 1
	}
	center := (rel.MinCM + rel.MaxCM) / 2
	return 1 - math.Pow(math.Abs(cm-center)/halfSize, softness)
}

func segmentsScore(code string, segments *int) float64 {
	if segments == nil {
		return neutral
	}
	return spanScore(typicalSegments, code, float64(*segments))
}

func largestSegmentScore(code string, largest *float64) float64 {
	if largest == nil {
		return neutral
	}
	return spanScore(typicalLargestSegment, code, *largest)
}

func spanScore(spans map[string]span, code string, v float64) float64 {
	s, ok := spans[code]
	if !ok {
		return neutral
	}
	switch {
	case v < s.min:
		return math.Pow(v/s.min, softness)
	case v > s.max:
		return math.Pow(s.max/v, softness)
	default:
		return 1
	}
}

func xMatchScore(code string, shares *bool) float64 {
	if shares == nil || !alwaysSharesX[code] {
		return neutral
	}
	if *shares {
		return 1
	}
	return 0
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
