package analysis

import (
	"math"
	"testing"

	"github.com/asakaida/relcalc/internal/entities"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

var (
	fullSiblings = &entities.Relationship{Code: "FS", Nombre: "Hermano completo", Abreviado: "HC", PromedioCM: 2613, MinCM: 1613, MaxCM: 3488, Generacion: 0}
	thirdCousins = &entities.Relationship{Code: "3C", Nombre: "Primo tercero", Abreviado: "P3", PromedioCM: 73, MinCM: 0, MaxCM: 217, Generacion: 3}
	fourthCousin = &entities.Relationship{Code: "4C", Nombre: "Primo cuarto", Abreviado: "P4", PromedioCM: 35, MinCM: 0, MaxCM: 139, Generacion: 4}
)

func TestSpanScore(t *testing.T) {
	tests := []struct {
		name string
		code string
		v    float64
		want float64
	}{
		{name: "inside range", code: "1C", v: 30, want: 1},
		{name: "lower bound", code: "1C", v: 25, want: 1},
		{name: "below range", code: "2C", v: 5, want: math.Pow(0.5, 0.7)},
		{name: "above range", code: "3C", v: 16, want: math.Pow(0.5, 0.7)},
		{name: "unknown relationship", code: "PC", v: 40, want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := spanScore(typicalSegments, tt.code, tt.v); !approx(got, tt.want) {
				t.Errorf("spanScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRangeFitScore(t *testing.T) {
	if got := rangeFitScore(fullSiblings, 1000); got != 0 {
		t.Errorf("outside range = %v, want 0", got)
	}
	center := (fullSiblings.MinCM + fullSiblings.MaxCM) / 2
	if got := rangeFitScore(fullSiblings, center); got != 1 {
		t.Errorf("center = %v, want 1", got)
	}
	if got := rangeFitScore(fullSiblings, fullSiblings.MaxCM); !approx(got, 0) {
		t.Errorf("edge = %v, want 0", got)
	}

	point := &entities.Relationship{Code: "X", MinCM: 100, PromedioCM: 100, MaxCM: 100}
	if got := rangeFitScore(point, 100); got != 1 {
		t.Errorf("zero-width range = %v, want 1", got)
	}
}

func TestXMatchScore(t *testing.T) {
	tests := []struct {
		name   string
		code   string
		shares *bool
		want   float64
	}{
		{name: "no input", code: "FS", shares: nil, want: 0.5},
		{name: "always shares and shared", code: "FS", shares: boolPtr(true), want: 1},
		{name: "always shares but not shared", code: "FS", shares: boolPtr(false), want: 0},
		{name: "variable", code: "2C", shares: boolPtr(true), want: 0.5},
		{name: "unknown code is variable", code: "HS", shares: boolPtr(false), want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := xMatchScore(tt.code, tt.shares); got != tt.want {
				t.Errorf("xMatchScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScore(t *testing.T) {
	t.Run("neutral inputs", func(t *testing.T) {
		got := Score(fullSiblings, Input{CM: 2613})
		center := (1613.0 + 3488.0) / 2
		want := 0.5*1 +
			0.3*(1-math.Pow(math.Abs(2613-center)/((3488-1613)/2.0), 0.7)) +
			0.15*0.5 + 0.03*0.5 + 0.02*0.5
		if !approx(got, want) {
			t.Errorf("Score() = %v, want %v", got, want)
		}
	})

	t.Run("generation match and mismatch", func(t *testing.T) {
		base := Score(thirdCousins, Input{CM: 60})
		match := Score(thirdCousins, Input{CM: 60, Generacion: intPtr(3)})
		miss := Score(thirdCousins, Input{CM: 60, Generacion: intPtr(1)})
		if !approx(match, math.Min(1, base*1.4)) {
			t.Errorf("match = %v, want %v", match, base*1.4)
		}
		if !approx(miss, base*0.6) {
			t.Errorf("mismatch = %v, want %v", miss, base*0.6)
		}
	})

	t.Run("third over fourth cousins", func(t *testing.T) {
		in := Input{CM: 60, Segments: intPtr(5), LargestSegment: floatPtr(24.5)}
		without := Input{CM: 60, Segments: intPtr(5), LargestSegment: floatPtr(10)}

		third := Score(thirdCousins, in)
		thirdPlain := weightedSum(thirdCousins, in)
		if !approx(third, math.Min(1, thirdPlain*1.2)) {
			t.Errorf("3C = %v, want %v", third, thirdPlain*1.2)
		}
		fourth := Score(fourthCousin, in)
		if !approx(fourth, weightedSum(fourthCousin, in)*0.8) {
			t.Errorf("4C = %v, want %v", fourth, weightedSum(fourthCousin, in)*0.8)
		}
		if got := Score(thirdCousins, without); !approx(got, weightedSum(thirdCousins, without)) {
			t.Errorf("3C with small segment = %v, want unadjusted %v", got, weightedSum(thirdCousins, without))
		}
	})

	t.Run("clamped", func(t *testing.T) {
		in := Input{CM: 2550, Generacion: intPtr(0), XInheritance: boolPtr(true), Segments: intPtr(40), LargestSegment: floatPtr(200)}
		if got := Score(fullSiblings, in); got != 1 {
			t.Errorf("Score() = %v, want 1", got)
		}
	})
}

func weightedSum(rel *entities.Relationship, in Input) float64 {
	return weightCMDistance*cmDistanceScore(rel, in.CM) +
		weightRangeFit*rangeFitScore(rel, in.CM) +
		weightSegments*segmentsScore(rel.Code, in.Segments) +
		weightLargestSegment*largestSegmentScore(rel.Code, in.LargestSegment) +
		weightXMatch*xMatchScore(rel.Code, in.XInheritance)
}
