package entities

import (
	"testing"
)

func testCatalog() *Catalog {
	rels := []*Relationship{
		{Code: "FS", Nombre: "Hermano completo", Abreviado: "HC", PromedioCM: 2613, MinCM: 1613, MaxCM: 3488, Generacion: 0},
		{Code: "1C", Nombre: "Primo hermano", Abreviado: "P1", PromedioCM: 866, MinCM: 396, MaxCM: 1397, Generacion: 1},
		{Code: "2C", Nombre: "Primo segundo", Abreviado: "P2", PromedioCM: 229, MinCM: 41, MaxCM: 592, Generacion: 2},
	}
	hists := map[string][]*HistogramBin{
		"1C": {{RelationshipCode: "1C", Range: "396-896", Count: 10}, {RelationshipCode: "1C", Range: "896-1397", Count: 4}},
	}
	curves := map[string][]*ProbabilityPoint{
		"1C": {
			{RelationshipCode: "1C", CM: 1397, Probability: 0.02},
			{RelationshipCode: "1C", CM: 396, Probability: 0.02},
			{RelationshipCode: "1C", CM: 866, Probability: 0.5},
		},
	}
	xRules := map[string][]*XInheritance{
		"FS": {{RelationshipCode: "FS", SexCombination: "M>M", CanShare: true}},
	}
	return NewCatalog(rels, hists, curves, xRules)
}

func TestCatalog_Covering(t *testing.T) {
	c := testCatalog()

	tests := []struct {
		name  string
		cm    float64
		codes []string
	}{
		{name: "overlapping cousins", cm: 500, codes: []string{"1C", "2C"}},
		{name: "siblings only", cm: 3000, codes: []string{"FS"}},
		{name: "nothing", cm: 10, codes: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Covering(tt.cm)
			if len(got) != len(tt.codes) {
				t.Fatalf("Covering(%v) returned %d relationships, want %d", tt.cm, len(got), len(tt.codes))
			}
			for i, rel := range got {
				if rel.Code != tt.codes[i] {
					t.Errorf("Covering(%v)[%d] = %s, want %s", tt.cm, i, rel.Code, tt.codes[i])
				}
			}
		})
	}
}

func TestCatalog_CurveIsSorted(t *testing.T) {
	c := testCatalog()
	curve := c.Curve("1C")
	if len(curve) != 3 {
		t.Fatalf("expected 3 points, got %d", len(curve))
	}
	for i := 1; i < len(curve); i++ {
		if curve[i-1].CM > curve[i].CM {
			t.Errorf("curve not sorted at %d: %v > %v", i, curve[i-1].CM, curve[i].CM)
		}
	}
	if c.Curve("2C") != nil {
		t.Error("expected nil curve for relationship without points")
	}
}

func TestCatalog_Lookups(t *testing.T) {
	c := testCatalog()

	if rel, ok := c.Relationship("FS"); !ok || rel.Nombre != "Hermano completo" {
		t.Errorf("Relationship(FS) = %v, %v", rel, ok)
	}
	if _, ok := c.Relationship("ZZ"); ok {
		t.Error("Relationship(ZZ) should not be found")
	}
	if bins, ok := c.Histogram("1C"); !ok || len(bins) != 2 {
		t.Errorf("Histogram(1C) = %v, %v", bins, ok)
	}
	if _, ok := c.Histogram("FS"); ok {
		t.Error("Histogram(FS) should not be found")
	}
	if rules := c.XRules("FS"); len(rules) != 1 {
		t.Errorf("XRules(FS) = %v", rules)
	}
	if c.CacheSize() <= 0 {
		t.Error("CacheSize() should be positive")
	}
}

func TestCatalog_Validate(t *testing.T) {
	t.Run("正常系: valid catalog", func(t *testing.T) {
		if err := testCatalog().Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("異常系: duplicate code", func(t *testing.T) {
		rel := &Relationship{Code: "FS", Nombre: "a", Abreviado: "a", PromedioCM: 2, MinCM: 1, MaxCM: 3}
		c := NewCatalog([]*Relationship{rel, rel}, nil, nil, nil)
		if err := c.Validate(); err == nil {
			t.Error("expected duplicate code error")
		}
	})

	t.Run("異常系: histogram for unknown code", func(t *testing.T) {
		c := NewCatalog(nil, map[string][]*HistogramBin{"ZZ": {{Range: "1-2", Count: 1}}}, nil, nil)
		if err := c.Validate(); err == nil {
			t.Error("expected unknown relationship error")
		}
	})

	t.Run("異常系: probability out of range", func(t *testing.T) {
		rel := &Relationship{Code: "FS", Nombre: "a", Abreviado: "a", PromedioCM: 2, MinCM: 1, MaxCM: 3}
		c := NewCatalog([]*Relationship{rel}, nil, map[string][]*ProbabilityPoint{"FS": {{CM: 2, Probability: 1.5}}}, nil)
		if err := c.Validate(); err == nil {
			t.Error("expected probability range error")
		}
	})

	t.Run("異常系: bad sex combination", func(t *testing.T) {
		rel := &Relationship{Code: "FS", Nombre: "a", Abreviado: "a", PromedioCM: 2, MinCM: 1, MaxCM: 3}
		c := NewCatalog([]*Relationship{rel}, nil, nil, map[string][]*XInheritance{"FS": {{RelationshipCode: "FS", SexCombination: "Q>M"}}})
		if err := c.Validate(); err == nil {
			t.Error("expected sex combination error")
		}
	})
}
