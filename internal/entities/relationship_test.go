package entities

import (
	"testing"
)

func TestRelationship_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rel     Relationship
		wantErr bool
	}{
		{
			name:    "valid first cousin",
			rel:     Relationship{Code: "1C", Nombre: "Primo hermano", Abreviado: "P1", PromedioCM: 866, MinCM: 396, MaxCM: 1397, Generacion: 1},
			wantErr: false,
		},
		{
			name:    "zero lower bound",
			rel:     Relationship{Code: "4C", Nombre: "Primo cuarto", Abreviado: "P4", PromedioCM: 35, MinCM: 0, MaxCM: 139, Generacion: 4},
			wantErr: false,
		},
		{
			name:    "missing code",
			rel:     Relationship{Nombre: "x", Abreviado: "x", PromedioCM: 1, MinCM: 0, MaxCM: 2},
			wantErr: true,
		},
		{
			name:    "missing nombre",
			rel:     Relationship{Code: "X", Abreviado: "x", PromedioCM: 1, MinCM: 0, MaxCM: 2},
			wantErr: true,
		},
		{
			name:    "average below minimum",
			rel:     Relationship{Code: "X", Nombre: "x", Abreviado: "x", PromedioCM: 10, MinCM: 20, MaxCM: 30},
			wantErr: true,
		},
		{
			name:    "average above maximum",
			rel:     Relationship{Code: "X", Nombre: "x", Abreviado: "x", PromedioCM: 40, MinCM: 20, MaxCM: 30},
			wantErr: true,
		},
		{
			name:    "negative generation",
			rel:     Relationship{Code: "X", Nombre: "x", Abreviado: "x", PromedioCM: 25, MinCM: 20, MaxCM: 30, Generacion: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rel.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRelationship_Covers(t *testing.T) {
	rel := Relationship{Code: "2C", MinCM: 41, MaxCM: 592}

	tests := []struct {
		cm   float64
		want bool
	}{
		{40.9, false},
		{41, true},
		{229, true},
		{592, true},
		{592.1, false},
	}

	for _, tt := range tests {
		if got := rel.Covers(tt.cm); got != tt.want {
			t.Errorf("Covers(%v) = %v, want %v", tt.cm, got, tt.want)
		}
	}
}

func TestHistogramBin_Bounds(t *testing.T) {
	tests := []struct {
		name    string
		rng     string
		wantLo  float64
		wantHi  float64
		wantErr bool
	}{
		{name: "integers", rng: "396-521", wantLo: 396, wantHi: 521},
		{name: "decimals with spaces", rng: " 0.5 - 12.5 ", wantLo: 0.5, wantHi: 12.5},
		{name: "no separator", rng: "396", wantErr: true},
		{name: "not a number", rng: "a-b", wantErr: true},
		{name: "inverted", rng: "500-400", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin := HistogramBin{Range: tt.rng}
			lo, hi, err := bin.Bounds()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Bounds() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if lo != tt.wantLo || hi != tt.wantHi {
				t.Errorf("Bounds() = (%v, %v), want (%v, %v)", lo, hi, tt.wantLo, tt.wantHi)
			}
		})
	}
}

func TestXInheritance_Validate(t *testing.T) {
	valid := []string{"F>F", "F>M", "M>F", "M>M"}
	for _, combo := range valid {
		x := XInheritance{RelationshipCode: "PC", SexCombination: combo}
		if err := x.Validate(); err != nil {
			t.Errorf("Validate(%q) unexpected error: %v", combo, err)
		}
	}

	invalidCombos := []string{"", "F", "F-M", "X>M", "M>"}
	for _, combo := range invalidCombos {
		x := XInheritance{RelationshipCode: "PC", SexCombination: combo}
		if err := x.Validate(); err == nil {
			t.Errorf("Validate(%q) expected error", combo)
		}
	}
}
