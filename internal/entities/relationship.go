package entities

import (
	"fmt"
	"strconv"
	"strings"
)

// Relationship represents a genealogical relationship and the range of
// shared DNA (in centimorgans) observed for it.
// Example: code "1C" (first cousin), average 866 cM, range 396-1397 cM
type Relationship struct {
	Code       string  `json:"code" db:"code"`               // Short code (e.g., "FS", "1C")
	Nombre     string  `json:"nombre" db:"nombre"`           // Display name
	Abreviado  string  `json:"abreviado" db:"abreviado"`     // Abbreviated display name
	PromedioCM float64 `json:"promedio_cm" db:"promedio_cm"` // Average shared cM
	MinCM      float64 `json:"min_cm" db:"min_cm"`           // Lowest observed shared cM
	MaxCM      float64 `json:"max_cm" db:"max_cm"`           // Highest observed shared cM
	Generacion int     `json:"generacion" db:"generacion"`   // Generational distance (0 for siblings, 1 for first cousins, ...)
}

// Covers reports whether cm falls inside the observed range (inclusive)
func (r *Relationship) Covers(cm float64) bool {
	return r.MinCM <= cm && cm <= r.MaxCM
}

// Validate checks if the relationship is valid
func (r *Relationship) Validate() error {
	if r.Code == "" {
		return fmt.Errorf("relationship code is required")
	}
	if r.Nombre == "" {
		return fmt.Errorf("relationship %s: nombre is required", r.Code)
	}
	if r.Abreviado == "" {
		return fmt.Errorf("relationship %s: abreviado is required", r.Code)
	}
	if r.MinCM < 0 {
		return fmt.Errorf("relationship %s: min_cm must be non-negative", r.Code)
	}
	if r.MinCM > r.PromedioCM || r.PromedioCM > r.MaxCM {
		return fmt.Errorf("relationship %s: expected min_cm <= promedio_cm <= max_cm, got %.1f/%.1f/%.1f",
			r.Code, r.MinCM, r.PromedioCM, r.MaxCM)
	}
	if r.Generacion < 0 {
		return fmt.Errorf("relationship %s: generacion must be non-negative", r.Code)
	}
	return nil
}

// HistogramBin is one bucket of the observed shared-cM distribution of a relationship
type HistogramBin struct {
	RelationshipCode string `json:"-" db:"relationship_code"`
	Range            string `json:"range" db:"bin_range"` // "lo-hi", e.g. "396-521"
	Count            int    `json:"count" db:"bin_count"`
}

// Bounds parses the bin range into its lower and upper limits
func (b *HistogramBin) Bounds() (float64, float64, error) {
	lo, hi, ok := strings.Cut(b.Range, "-")
	if !ok {
		return 0, 0, fmt.Errorf("invalid histogram range %q: expected lo-hi", b.Range)
	}
	low, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid histogram range %q: %w", b.Range, err)
	}
	high, err := strconv.ParseFloat(strings.TrimSpace(hi), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid histogram range %q: %w", b.Range, err)
	}
	if low > high {
		return 0, 0, fmt.Errorf("invalid histogram range %q: lower bound exceeds upper bound", b.Range)
	}
	return low, high, nil
}

// ProbabilityPoint is one point of a relationship's probability curve
type ProbabilityPoint struct {
	RelationshipCode string  `json:"-" db:"relationship_code"`
	CM               float64 `json:"cm" db:"cm"`
	Probability      float64 `json:"probability" db:"probability"`
}

// XInheritance tells whether the X chromosome can be shared for a sex
// combination of the two people in a relationship.
type XInheritance struct {
	RelationshipCode string `json:"-" db:"relationship_code"`
	SexCombination   string `json:"sex_combination" db:"sex_combination"` // "F>M", "M>F", ...
	CanShare         bool   `json:"can_share" db:"can_share"`
}

// Validate checks if the sex combination is well formed
func (x *XInheritance) Validate() error {
	from, to, ok := strings.Cut(x.SexCombination, ">")
	if !ok || !isSex(from) || !isSex(to) {
		return fmt.Errorf("relationship %s: invalid sex combination %q", x.RelationshipCode, x.SexCombination)
	}
	return nil
}

func isSex(s string) bool {
	return s == "M" || s == "F"
}
