package entities

import (
	"fmt"
	"sort"
)

// Catalog is the complete reference data set: relationships plus their
// histograms, probability curves and X-inheritance rules.
// A Catalog is immutable once built and safe for concurrent reads.
type Catalog struct {
	relationships []*Relationship
	byCode        map[string]*Relationship
	histograms    map[string][]*HistogramBin
	curves        map[string][]*ProbabilityPoint
	xRules        map[string][]*XInheritance
}

// NewCatalog builds a catalog. Relationship order is preserved; it is the
// tie-break order for equally ranked analysis results.
func NewCatalog(
	relationships []*Relationship,
	histograms map[string][]*HistogramBin,
	curves map[string][]*ProbabilityPoint,
	xRules map[string][]*XInheritance,
) *Catalog {
	c := &Catalog{
		relationships: relationships,
		byCode:        make(map[string]*Relationship, len(relationships)),
		histograms:    histograms,
		curves:        make(map[string][]*ProbabilityPoint, len(curves)),
		xRules:        xRules,
	}
	if c.histograms == nil {
		c.histograms = map[string][]*HistogramBin{}
	}
	if c.xRules == nil {
		c.xRules = map[string][]*XInheritance{}
	}
	for _, rel := range relationships {
		c.byCode[rel.Code] = rel
	}
	for code, points := range curves {
		sorted := make([]*ProbabilityPoint, len(points))
		copy(sorted, points)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CM < sorted[j].CM })
		c.curves[code] = sorted
	}
	return c
}

// Validate checks every relationship and that all auxiliary data refers to
// a known relationship code.
func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.relationships))
	for _, rel := range c.relationships {
		if err := rel.Validate(); err != nil {
			return err
		}
		if seen[rel.Code] {
			return fmt.Errorf("duplicate relationship code: %s", rel.Code)
		}
		seen[rel.Code] = true
	}
	for code, bins := range c.histograms {
		if !seen[code] {
			return fmt.Errorf("histogram references unknown relationship: %s", code)
		}
		for _, bin := range bins {
			if _, _, err := bin.Bounds(); err != nil {
				return fmt.Errorf("relationship %s: %w", code, err)
			}
			if bin.Count < 0 {
				return fmt.Errorf("relationship %s: negative histogram count for %s", code, bin.Range)
			}
		}
	}
	for code, points := range c.curves {
		if !seen[code] {
			return fmt.Errorf("probability curve references unknown relationship: %s", code)
		}
		for _, p := range points {
			if p.Probability < 0 || p.Probability > 1 {
				return fmt.Errorf("relationship %s: probability %.3f at %.1f cM out of [0,1]", code, p.Probability, p.CM)
			}
		}
	}
	for code, rules := range c.xRules {
		if !seen[code] {
			return fmt.Errorf("x-inheritance references unknown relationship: %s", code)
		}
		for _, rule := range rules {
			if err := rule.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Relationships returns all relationships in catalog order
func (c *Catalog) Relationships() []*Relationship {
	return c.relationships
}

// Relationship returns the relationship with the given code
func (c *Catalog) Relationship(code string) (*Relationship, bool) {
	rel, ok := c.byCode[code]
	return rel, ok
}

// Covering returns the relationships whose observed range covers cm
func (c *Catalog) Covering(cm float64) []*Relationship {
	result := make([]*Relationship, 0)
	for _, rel := range c.relationships {
		if rel.Covers(cm) {
			result = append(result, rel)
		}
	}
	return result
}

// Histogram returns the histogram bins of a relationship
func (c *Catalog) Histogram(code string) ([]*HistogramBin, bool) {
	bins, ok := c.histograms[code]
	return bins, ok
}

// Curve returns the probability curve of a relationship, ordered by cM
func (c *Catalog) Curve(code string) []*ProbabilityPoint {
	return c.curves[code]
}

// XRules returns the X-inheritance rules of a relationship
func (c *Catalog) XRules(code string) []*XInheritance {
	return c.xRules[code]
}

// CacheSize approximates the memory footprint of the catalog in bytes
func (c *Catalog) CacheSize() int64 {
	size := int64(len(c.relationships)) * 160
	for _, bins := range c.histograms {
		size += int64(len(bins)) * 64
	}
	for _, points := range c.curves {
		size += int64(len(points)) * 48
	}
	for _, rules := range c.xRules {
		size += int64(len(rules)) * 48
	}
	return size
}
