package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/asakaida/relcalc/internal/entities"
	"github.com/asakaida/relcalc/internal/repositories"
)

// DataFiles locates the reference data files
type DataFiles struct {
	Relationships string
	Distributions string
	Probabilities string
	XInheritance  string
}

// Resolve returns a copy with relative paths joined to root
func (f DataFiles) Resolve(root string) DataFiles {
	join := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(root, p)
	}
	return DataFiles{
		Relationships: join(f.Relationships),
		Distributions: join(f.Distributions),
		Probabilities: join(f.Probabilities),
		XInheritance:  join(f.XInheritance),
	}
}

type curvePoint struct {
	CM float64 `json:"cm"`
	P  float64 `json:"p"`
}

// LoadCatalogFiles reads and validates the reference data files.
// The distributions, probabilities and X-inheritance files are optional.
func LoadCatalogFiles(files DataFiles) (*entities.Catalog, error) {
	var relationships []*entities.Relationship
	if err := readJSON(files.Relationships, &relationships); err != nil {
		return nil, err
	}
	if len(relationships) == 0 {
		return nil, fmt.Errorf("%s: no relationships defined", files.Relationships)
	}

	var distributions map[string]map[string]int
	if err := readOptionalJSON(files.Distributions, &distributions); err != nil {
		return nil, err
	}
	var probabilities map[string][]curvePoint
	if err := readOptionalJSON(files.Probabilities, &probabilities); err != nil {
		return nil, err
	}
	var xInheritance map[string]map[string]bool
	if err := readOptionalJSON(files.XInheritance, &xInheritance); err != nil {
		return nil, err
	}

	histograms := make(map[string][]*entities.HistogramBin, len(distributions))
	for code, counts := range distributions {
		bins := make([]*entities.HistogramBin, 0, len(counts))
		for rng, count := range counts {
			bins = append(bins, &entities.HistogramBin{RelationshipCode: code, Range: rng, Count: count})
		}
		if err := sortBins(bins); err != nil {
			return nil, fmt.Errorf("%s: relationship %s: %w", files.Distributions, code, err)
		}
		histograms[code] = bins
	}

	curves := make(map[string][]*entities.ProbabilityPoint, len(probabilities))
	for code, points := range probabilities {
		curve := make([]*entities.ProbabilityPoint, 0, len(points))
		for _, p := range points {
			curve = append(curve, &entities.ProbabilityPoint{RelationshipCode: code, CM: p.CM, Probability: p.P})
		}
		curves[code] = curve
	}

	xRules := make(map[string][]*entities.XInheritance, len(xInheritance))
	for code, combos := range xInheritance {
		keys := make([]string, 0, len(combos))
		for combo := range combos {
			keys = append(keys, combo)
		}
		// JSON objects carry no order; rules are stored sorted by combination
		sort.Strings(keys)
		rules := make([]*entities.XInheritance, 0, len(keys))
		for _, combo := range keys {
			rules = append(rules, &entities.XInheritance{RelationshipCode: code, SexCombination: combo, CanShare: combos[combo]})
		}
		xRules[code] = rules
	}

	catalog := entities.NewCatalog(relationships, histograms, curves, xRules)
	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reference data: %w", err)
	}
	return catalog, nil
}

func sortBins(bins []*entities.HistogramBin) error {
	lows := make(map[*entities.HistogramBin]float64, len(bins))
	for _, b := range bins {
		lo, _, err := b.Bounds()
		if err != nil {
			return err
		}
		lows[b] = lo
	}
	sort.SliceStable(bins, func(i, j int) bool { return lows[bins[i]] < lows[bins[j]] })
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read data file: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func readOptionalJSON(path string, v interface{}) error {
	if path == "" {
		return nil
	}
	return readJSON(path, v)
}

// Seeder loads the reference data files into the catalog tables
type Seeder struct {
	repo repositories.CatalogRepository
}

// NewSeeder creates a new Seeder
func NewSeeder(repo repositories.CatalogRepository) *Seeder {
	return &Seeder{repo: repo}
}

// Seed replaces the catalog tables with the contents of files.
// Running it twice leaves the same data behind.
func (s *Seeder) Seed(ctx context.Context, files DataFiles) (*entities.Catalog, error) {
	catalog, err := LoadCatalogFiles(files)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceCatalog(ctx, catalog); err != nil {
		return nil, fmt.Errorf("failed to store reference data: %w", err)
	}
	return catalog, nil
}
