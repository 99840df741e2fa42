package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/asakaida/relcalc/internal/infrastructure/config"
)

func projectDataFiles(t *testing.T) DataFiles {
	t.Helper()
	root, err := config.FindProjectRoot()
	if err != nil {
		t.Fatalf("FindProjectRoot() error = %v", err)
	}
	return DataFiles{
		Relationships: "data/relationships.json",
		Distributions: "data/distribuciones.json",
		Probabilities: "data/probabilidades.json",
		XInheritance:  "data/xInheritance.json",
	}.Resolve(root)
}

func writeData(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDataFiles_Resolve(t *testing.T) {
	files := DataFiles{Relationships: "data/r.json", Distributions: "/abs/d.json"}.Resolve("/srv/app")
	if files.Relationships != "/srv/app/data/r.json" {
		t.Errorf("Relationships = %v", files.Relationships)
	}
	if files.Distributions != "/abs/d.json" {
		t.Errorf("Distributions = %v", files.Distributions)
	}
	if files.Probabilities != "" {
		t.Errorf("empty paths must stay empty, got %v", files.Probabilities)
	}
}

func TestLoadCatalogFiles_ProjectData(t *testing.T) {
	catalog, err := LoadCatalogFiles(projectDataFiles(t))
	if err != nil {
		t.Fatalf("LoadCatalogFiles() error = %v", err)
	}

	rels := catalog.Relationships()
	if len(rels) == 0 || rels[0].Code != "PC" || rels[1].Code != "FS" {
		t.Fatalf("relationships not in file order: %v", rels)
	}

	bins, ok := catalog.Histogram("PC")
	if !ok || len(bins) == 0 {
		t.Fatal("PC histogram missing")
	}
	for i := 1; i < len(bins); i++ {
		prev, _, _ := bins[i-1].Bounds()
		cur, _, _ := bins[i].Bounds()
		if prev >= cur {
			t.Errorf("bins not ordered by lower bound: %s before %s", bins[i-1].Range, bins[i].Range)
		}
	}

	rules := catalog.XRules("PC")
	if len(rules) != 4 || rules[0].SexCombination != "F>F" || rules[3].SexCombination != "M>M" || rules[3].CanShare {
		t.Errorf("PC x rules = %+v", rules)
	}

	if curve := catalog.Curve("FS"); len(curve) != 5 || curve[2].Probability != 0.5 {
		t.Errorf("FS curve = %+v", curve)
	}
}

func TestLoadCatalogFiles_Errors(t *testing.T) {
	tests := []struct {
		name          string
		relationships string
		distributions string
		wantErr       string
	}{
		{
			name:          "range invariant",
			relationships: `[{"code":"FS","nombre":"Hermano","abreviado":"H","promedio_cm":100,"min_cm":200,"max_cm":300,"generacion":0}]`,
			wantErr:       "min_cm <= promedio_cm <= max_cm",
		},
		{
			name:          "empty catalog",
			relationships: `[]`,
			wantErr:       "no relationships",
		},
		{
			name:          "malformed json",
			relationships: `[{"code":`,
			wantErr:       "failed to parse",
		},
		{
			name:          "histogram for unknown code",
			relationships: `[{"code":"FS","nombre":"Hermano","abreviado":"H","promedio_cm":250,"min_cm":200,"max_cm":300,"generacion":0}]`,
			distributions: `{"ZZ":{"0-10":1}}`,
			wantErr:       "unknown relationship: ZZ",
		},
		{
			name:          "bad histogram range",
			relationships: `[{"code":"FS","nombre":"Hermano","abreviado":"H","promedio_cm":250,"min_cm":200,"max_cm":300,"generacion":0}]`,
			distributions: `{"FS":{"ten":1}}`,
			wantErr:       "invalid histogram range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			files := DataFiles{Relationships: writeData(t, dir, "relationships.json", tt.relationships)}
			if tt.distributions != "" {
				files.Distributions = writeData(t, dir, "distribuciones.json", tt.distributions)
			}

			_, err := LoadCatalogFiles(files)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadCatalogFiles() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSeeder_Seed(t *testing.T) {
	repo := &mockCatalogRepository{}
	seeder := NewSeeder(repo)
	files := projectDataFiles(t)

	first, err := seeder.Seed(context.Background(), files)
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	second, err := seeder.Seed(context.Background(), files)
	if err != nil {
		t.Fatalf("second Seed() error = %v", err)
	}

	if len(repo.replaced) != 2 {
		t.Fatalf("ReplaceCatalog called %d times, want 2", len(repo.replaced))
	}
	if len(first.Relationships()) != len(second.Relationships()) {
		t.Error("re-seeding should produce the same catalog")
	}

	if _, err := seeder.Seed(context.Background(), DataFiles{Relationships: filepath.Join(t.TempDir(), "missing.json")}); err == nil {
		t.Error("Seed() should fail for a missing file")
	}
}
