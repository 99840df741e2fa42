package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/asakaida/relcalc/pkg/cache/memorycache"
)

func TestCollector_GetCacheMetrics(t *testing.T) {
	collector := NewCollector()
	if m := collector.GetCacheMetrics(); m.Hits != 0 || m.KeysCurrent != 0 {
		t.Errorf("expected empty metrics without cache, got %+v", m)
	}

	c, err := memorycache.New(&memorycache.Config{MaxSizeBytes: 1 << 20, DefaultTTL: time.Minute, EnableMetrics: true})
	if err != nil {
		t.Fatalf("memorycache.New() error = %v", err)
	}
	collector.SetCache(c)

	ctx := context.Background()
	_ = c.Set(ctx, "catalog", "value", time.Minute)
	c.Get(ctx, "catalog")
	c.Get(ctx, "missing")

	m := collector.GetCacheMetrics()
	if m.Hits != 1 || m.Misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 1/1", m.Hits, m.Misses)
	}
	if m.HitRate != 0.5 {
		t.Errorf("HitRate = %v, want 0.5", m.HitRate)
	}
	if m.KeysCurrent != 1 || m.MemoryBytes <= 0 {
		t.Errorf("keys/memory = %d/%d", m.KeysCurrent, m.MemoryBytes)
	}
}

func TestCollector_RateLimitedAndAnalyses(t *testing.T) {
	collector := NewCollector()
	collector.RecordRateLimited()
	collector.RecordRateLimited()
	collector.RecordAnalysis("")
	collector.RecordAnalysis("FS")

	if got := collector.GetAPIMetrics().RateLimited; got != 2 {
		t.Errorf("RateLimited = %d, want 2", got)
	}
	counts := collector.GetAnalysisCounts()
	if counts["none"] != 1 || counts["FS"] != 1 {
		t.Errorf("GetAnalysisCounts() = %v", counts)
	}
}
