package metrics

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

func result(site string, score int, success bool) *models.AuditResult {
	r := &models.AuditResult{
		Timestamp: time.Now(),
		Site:      models.SiteInfo{Name: site, URL: "https://" + site + ".example"},
		Status:    models.StatusInfo{Success: success},
		Score:     score,
	}
	if success {
		r.Vitals = []models.VitalReading{{Metric: "LCP", Value: 2100, Unit: "ms", Rating: "good"}}
	} else {
		r.Error = &models.ErrorInfo{ErrorType: "timeout"}
	}
	return r
}

func TestResultsCache_EvictsOldest(t *testing.T) {
	cache := NewResultsCache(3)
	for i := 0; i < 5; i++ {
		cache.Add(result("site", i, true))
	}

	if cache.Count() != 3 {
		t.Fatalf("Expected 3 cached results, got %d", cache.Count())
	}
	last := cache.GetLast(10)
	if len(last) != 3 || last[0].Score != 2 || last[2].Score != 4 {
		t.Errorf("Expected scores 2..4, got %d..%d", last[0].Score, last[len(last)-1].Score)
	}

	if got := cache.GetLast(1); len(got) != 1 || got[0].Score != 4 {
		t.Errorf("Expected last result score 4, got %+v", got)
	}
	if got := cache.GetLast(-1); len(got) != 0 {
		t.Errorf("Expected no results for negative n, got %d", len(got))
	}

	cache.Clear()
	if cache.Count() != 0 {
		t.Errorf("Expected empty cache after Clear, got %d", cache.Count())
	}
}

func TestCollector_AggregatesPerSite(t *testing.T) {
	c := NewCollector()
	c.RecordResult(result("wiki", 80, true))
	c.RecordResult(result("wiki", 90, true))
	c.RecordResult(result("wiki", 0, false))
	c.RecordResult(result("github", 60, true))

	wiki, ok := c.Site("wiki")
	if !ok {
		t.Fatal("Expected stats for wiki")
	}
	if wiki.Audits != 3 || wiki.Failures != 1 {
		t.Errorf("Expected 3 audits / 1 failure, got %d / %d", wiki.Audits, wiki.Failures)
	}
	if wiki.AverageScore != 85 {
		t.Errorf("Expected average 85 over successful audits, got %v", wiki.AverageScore)
	}
	// A failure keeps the last good score
	if wiki.LastScore != 90 || wiki.LastSuccess || wiki.LastErrorType != "timeout" {
		t.Errorf("Unexpected last state %+v", wiki)
	}

	sites := c.Sites()
	if len(sites) != 2 || sites[0].Name != "github" || sites[1].Name != "wiki" {
		t.Errorf("Expected sites sorted by name, got %+v", sites)
	}
}

type fakeOutput struct {
	name   string
	err    error
	writes int32
}

func (f *fakeOutput) Name() string { return f.name }

func (f *fakeOutput) Write(*models.AuditResult) error {
	atomic.AddInt32(&f.writes, 1)
	return f.err
}

// TestDispatcher_FailingOutputDoesNotBlockOthers tests the fan-out isolation
func TestDispatcher_FailingOutputDoesNotBlockOthers(t *testing.T) {
	d := NewDispatcher(slog.New(slog.NewTextHandler(io.Discard, nil)))
	good := &fakeOutput{name: "good"}
	bad := &fakeOutput{name: "bad", err: errors.New("unreachable")}
	d.RegisterOutput(bad)
	d.RegisterOutput(good)

	d.Dispatch(result("wiki", 75, true))
	d.Dispatch(result("wiki", 70, true))

	if atomic.LoadInt32(&good.writes) != 2 || atomic.LoadInt32(&bad.writes) != 2 {
		t.Errorf("Expected both outputs written twice, got good=%d bad=%d", good.writes, bad.writes)
	}

	names := d.Outputs()
	if len(names) != 2 || names[0] != "bad" || names[1] != "good" {
		t.Errorf("Unexpected output names %v", names)
	}
}

func TestDispatcher_ConcurrentDispatch(t *testing.T) {
	d := NewDispatcher(nil)
	cache := NewResultsCache(1000)
	collector := NewCollector()
	d.RegisterOutput(cache)
	d.RegisterOutput(collector)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			d.Dispatch(result("site", n, true))
		}(i)
	}
	wg.Wait()

	if cache.Count() != 20 {
		t.Errorf("Expected 20 cached results, got %d", cache.Count())
	}
	if s, _ := collector.Site("site"); s.Audits != 20 {
		t.Errorf("Expected 20 audits recorded, got %d", s.Audits)
	}
}
