package stats

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mwiater/escombro/internal/storage"
)

func result(class string, confidence float64) ClassificationResult {
	return ClassificationResult{PredictedClass: class, Confidence: confidence}
}

type refreshRecorder struct {
	refreshes int
	last      SessionStats
	exports   []bool
}

func newRecordedStore(t *testing.T) (*Store, *storage.MemoryStore, *refreshRecorder) {
	t.Helper()
	mem := storage.NewMemoryStore()
	store := NewStore(mem)
	rec := &refreshRecorder{}
	store.OnChange(func(s SessionStats) {
		rec.refreshes++
		rec.last = s
	})
	store.OnExportChange(func(enabled bool) { rec.exports = append(rec.exports, enabled) })
	return store, mem, rec
}

func TestFoldScenario(t *testing.T) {
	store, _, rec := newRecordedStore(t)

	err := store.Fold(result("hormigon", 90), result("hormigon", 80), result("piedra", 60))
	if err != nil {
		t.Fatalf("Fold: %v", err)
	}

	s := store.Snapshot()
	if s.TotalProcessed != 3 || s.ConfidenceSum != 230 {
		t.Fatalf("unexpected totals: %+v", s)
	}
	if got := math.Round(s.MeanConfidence()*10) / 10; got != 76.7 {
		t.Fatalf("expected mean 76.7, got %v", got)
	}
	id, count, ok := s.MostCommon()
	if !ok || id != "hormigon" || count != 2 {
		t.Fatalf("expected hormigon (2), got %s (%d) ok=%v", id, count, ok)
	}
	if rec.refreshes != 1 {
		t.Fatalf("expected one refresh per fold, got %d", rec.refreshes)
	}
	if len(rec.exports) != 1 || !rec.exports[0] || !store.ExportEnabled() {
		t.Fatalf("expected export enabled, got %v", rec.exports)
	}
}

func TestFoldKeepsCountersInStep(t *testing.T) {
	store, _, _ := newRecordedStore(t)
	batches := [][]ClassificationResult{
		{result("yeso", 10)},
		{result("ceramico", 55), result("yeso", 99.5)},
		{result("basura_general", 0), result("asfaltico", 100), result("piedra", 41)},
	}
	for _, b := range batches {
		if err := store.Fold(b...); err != nil {
			t.Fatalf("Fold: %v", err)
		}
		s := store.Snapshot()
		if !s.Consistent() {
			t.Fatalf("counters out of step: total=%d levels=%d sum=%d", s.TotalProcessed, len(s.ConfidenceLevels), s.ClassCount.Sum())
		}
	}
}

func TestFoldEmptyIsNoop(t *testing.T) {
	store, mem, rec := newRecordedStore(t)
	if err := store.Fold(); err != nil {
		t.Fatalf("Fold: %v", err)
	}
	if mem.Writes() != 0 {
		t.Fatalf("expected no persistence write, got %d", mem.Writes())
	}
	if rec.refreshes != 0 {
		t.Fatalf("expected no refresh, got %d", rec.refreshes)
	}
	if s := store.Snapshot(); s.TotalProcessed != 0 {
		t.Fatalf("expected empty aggregate, got %+v", s)
	}
}

func TestFoldMeanConfidence(t *testing.T) {
	store, _, _ := newRecordedStore(t)
	confidences := []float64{12.5, 99, 47.25, 63}
	var batch []ClassificationResult
	sum := 0.0
	for _, c := range confidences {
		batch = append(batch, result("piedra", c))
		sum += c
	}
	if err := store.Fold(batch...); err != nil {
		t.Fatalf("Fold: %v", err)
	}
	want := sum / float64(len(confidences))
	if got := store.Snapshot().MeanConfidence(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected mean %v, got %v", want, got)
	}
	if Empty().MeanConfidence() != 0 {
		t.Fatal("expected zero mean for the empty aggregate")
	}
}

func TestFoldRejectsWholeBatch(t *testing.T) {
	store, mem, rec := newRecordedStore(t)
	if err := store.Fold(result("hormigon", 70)); err != nil {
		t.Fatalf("Fold: %v", err)
	}
	writes := mem.Writes()

	tests := []struct {
		name  string
		batch []ClassificationResult
	}{
		{"missing class", []ClassificationResult{result("piedra", 50), {Confidence: 40}}},
		{"unknown class", []ClassificationResult{result("madera", 50)}},
		{"confidence too high", []ClassificationResult{result("yeso", 50), result("yeso", 140)}},
		{"negative confidence", []ClassificationResult{result("yeso", -1)}},
		{"nan confidence", []ClassificationResult{result("yeso", math.NaN())}},
		{"bad probability", []ClassificationResult{{PredictedClass: "yeso", Confidence: 10, Probabilities: []Probability{{ClassName: "yeso", Probability: 101}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Fold(tt.batch...)
			if !errors.Is(err, ErrInvalidBatch) {
				t.Fatalf("expected ErrInvalidBatch, got %v", err)
			}
			s := store.Snapshot()
			if s.TotalProcessed != 1 || s.ConfidenceSum != 70 || len(s.ConfidenceLevels) != 1 {
				t.Fatalf("aggregate changed after rejected batch: %+v", s)
			}
		})
	}
	if mem.Writes() != writes {
		t.Fatalf("rejected batches must not persist, writes %d -> %d", writes, mem.Writes())
	}
	if rec.refreshes != 1 {
		t.Fatalf("rejected batches must not refresh, got %d refreshes", rec.refreshes)
	}
}

type failingStorage struct{ storage.Storage }

func (failingStorage) Set(string, string) error { return errors.New("disk full") }

func TestFoldPersistFailureLeavesAggregate(t *testing.T) {
	store := NewStore(failingStorage{storage.NewMemoryStore()})
	if err := store.Fold(result("piedra", 50)); err == nil {
		t.Fatal("expected persistence error")
	}
	if s := store.Snapshot(); s.TotalProcessed != 0 {
		t.Fatalf("aggregate must not change when persistence fails: %+v", s)
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	mem := storage.NewMemoryStore()
	first := NewStore(mem)
	if err := first.Fold(result("yeso", 33), result("asfaltico", 88), result("yeso", 20)); err != nil {
		t.Fatalf("Fold: %v", err)
	}
	want := first.Snapshot()

	second := NewStore(mem)
	refreshes := 0
	var exportState []bool
	second.OnChange(func(SessionStats) { refreshes++ })
	second.OnExportChange(func(b bool) { exportState = append(exportState, b) })
	second.RestoreIfPersisted()

	got := second.Snapshot()
	if got.TotalProcessed != want.TotalProcessed || got.ConfidenceSum != want.ConfidenceSum {
		t.Fatalf("restored totals differ: got %+v want %+v", got, want)
	}
	if len(got.ConfidenceLevels) != len(want.ConfidenceLevels) {
		t.Fatalf("restored levels differ: %v vs %v", got.ConfidenceLevels, want.ConfidenceLevels)
	}
	for i := range want.ConfidenceLevels {
		if got.ConfidenceLevels[i] != want.ConfidenceLevels[i] {
			t.Fatalf("level %d differs: %v vs %v", i, got.ConfidenceLevels[i], want.ConfidenceLevels[i])
		}
	}
	wantKeys, gotKeys := want.ClassCount.Keys(), got.ClassCount.Keys()
	if len(gotKeys) != len(wantKeys) {
		t.Fatalf("restored keys differ: %v vs %v", gotKeys, wantKeys)
	}
	for i, k := range wantKeys {
		if gotKeys[i] != k || got.ClassCount.Get(k) != want.ClassCount.Get(k) {
			t.Fatalf("restored classCount differs at %s", k)
		}
	}
	if refreshes != 1 {
		t.Fatalf("expected exactly one refresh after restore, got %d", refreshes)
	}
	if len(exportState) != 1 || !exportState[0] {
		t.Fatalf("expected export enabled after restore, got %v", exportState)
	}
}

func TestResetThenRestoreIsEmpty(t *testing.T) {
	mem := storage.NewMemoryStore()
	store := NewStore(mem)
	var exportState []bool
	store.OnExportChange(func(b bool) { exportState = append(exportState, b) })
	if err := store.Fold(result("hormigon", 91)); err != nil {
		t.Fatalf("Fold: %v", err)
	}
	if err := store.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, ok, _ := mem.Get(storage.KeySessionStats); ok {
		t.Fatal("expected snapshot deleted")
	}

	store.RestoreIfPersisted()
	if s := store.Snapshot(); s.TotalProcessed != 0 || s.ClassCount.Len() != 0 || len(s.ConfidenceLevels) != 0 {
		t.Fatalf("expected empty aggregate, got %+v", s)
	}
	if store.ExportEnabled() {
		t.Fatal("expected export disabled")
	}
	if want := []bool{true, false, false}; len(exportState) != len(want) || exportState[1] || exportState[2] {
		t.Fatalf("unexpected export transitions %v", exportState)
	}
}

func TestRestoreIgnoresCorruptSnapshot(t *testing.T) {
	tests := map[string]string{
		"not json":        "{totalProcessed",
		"wrong type":      `{"totalProcessed":"3","confidenceSum":0,"classCount":{},"confidenceLevels":[]}`,
		"missing field":   `{"totalProcessed":0,"confidenceSum":0,"classCount":{}}`,
		"inconsistent":    `{"totalProcessed":2,"confidenceSum":90,"classCount":{"yeso":1},"confidenceLevels":[0.9]}`,
		"unknown class":   `{"totalProcessed":1,"confidenceSum":90,"classCount":{"madera":1},"confidenceLevels":[0.9]}`,
		"level too large": `{"totalProcessed":1,"confidenceSum":90,"classCount":{"yeso":1},"confidenceLevels":[90]}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			mem := storage.NewMemoryStore()
			_ = mem.Set(storage.KeySessionStats, raw)
			store := NewStore(mem)
			refreshes := 0
			store.OnChange(func(SessionStats) { refreshes++ })

			store.RestoreIfPersisted()

			if s := store.Snapshot(); s.TotalProcessed != 0 {
				t.Fatalf("expected empty default, got %+v", s)
			}
			if refreshes != 1 {
				t.Fatalf("expected one refresh, got %d", refreshes)
			}
		})
	}
}

func TestRestoreOverwritesWholesale(t *testing.T) {
	mem := storage.NewMemoryStore()
	_ = mem.Set(storage.KeySessionStats, `{"totalProcessed":1,"confidenceSum":40,"classCount":{"piedra":1},"confidenceLevels":[0.4]}`)
	store := NewStore(mem)
	store.stats = Empty()
	store.stats.fold(result("yeso", 90))

	store.RestoreIfPersisted()

	s := store.Snapshot()
	if s.TotalProcessed != 1 || s.ClassCount.Get("yeso") != 0 || s.ClassCount.Get("piedra") != 1 {
		t.Fatalf("expected snapshot to replace aggregate, got %+v", s)
	}
}

type countingObserver struct{ folds, rejected int }

func (c *countingObserver) ObserveFold(n int) { c.folds += n }
func (c *countingObserver) ObserveRejected()  { c.rejected++ }

func TestObserverCounts(t *testing.T) {
	store := NewStore(storage.NewMemoryStore())
	obs := &countingObserver{}
	store.SetObserver(obs)
	_ = store.Fold(result("yeso", 10), result("yeso", 20))
	_ = store.Fold(result("nope", 10))
	if obs.folds != 2 || obs.rejected != 1 {
		t.Fatalf("unexpected observer counts %+v", obs)
	}
}

func TestFoldAndResetSurviveCorruptStorageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	if err := os.WriteFile(path, []byte(`{"sessionStats":"{\"totalPro`), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewStore(storage.NewFileStore(path))
	store.RestoreIfPersisted()
	if s := store.Snapshot(); s.TotalProcessed != 0 {
		t.Fatalf("expected empty restore, got %+v", s)
	}

	if err := store.Fold(result("yeso", 70)); err != nil {
		t.Fatalf("Fold after corruption: %v", err)
	}
	if err := store.Reset(); err != nil {
		t.Fatalf("Reset after corruption: %v", err)
	}
	if err := store.Fold(result("piedra", 40)); err != nil {
		t.Fatalf("Fold after reset: %v", err)
	}

	reopened := NewStore(storage.NewFileStore(path))
	reopened.RestoreIfPersisted()
	if s := reopened.Snapshot(); s.TotalProcessed != 1 || s.ClassCount.Get("piedra") != 1 {
		t.Fatalf("expected the post-reset fold persisted, got %+v", s)
	}
}

func TestNotifyDropsStaleSnapshots(t *testing.T) {
	store, _, rec := newRecordedStore(t)
	newer := Empty()
	newer.TotalProcessed = 2
	older := Empty()
	older.TotalProcessed = 1

	store.notify(newer, true, 2)
	store.notify(older, true, 1)

	if rec.refreshes != 1 || rec.last.TotalProcessed != 2 {
		t.Fatalf("expected only the newer snapshot delivered, got %d refreshes, last=%+v", rec.refreshes, rec.last)
	}
}

func TestConcurrentFoldsEndOnLatestSnapshot(t *testing.T) {
	store := NewStore(storage.NewMemoryStore())
	var mu sync.Mutex
	last := -1
	store.OnChange(func(s SessionStats) {
		mu.Lock()
		defer mu.Unlock()
		if s.TotalProcessed < last {
			t.Errorf("listener went backwards: %d after %d", s.TotalProcessed, last)
		}
		last = s.TotalProcessed
	})

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Fold(result("ceramico", 55)); err != nil {
				t.Errorf("Fold: %v", err)
			}
		}()
	}
	wg.Wait()

	if last != n {
		t.Fatalf("expected the last delivered total to be %d, got %d", n, last)
	}
}
