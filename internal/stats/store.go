package stats

import (
	"fmt"
	"sync"

	"github.com/mwiater/escombro/internal/logging"
	"github.com/mwiater/escombro/internal/storage"
)

// Listener receives a copy of the aggregate after every change.
type Listener func(SessionStats)

// FoldObserver is notified about accepted and rejected batches.
type FoldObserver interface {
	ObserveFold(results int)
	ObserveRejected()
}

// Store is the single owner of the session aggregate. Fold is the only way
// to grow it, so the four counters always move together.
type Store struct {
	mu            sync.Mutex
	stats         SessionStats
	storage       storage.Storage
	exportEnabled bool
	version       uint64

	notifyMu  sync.Mutex
	delivered uint64
	listeners []Listener
	onExport  []func(enabled bool)
	observer  FoldObserver
}

// NewStore creates an empty store persisting into st.
func NewStore(st storage.Storage) *Store {
	return &Store{stats: Empty(), storage: st}
}

// OnChange registers a view refresh callback.
func (s *Store) OnChange(l Listener) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.listeners = append(s.listeners, l)
}

// OnExportChange registers a callback fired with the export-enabled state
// after every fold, reset and restore.
func (s *Store) OnExportChange(fn func(enabled bool)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.onExport = append(s.onExport, fn)
}

// SetObserver attaches telemetry.
func (s *Store) SetObserver(o FoldObserver) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.observer = o
}

// Fold incorporates results in order. The batch is validated up front and
// persisted before it becomes visible; on any error the aggregate and the
// snapshot are left exactly as they were. An empty call is a no-op.
func (s *Store) Fold(results ...ClassificationResult) error {
	if len(results) == 0 {
		return nil
	}
	for i, r := range results {
		if err := r.Validate(); err != nil {
			s.observeRejected()
			return fmt.Errorf("%w: result %d: %v", ErrInvalidBatch, i, err)
		}
	}

	s.mu.Lock()
	next := s.stats.Clone()
	for _, r := range results {
		next.fold(r)
	}
	data, err := EncodeSnapshot(next)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.storage.Set(storage.KeySessionStats, string(data)); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persist snapshot: %w", err)
	}
	s.stats = next
	s.exportEnabled = next.TotalProcessed > 0
	s.version++
	snap, enabled, version := next.Clone(), s.exportEnabled, s.version
	s.mu.Unlock()

	logging.LogEvent("[STATS] folded %d result(s), total=%d", len(results), snap.TotalProcessed)
	s.notify(snap, enabled, version)
	s.observeFold(len(results))
	return nil
}

// Reset empties the aggregate and deletes the snapshot.
func (s *Store) Reset() error {
	s.mu.Lock()
	if err := s.storage.Remove(storage.KeySessionStats); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("delete snapshot: %w", err)
	}
	s.stats = Empty()
	s.exportEnabled = false
	s.version++
	snap, version := s.stats.Clone(), s.version
	s.mu.Unlock()

	logging.LogEvent("[STATS] session statistics reset")
	s.notify(snap, false, version)
	return nil
}

// RestoreIfPersisted replaces the aggregate with the stored snapshot when one
// exists and decodes cleanly. Unreadable snapshots are logged and ignored.
// Exactly one refresh follows, whatever the outcome.
func (s *Store) RestoreIfPersisted() {
	s.mu.Lock()
	raw, ok, err := s.storage.Get(storage.KeySessionStats)
	switch {
	case err != nil:
		logging.LogWarn("[STATS] could not read persisted statistics: %v", err)
	case !ok:
		logging.LogEvent("[STATS] no persisted statistics")
	default:
		restored, derr := DecodeSnapshot([]byte(raw))
		if derr != nil {
			logging.LogWarn("[STATS] ignoring persisted statistics: %v", derr)
			break
		}
		s.stats = restored
		logging.LogEvent("[STATS] restored %d result(s) from storage", restored.TotalProcessed)
	}
	s.exportEnabled = s.stats.TotalProcessed > 0
	s.version++
	snap, enabled, version := s.stats.Clone(), s.exportEnabled, s.version
	s.mu.Unlock()

	s.notify(snap, enabled, version)
}

// Snapshot returns a copy of the current aggregate.
func (s *Store) Snapshot() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.Clone()
}

// ExportEnabled reports whether there is anything to export.
func (s *Store) ExportEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exportEnabled
}

// notify delivers a mutation's snapshot. Mutations commit in version order
// but may reach notify in any order; a snapshot older than one already
// delivered is dropped so listeners never step backwards.
func (s *Store) notify(snap SessionStats, exportEnabled bool, version uint64) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if version <= s.delivered {
		return
	}
	s.delivered = version
	for _, l := range s.listeners {
		l(snap.Clone())
	}
	for _, fn := range s.onExport {
		fn(exportEnabled)
	}
}

func (s *Store) observeFold(n int) {
	s.notifyMu.Lock()
	o := s.observer
	s.notifyMu.Unlock()
	if o != nil {
		o.ObserveFold(n)
	}
}

func (s *Store) observeRejected() {
	s.notifyMu.Lock()
	o := s.observer
	s.notifyMu.Unlock()
	if o != nil {
		o.ObserveRejected()
	}
}
