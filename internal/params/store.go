package params

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonathan/job-pricer/internal/logger"
	"github.com/jonathan/job-pricer/internal/types"
	"go.uber.org/zap"
)

// reloadDebounce collapses the burst of events editors emit for one save.
const reloadDebounce = 100 * time.Millisecond

// Store holds every known snapshot ordered by effective date.
type Store struct {
	path string
	log  *zap.Logger
	now  func() time.Time

	mu        sync.RWMutex
	snapshots []types.PricingParameters
}

// NewStore loads path and returns a Store serving its snapshots.
func NewStore(path string, log *zap.Logger) (*Store, error) {
	s := &Store{path: path, log: logger.OrNop(log), now: time.Now}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStoreFromSnapshots builds a Store from in-memory snapshots.
func NewStoreFromSnapshots(snapshots ...types.PricingParameters) (*Store, error) {
	for i := range snapshots {
		if err := Validate(&snapshots[i]); err != nil {
			return nil, err
		}
	}
	s := &Store{log: zap.NewNop(), now: time.Now}
	s.set(snapshots)
	return s, nil
}

func (s *Store) set(snapshots []types.PricingParameters) {
	sorted := make([]types.PricingParameters, len(snapshots))
	copy(sorted, snapshots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EffectiveFrom.Before(sorted[j].EffectiveFrom)
	})

	s.mu.Lock()
	s.snapshots = sorted
	s.mu.Unlock()
}

// Reload re-reads the file. On failure the previous snapshots stay in place.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	snapshots, err := LoadFile(s.path)
	if err != nil {
		return err
	}
	s.set(snapshots)
	s.log.Info("pricing parameters loaded",
		zap.String("path", s.path),
		zap.Int("versions", len(snapshots)))
	return nil
}

// SnapshotAt returns a copy of the snapshot with the latest effective date not after t.
func (s *Store) SnapshotAt(t time.Time) (*types.PricingParameters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.snapshots) - 1; i >= 0; i-- {
		if !s.snapshots[i].EffectiveFrom.After(t) {
			return Clone(&s.snapshots[i]), nil
		}
	}
	return nil, fmt.Errorf("%w at %s", ErrNoSnapshot, t.Format(time.RFC3339))
}

// Current returns the snapshot in force now.
func (s *Store) Current() (*types.PricingParameters, error) {
	return s.SnapshotAt(s.now())
}

// Version returns a copy of the snapshot with the given version.
func (s *Store) Version(version string) (*types.PricingParameters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.snapshots {
		if s.snapshots[i].Version == version {
			return Clone(&s.snapshots[i]), nil
		}
	}
	return nil, fmt.Errorf("%w: unknown version %q", ErrNoSnapshot, version)
}

// Versions lists the known versions in effective order.
func (s *Store) Versions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.snapshots))
	for _, p := range s.snapshots {
		out = append(out, p.Version)
	}
	return out
}

// Watch reloads the file whenever it changes until ctx ends. The directory is watched so
// editors that replace the file by rename are picked up. Failed reloads are logged and the
// previous snapshots kept.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return fmt.Errorf("parameter store has no file to watch")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to watch %s: %w", s.path, err)
	}

	target := filepath.Clean(s.path)
	go func() {
		defer func() { _ = w.Close() }()

		var timer *time.Timer
		reload := func() {
			if err := s.Reload(); err != nil {
				s.log.Warn("pricing parameters reload failed, keeping previous snapshots",
					zap.String("path", s.path), zap.Error(err))
			}
		}

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(e.Name) != target {
					continue
				}
				if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(reloadDebounce, reload)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn("parameter watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
