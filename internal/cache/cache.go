// Package cache keeps a read-side copy of the ledger snapshot, patched from committed deltas.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/papertrade/internal/domain"
	"github.com/vadiminshakov/papertrade/internal/ledger"
)

const snapshotKey = "snapshot"

// Snapshots serves ledger reads from memory and falls back to the store on a miss.
// It must be registered as a delta sink of the executor that writes to the same store.
type Snapshots struct {
	c     *ristretto.Cache
	ttl   time.Duration
	store ledger.Reader

	mu  sync.Mutex
	gen uint64
}

var _ ledger.Reader = (*Snapshots)(nil)

func New(store ledger.Reader, ttl time.Duration) (*Snapshots, error) {
	if store == nil {
		return nil, errors.New("cache needs a backing store")
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e3,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create ristretto cache")
	}
	return &Snapshots{c: c, ttl: ttl, store: store}, nil
}

func (s *Snapshots) get() (domain.Snapshot, bool) {
	v, ok := s.c.Get(snapshotKey)
	if !ok {
		return domain.Snapshot{}, false
	}
	snap, ok := v.(domain.Snapshot)
	return snap, ok
}

func (s *Snapshots) set(snap domain.Snapshot) {
	// a dropped set must not leave an older snapshot readable
	if !s.c.SetWithTTL(snapshotKey, snap, int64(1+len(snap.Holdings)), s.ttl) {
		s.c.Del(snapshotKey)
	}
	s.c.Wait()
}

// Snapshot returns a copy of the cached snapshot, loading it on a miss.
// A load that races with a delta is returned but not cached.
func (s *Snapshots) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	if snap, ok := s.get(); ok {
		return snap.Clone(), nil
	}

	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}

	s.mu.Lock()
	if s.gen == gen {
		s.set(snap.Clone())
	}
	s.mu.Unlock()
	return snap, nil
}

func (s *Snapshots) GetWallet(ctx context.Context) (domain.Wallet, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return domain.Wallet{}, err
	}
	return snap.Wallet, nil
}

func (s *Snapshots) GetHolding(ctx context.Context, symbol string) (*domain.Holding, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	h, ok := snap.Find(symbol)
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (s *Snapshots) ListHoldings(ctx context.Context) ([]domain.Holding, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Holdings, nil
}

// PublishDelta patches the cached snapshot. With nothing cached it only bumps the generation.
func (s *Snapshots) PublishDelta(d domain.LedgerDelta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if snap, ok := s.get(); ok {
		s.set(snap.Patch(d))
	}
}

// Invalidate drops the cached snapshot.
func (s *Snapshots) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.c.Del(snapshotKey)
	s.c.Wait()
}

func (s *Snapshots) Close() {
	s.c.Close()
}
