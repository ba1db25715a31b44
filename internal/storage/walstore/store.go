// Package walstore persists the ledger in a gowal log. Every batch is one WAL record,
// so a batch is either fully replayed or absent.
package walstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/papertrade/internal/domain"
	"github.com/vadiminshakov/papertrade/internal/ledger"
	"github.com/vadiminshakov/papertrade/internal/storage/memstore"
	"go.uber.org/zap"
)

const (
	defaultDir         = "./data/wal"
	commitKeyPrefix    = "ledger_commit_"
	checkpointKey      = "ledger_checkpoint"
	segmentLimit       = 1000
	maxSegments        = 100
	defaultCheckpoints = 100
	dirPerm            = 0o755
)

// Store keeps the live state in memory and appends every batch to the WAL before applying it.
// A full checkpoint is written every few commits so segment rotation never drops state.
type Store struct {
	mu     sync.Mutex
	wal    *gowal.Wal
	state  *memstore.Store
	logger *zap.Logger

	checkpointEvery int
	sinceCheckpoint int
	commitLimit     int
}

// Option configures a Store.
type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCheckpointEvery sets how many commits go between checkpoints.
func WithCheckpointEvery(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.checkpointEvery = n
		}
	}
}

// WithCommitLimit bounds how many committed intent IDs are kept, and so the checkpoint size.
func WithCommitLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.commitLimit = n
		}
	}
}

// Open opens the WAL under dir and replays it.
func Open(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		dir = defaultDir
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, errors.Wrapf(err, "failed to ensure WAL directory %s", dir)
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "ledger_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init ledger WAL")
	}

	s := &Store{
		wal:             wal,
		logger:          zap.NewNop(),
		checkpointEvery: defaultCheckpoints,
		commitLimit:     memstore.DefaultCommitLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = memstore.New(memstore.WithCommitLimit(s.commitLimit))

	if err := s.replay(); err != nil {
		_ = wal.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) replay() error {
	ctx := context.Background()
	replayed := 0

	for msg := range s.wal.Iterator() {
		switch {
		case msg.Key == checkpointKey:
			var st memstore.State
			if err := json.Unmarshal(msg.Value, &st); err != nil {
				return errors.Wrapf(ledger.ErrCorrupt, "decode checkpoint: %v", err)
			}
			s.state.Import(st)
			s.sinceCheckpoint = 0
		case strings.HasPrefix(msg.Key, commitKeyPrefix):
			var batch ledger.Batch
			if err := json.Unmarshal(msg.Value, &batch); err != nil {
				return errors.Wrapf(ledger.ErrCorrupt, "decode %s: %v", msg.Key, err)
			}
			if err := s.state.Commit(ctx, batch); err != nil {
				return errors.Wrapf(err, "replay %s", msg.Key)
			}
			s.sinceCheckpoint++
			replayed++
		}
	}

	s.logger.Info("ledger WAL replayed", zap.Int("commits", replayed), zap.Uint64("index", s.wal.CurrentIndex()))
	return nil
}

func (s *Store) GetWallet(ctx context.Context) (domain.Wallet, error) {
	return s.state.GetWallet(ctx)
}

func (s *Store) GetHolding(ctx context.Context, symbol string) (*domain.Holding, error) {
	return s.state.GetHolding(ctx, symbol)
}

func (s *Store) ListHoldings(ctx context.Context) ([]domain.Holding, error) {
	return s.state.ListHoldings(ctx)
}

func (s *Store) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	return s.state.Snapshot(ctx)
}

func (s *Store) Committed(ctx context.Context, intentID string) (string, bool, error) {
	return s.state.Committed(ctx, intentID)
}

func (s *Store) Commit(ctx context.Context, batch ledger.Batch) error {
	if err := batch.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return errors.Wrap(err, "marshal ledger batch")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok, _ := s.state.Committed(ctx, batch.IntentID); ok {
		return nil
	}

	key := fmt.Sprintf("%s%s", commitKeyPrefix, batch.IntentID)
	if err := s.wal.Write(s.wal.CurrentIndex()+1, key, payload); err != nil {
		return errors.Wrap(err, "append ledger batch")
	}

	// the record is durable, so applying it in memory cannot diverge from a replay
	if err := s.state.Commit(context.WithoutCancel(ctx), batch); err != nil {
		return errors.Wrap(err, "apply ledger batch")
	}

	s.sinceCheckpoint++
	if s.sinceCheckpoint >= s.checkpointEvery {
		if err := s.checkpointLocked(); err != nil {
			s.logger.Warn("ledger checkpoint failed", zap.Error(err))
		}
	}
	return nil
}

// Checkpoint writes the full state to the WAL.
func (s *Store) Checkpoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpointLocked()
}

func (s *Store) checkpointLocked() error {
	payload, err := json.Marshal(s.state.Export())
	if err != nil {
		return errors.Wrap(err, "marshal checkpoint")
	}
	if err := s.wal.Write(s.wal.CurrentIndex()+1, checkpointKey, payload); err != nil {
		return errors.Wrap(err, "write checkpoint")
	}
	s.sinceCheckpoint = 0
	return nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *Store) CurrentIndex() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wal.Close()
}
