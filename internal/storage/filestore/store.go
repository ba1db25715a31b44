// Package filestore keeps the wallet and the holdings as two independent JSON files.
// Each file is replaced atomically, but nothing ties a wallet write to a holdings write.
package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/papertrade/internal/domain"
	"github.com/vadiminshakov/papertrade/internal/ledger"
)

const (
	walletFile   = "wallet.json"
	holdingsFile = "holdings.json"
	dirPerm      = 0o755
	filePerm     = 0o644
)

// Record names one of the two files.
type Record string

const (
	RecordWallet   Record = "wallet"
	RecordHoldings Record = "holdings"
)

// WriteHook runs before a record is written and can fail the write.
type WriteHook func(ctx context.Context, record Record) error

// Store reads and writes the two ledger records under one directory.
type Store struct {
	dir string

	mu        sync.Mutex
	writeHook WriteHook
}

// Option configures a Store.
type Option func(*Store)

// WithWriteHook installs a hook invoked before every record write.
func WithWriteHook(h WriteHook) Option {
	return func(s *Store) { s.writeHook = h }
}

// Open prepares dir for the ledger files.
func Open(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, errors.Wrap(err, "create ledger file dir")
	}
	s := &Store{dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetWriteHook replaces the write hook.
func (s *Store) SetWriteHook(h WriteHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeHook = h
}

// LoadWallet returns nil when the wallet file does not exist.
func (s *Store) LoadWallet() (*domain.Wallet, error) {
	var w domain.Wallet
	ok, err := s.load(walletFile, &w)
	if err != nil || !ok {
		return nil, err
	}
	return &w, nil
}

// LoadHoldings returns the holdings in insertion order.
func (s *Store) LoadHoldings() ([]domain.Holding, error) {
	var holdings []domain.Holding
	if _, err := s.load(holdingsFile, &holdings); err != nil {
		return nil, err
	}
	if holdings == nil {
		holdings = []domain.Holding{}
	}
	return holdings, nil
}

// SaveWallet replaces the wallet file.
func (s *Store) SaveWallet(ctx context.Context, w domain.Wallet) error {
	return s.save(ctx, RecordWallet, walletFile, w)
}

// SaveHoldings replaces the holdings file.
func (s *Store) SaveHoldings(ctx context.Context, holdings []domain.Holding) error {
	if holdings == nil {
		holdings = []domain.Holding{}
	}
	return s.save(ctx, RecordHoldings, holdingsFile, holdings)
}

// RemoveWallet deletes the wallet file if present.
func (s *Store) RemoveWallet(ctx context.Context) error {
	if err := s.beforeWrite(ctx, RecordWallet); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, walletFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "remove wallet file")
	}
	return nil
}

func (s *Store) load(name string, v any) (bool, error) {
	payload, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, errors.Wrapf(err, "read %s", name)
	}
	if len(payload) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return false, errors.Wrapf(ledger.ErrCorrupt, "decode %s: %v", name, err)
	}
	return true, nil
}

// save writes via a temp file and rename.
func (s *Store) save(ctx context.Context, record Record, name string, v any) error {
	if err := s.beforeWrite(ctx, record); err != nil {
		return err
	}

	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode %s", name)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, filePerm); err != nil {
		return errors.Wrapf(err, "write %s temp file", name)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "persist %s", name)
	}
	return nil
}

func (s *Store) beforeWrite(ctx context.Context, record Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	hook := s.writeHook
	s.mu.Unlock()
	if hook == nil {
		return nil
	}
	return errors.Wrapf(hook(ctx, record), "write %s", record)
}
