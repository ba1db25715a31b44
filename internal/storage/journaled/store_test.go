package journaled

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/papertrade/internal/domain"
	"github.com/vadiminshakov/papertrade/internal/journal"
	"github.com/vadiminshakov/papertrade/internal/ledger"
	"github.com/vadiminshakov/papertrade/internal/storage/filestore"
)

type fixture struct {
	dir   string
	files *filestore.Store
	store *Store
}

func open(t *testing.T, dir string) fixture {
	t.Helper()
	files, err := filestore.Open(filepath.Join(dir, "records"))
	require.NoError(t, err)
	j, err := journal.Open(filepath.Join(dir, "journal"), nil)
	require.NoError(t, err)
	s, err := New(files, j)
	require.NoError(t, err)
	return fixture{dir: dir, files: files, store: s}
}

func seeded(t *testing.T) (fixture, *ledger.Executor) {
	t.Helper()
	f := open(t, t.TempDir())
	t.Cleanup(func() { _ = f.store.Close() })

	_, err := ledger.Bootstrap(context.Background(), f.store, domain.SeedBalance, nil)
	require.NoError(t, err)
	exec, err := ledger.NewExecutor(f.store)
	require.NoError(t, err)
	return f, exec
}

func failOnce(record filestore.Record) filestore.WriteHook {
	var fired atomic.Bool
	return func(_ context.Context, r filestore.Record) error {
		if r == record && fired.CompareAndSwap(false, true) {
			return errors.Errorf("injected %s failure", r)
		}
		return nil
	}
}

func buy(sym string, qty int64, price int64) domain.TradeIntent {
	return domain.NewTradeIntent("", domain.SideBuy, sym, "", qty, decimal.NewFromInt(price))
}

func TestStore_ScenarioOverSplitRecords(t *testing.T) {
	ctx := context.Background()
	f, exec := seeded(t)

	_, err := exec.Apply(ctx, buy("AAPL", 10, 150))
	require.NoError(t, err)
	_, err = exec.Apply(ctx, domain.NewTradeIntent("", domain.SideSell, "AAPL", "", 4, decimal.NewFromInt(170)))
	require.NoError(t, err)

	snap, err := f.store.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Wallet.Balance.Equal(decimal.NewFromInt(24180)))
	require.Len(t, snap.Holdings, 1)
	assert.True(t, snap.Holdings[0].TotalCost.Equal(decimal.NewFromInt(820)))
}

func TestStore_WalletFailureRollsBackHoldings(t *testing.T) {
	ctx := context.Background()
	f, exec := seeded(t)

	_, err := exec.Apply(ctx, buy("AAPL", 1, 100))
	require.NoError(t, err)
	before, err := f.store.Snapshot(ctx)
	require.NoError(t, err)

	f.files.SetWriteHook(failOnce(filestore.RecordWallet))
	intent := buy("AAPL", 2, 100)
	_, err = exec.Apply(ctx, intent)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	after, err := f.store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Holdings, after.Holdings, "holding change must be undone")
	assert.True(t, after.Wallet.Balance.Equal(before.Wallet.Balance))

	_, committed, err := f.store.Committed(ctx, intent.ID)
	require.NoError(t, err)
	assert.False(t, committed)

	status, ok := f.store.journal.Lookup(intent.ID)
	require.True(t, ok)
	assert.Equal(t, journal.StatusRolledBack, status)
}

func TestStore_WalletWriteTimeoutRollsBack(t *testing.T) {
	ctx := context.Background()
	f := open(t, t.TempDir())
	t.Cleanup(func() { _ = f.store.Close() })
	_, err := ledger.Bootstrap(ctx, f.store, domain.SeedBalance, nil)
	require.NoError(t, err)
	exec, err := ledger.NewExecutor(f.store, ledger.WithStoreTimeout(200*time.Millisecond))
	require.NoError(t, err)

	_, err = exec.Apply(ctx, buy("AAPL", 1, 100))
	require.NoError(t, err)
	before, err := f.store.Snapshot(ctx)
	require.NoError(t, err)

	// the holdings record is already on disk when the wallet write stalls past the deadline
	var holdingsWritten, fired atomic.Bool
	f.files.SetWriteHook(func(ctx context.Context, r filestore.Record) error {
		if r == filestore.RecordHoldings && !fired.Load() {
			holdingsWritten.Store(true)
		}
		if r == filestore.RecordWallet && fired.CompareAndSwap(false, true) {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})

	intent := buy("AAPL", 2, 100)
	_, err = exec.Apply(ctx, intent)
	require.Error(t, err)
	assert.Equal(t, domain.KindStoreUnavailable, domain.KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, holdingsWritten.Load())
	assert.True(t, fired.Load())

	after, err := f.store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Holdings, after.Holdings)
	assert.True(t, after.Wallet.Balance.Equal(before.Wallet.Balance))

	status, ok := f.store.journal.Lookup(intent.ID)
	require.True(t, ok)
	assert.Equal(t, journal.StatusRolledBack, status)
	_, committed, err := f.store.Committed(ctx, intent.ID)
	require.NoError(t, err)
	assert.False(t, committed)
}

type deltaLog struct {
	mu     sync.Mutex
	deltas []domain.LedgerDelta
}

func (l *deltaLog) PublishDelta(d domain.LedgerDelta) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deltas = append(l.deltas, d)
}

func TestStore_ConcurrentMixedOperations(t *testing.T) {
	const (
		workers = 8
		rounds  = 15
	)
	ctx := context.Background()
	f := open(t, t.TempDir())
	t.Cleanup(func() { _ = f.store.Close() })
	_, err := ledger.Bootstrap(ctx, f.store, domain.SeedBalance, nil)
	require.NoError(t, err)
	log := &deltaLog{}
	exec, err := ledger.NewExecutor(f.store, ledger.WithSinks(log))
	require.NoError(t, err)

	price := decimal.NewFromInt(10)
	symbols := []string{"AAPL", "MSFT"}

	var wg sync.WaitGroup
	errs := make(chan error, workers*rounds)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				sym := symbols[(w+i)%len(symbols)]
				qty := int64(1 + (w+i)%5)
				var err error
				switch (w + i) % 3 {
				case 0:
					_, err = exec.Apply(ctx, domain.NewTradeIntent("", domain.SideBuy, sym, "", qty*40, price))
				case 1:
					_, err = exec.Apply(ctx, domain.NewTradeIntent("", domain.SideSell, sym, "", qty*30, price))
				default:
					_, err = exec.SetBalance(ctx, decimal.NewFromInt(int64(500*(w+1))))
				}
				switch {
				case err == nil,
					errors.Is(err, domain.ErrInsufficientFunds),
					errors.Is(err, domain.ErrInsufficientShares):
				default:
					errs <- fmt.Errorf("worker %d round %d: %w", w, i, err)
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	snap, err := f.store.Snapshot(ctx)
	require.NoError(t, err)
	require.False(t, snap.Wallet.Balance.IsNegative())

	// trades at one price keep balance + price*shares fixed, so only balance sets move it
	log.mu.Lock()
	deltas := append([]domain.LedgerDelta(nil), log.deltas...)
	log.mu.Unlock()
	require.NotEmpty(t, deltas)

	prev := domain.SeedBalance
	adjustment := decimal.Zero
	for _, d := range deltas {
		assert.False(t, d.Wallet.Balance.IsNegative(), "intent %s", d.IntentID)
		if d.Kind == domain.DeltaBalanceSet {
			adjustment = adjustment.Add(d.Wallet.Balance.Sub(prev))
		}
		prev = d.Wallet.Balance
	}
	assert.True(t, snap.Wallet.Balance.Equal(prev), "snapshot %s, last delta %s", snap.Wallet.Balance, prev)

	var shares int64
	for _, h := range snap.Holdings {
		assert.GreaterOrEqual(t, h.Quantity, int64(1), h.Symbol)
		shares += h.Quantity
	}
	value := snap.Wallet.Balance.Add(price.Mul(decimal.NewFromInt(shares)))
	assert.True(t, value.Equal(domain.SeedBalance.Add(adjustment)), "value %s, want %s", value, domain.SeedBalance.Add(adjustment))
	assert.Empty(t, f.store.journal.Pending())
}

func TestStore_HoldingsFailureLeavesWallet(t *testing.T) {
	ctx := context.Background()
	f, exec := seeded(t)

	f.files.SetWriteHook(failOnce(filestore.RecordHoldings))
	_, err := exec.Apply(ctx, buy("MSFT", 3, 10))
	require.Error(t, err)

	snap, err := f.store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Holdings)
	assert.True(t, snap.Wallet.Balance.Equal(domain.SeedBalance))
}

func TestStore_ReconcilesInterruptedIntent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f := open(t, dir)
	_, err := ledger.Bootstrap(ctx, f.store, domain.SeedBalance, nil)
	require.NoError(t, err)

	// simulate a crash between the holdings write and the wallet write
	h, err := domain.NewHolding("NVDA", "", 5, decimal.NewFromInt(100))
	require.NoError(t, err)
	batch := ledger.Batch{IntentID: "crashed", Mutations: []ledger.Mutation{
		ledger.UpsertHolding(*h),
		ledger.SetWallet(domain.Wallet{Balance: decimal.NewFromInt(24500)}),
	}}
	before, err := f.store.beforeImage(batch)
	require.NoError(t, err)
	_, err = f.store.journal.Prepare(batch, before)
	require.NoError(t, err)
	require.NoError(t, f.files.SaveHoldings(ctx, []domain.Holding{*h}))
	require.NoError(t, f.store.Close())

	reopened := open(t, dir)
	defer reopened.store.Close()

	snap, err := reopened.store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Holdings)
	assert.True(t, snap.Wallet.Balance.Equal(domain.SeedBalance))

	status, ok := reopened.store.journal.Lookup("crashed")
	require.True(t, ok)
	assert.Equal(t, journal.StatusRolledBack, status)
	assert.Empty(t, reopened.store.journal.Pending())
}

func TestStore_CommitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f, _ := seeded(t)

	batch := ledger.Batch{IntentID: "once", Mutations: []ledger.Mutation{
		ledger.SetWallet(domain.Wallet{Balance: decimal.NewFromInt(7)}),
	}}
	require.NoError(t, f.store.Commit(ctx, batch))

	_, ok, err := f.store.Committed(ctx, "once")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.store.Commit(ctx, batch))
	w, err := f.store.GetWallet(ctx)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(7)))
}

func TestStore_MissingWallet(t *testing.T) {
	f := open(t, t.TempDir())
	defer f.store.Close()

	_, err := f.store.GetWallet(context.Background())
	assert.ErrorIs(t, err, ledger.ErrWalletNotFound)
}
