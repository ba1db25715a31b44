package ledger

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrade/internal/domain"
	"go.uber.org/zap"
)

const defaultStoreTimeout = 5 * time.Second

// DeltaSink receives every committed LedgerDelta in commit order.
// Implementations must not block.
type DeltaSink interface {
	PublishDelta(delta domain.LedgerDelta)
}

// Executor settles trade intents. Trades take the symbol lock and then the wallet lock,
// so trades on different symbols only serialize on the wallet read-check-commit step.
type Executor struct {
	store        Store
	sinks        []DeltaSink
	logger       *zap.Logger
	storeTimeout time.Duration
	now          func() time.Time

	symbols  *keyedMutex
	walletMu sync.Mutex
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithStoreTimeout bounds every store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.storeTimeout = d
		}
	}
}

// WithSinks registers delta consumers.
func WithSinks(sinks ...DeltaSink) Option {
	return func(e *Executor) {
		for _, s := range sinks {
			if s != nil {
				e.sinks = append(e.sinks, s)
			}
		}
	}
}

// WithClock overrides the delta timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExecutor creates an executor over store.
func NewExecutor(store Store, opts ...Option) (*Executor, error) {
	if store == nil {
		return nil, errors.New("ledger store is required")
	}

	e := &Executor{
		store:        store,
		logger:       zap.NewNop(),
		storeTimeout: defaultStoreTimeout,
		now:          time.Now,
		symbols:      newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Apply validates intent against the current ledger and commits it as one batch.
func (e *Executor) Apply(ctx context.Context, intent domain.TradeIntent) (domain.LedgerDelta, error) {
	intent.Symbol = domain.NormalizeSymbol(intent.Symbol)
	if intent.ID == "" {
		intent.ID = uuid.NewString()
	}
	if err := intent.Validate(); err != nil {
		return domain.LedgerDelta{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.LedgerDelta{}, domain.WrapTradeError(domain.KindCanceled, err, "intent %s discarded", intent.ID)
	}

	unlock := e.symbols.Lock(intent.Symbol)
	defer unlock()

	fingerprint := intent.Fingerprint()
	stored, committed, err := e.committed(ctx, intent.ID)
	if err != nil {
		return domain.LedgerDelta{}, err
	}
	if committed {
		// commits written before fingerprints were recorded carry none
		if stored != "" && stored != fingerprint {
			return domain.LedgerDelta{}, domain.NewTradeError(domain.KindIntentConflict,
				"intent %s was committed for a different trade", intent.ID)
		}
		return e.replay(ctx, intent)
	}

	holding, err := e.readHolding(ctx, intent.Symbol)
	if err != nil {
		return domain.LedgerDelta{}, err
	}

	var (
		mutation Mutation
		next     *domain.Holding
		deleted  bool
	)

	switch intent.Side {
	case domain.SideBuy:
		if holding == nil {
			next, err = domain.NewHolding(intent.Symbol, intent.Name, intent.Quantity, intent.Price)
			if err != nil {
				return domain.LedgerDelta{}, err
			}
		} else {
			if holding.Quantity > math.MaxInt64-intent.Quantity {
				return domain.LedgerDelta{}, domain.NewTradeError(domain.KindInvalidQuantity,
					"buying %d %s would exceed the maximum position size", intent.Quantity, intent.Symbol)
			}
			h := holding.Bought(intent.Quantity, intent.Price)
			if h.Name == "" {
				h.Name = intent.Name
			}
			next = &h
		}
		mutation = UpsertHolding(*next)
	case domain.SideSell:
		if holding == nil {
			return domain.LedgerDelta{}, domain.NewTradeError(domain.KindNoPosition, "no holding for %s", intent.Symbol)
		}
		if holding.Quantity < intent.Quantity {
			return domain.LedgerDelta{}, domain.NewTradeError(domain.KindInsufficientShares,
				"cannot sell %d %s, holding %d", intent.Quantity, intent.Symbol, holding.Quantity)
		}
		h, gone := holding.Sold(intent.Quantity, intent.Price)
		if gone {
			deleted = true
			mutation = DeleteHolding(intent.Symbol)
		} else {
			next = &h
			mutation = UpsertHolding(h)
		}
	}

	e.walletMu.Lock()
	defer e.walletMu.Unlock()

	wallet, err := e.readWallet(ctx)
	if err != nil {
		return domain.LedgerDelta{}, err
	}

	var nextWallet domain.Wallet
	if intent.Side == domain.SideBuy {
		nextWallet, err = wallet.Debit(intent.Cost())
		if err != nil {
			return domain.LedgerDelta{}, err
		}
	} else {
		nextWallet = wallet.Credit(intent.Cost())
	}

	batch := Batch{
		IntentID:    intent.ID,
		Fingerprint: fingerprint,
		Mutations:   []Mutation{mutation, SetWallet(nextWallet)},
	}
	if err := e.commit(ctx, batch); err != nil {
		return domain.LedgerDelta{}, err
	}

	delta := domain.LedgerDelta{
		IntentID: intent.ID,
		Kind:     domain.DeltaKindFor(intent.Side),
		Symbol:   intent.Symbol,
		Wallet:   nextWallet,
		Holding:  next,
		Deleted:  deleted,
		At:       e.now(),
	}
	e.publish(delta)

	e.logger.Info("trade settled",
		zap.String("intent_id", intent.ID),
		zap.String("side", intent.Side.String()),
		zap.String("symbol", intent.Symbol),
		zap.Int64("quantity", intent.Quantity),
		zap.String("price", intent.Price.String()),
		zap.String("balance", nextWallet.Balance.String()),
		zap.Bool("deleted", deleted))

	return delta, nil
}

// SetBalance overwrites the wallet balance. It serializes with trades on the wallet lock.
func (e *Executor) SetBalance(ctx context.Context, balance decimal.Decimal) (domain.LedgerDelta, error) {
	wallet, err := domain.NewWallet(balance)
	if err != nil {
		return domain.LedgerDelta{}, domain.NewTradeError(domain.KindInvalidBalance, "balance %s must not be negative", balance)
	}
	if err := ctx.Err(); err != nil {
		return domain.LedgerDelta{}, domain.WrapTradeError(domain.KindCanceled, err, "balance update discarded")
	}

	e.walletMu.Lock()
	defer e.walletMu.Unlock()

	batch := Batch{IntentID: uuid.NewString(), Mutations: []Mutation{SetWallet(wallet)}}
	if err := e.commit(ctx, batch); err != nil {
		return domain.LedgerDelta{}, err
	}

	delta := domain.LedgerDelta{
		IntentID: batch.IntentID,
		Kind:     domain.DeltaBalanceSet,
		Wallet:   wallet,
		At:       e.now(),
	}
	e.publish(delta)

	e.logger.Info("wallet balance set", zap.String("balance", wallet.Balance.String()))

	return delta, nil
}

// Status reports whether the intent with id has been committed.
func (e *Executor) Status(ctx context.Context, intentID string) (bool, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return false, domain.ErrInvalidIntent
	}
	_, ok, err := e.committed(ctx, intentID)
	return ok, err
}

func (e *Executor) replay(ctx context.Context, intent domain.TradeIntent) (domain.LedgerDelta, error) {
	holding, err := e.readHolding(ctx, intent.Symbol)
	if err != nil {
		return domain.LedgerDelta{}, err
	}
	e.walletMu.Lock()
	wallet, err := e.readWallet(ctx)
	e.walletMu.Unlock()
	if err != nil {
		return domain.LedgerDelta{}, err
	}

	e.logger.Info("intent already committed", zap.String("intent_id", intent.ID))

	return domain.LedgerDelta{
		IntentID: intent.ID,
		Kind:     domain.DeltaKindFor(intent.Side),
		Symbol:   intent.Symbol,
		Wallet:   wallet,
		Holding:  holding,
		Deleted:  holding == nil,
		Replayed: true,
		At:       e.now(),
	}, nil
}

func (e *Executor) committed(ctx context.Context, intentID string) (string, bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	fingerprint, ok, err := e.store.Committed(callCtx, intentID)
	if err != nil {
		return "", false, e.classify(ctx, err, "check intent %s", intentID)
	}
	return fingerprint, ok, nil
}

func (e *Executor) readHolding(ctx context.Context, symbol string) (*domain.Holding, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	h, err := e.store.GetHolding(callCtx, symbol)
	if err != nil {
		return nil, e.classify(ctx, err, "read holding %s", symbol)
	}
	if h == nil {
		return nil, nil
	}
	if h.Symbol != symbol {
		return nil, domain.NewTradeError(domain.KindStoreCorruption, "store returned %s for %s", h.Symbol, symbol)
	}
	if err := h.Validate(); err != nil {
		e.logger.Error("corrupt holding", zap.String("symbol", symbol), zap.Error(err))
		return nil, err
	}
	return h, nil
}

func (e *Executor) readWallet(ctx context.Context) (domain.Wallet, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	w, err := e.store.GetWallet(callCtx)
	if err != nil {
		if errors.Is(err, ErrWalletNotFound) {
			return domain.Wallet{}, domain.WrapTradeError(domain.KindStoreCorruption, err, "wallet record is missing")
		}
		return domain.Wallet{}, e.classify(ctx, err, "read wallet")
	}
	if err := w.Validate(); err != nil {
		e.logger.Error("corrupt wallet", zap.Error(err))
		return domain.Wallet{}, err
	}
	return w, nil
}

// commit issues the batch detached from caller cancellation.
// A request cancelled before this point is discarded instead.
func (e *Executor) commit(ctx context.Context, batch Batch) error {
	if err := ctx.Err(); err != nil {
		return domain.WrapTradeError(domain.KindCanceled, err, "intent %s discarded before commit", batch.IntentID)
	}

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.storeTimeout)
	defer cancel()

	if err := e.store.Commit(commitCtx, batch); err != nil {
		e.logger.Error("commit failed", zap.String("intent_id", batch.IntentID), zap.Error(err))
		return e.classify(commitCtx, err, "commit intent %s", batch.IntentID)
	}
	return nil
}

// classify turns a store error into a TradeError.
func (e *Executor) classify(ctx context.Context, err error, format string, args ...any) error {
	if kind := domain.KindOf(err); kind != "" {
		return err
	}
	switch {
	case errors.Is(err, ErrCorrupt):
		return domain.WrapTradeError(domain.KindStoreCorruption, err, format, args...)
	case errors.Is(err, context.Canceled) && ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded):
		return domain.WrapTradeError(domain.KindCanceled, err, format, args...)
	default:
		return domain.WrapTradeError(domain.KindStoreUnavailable, err, format, args...)
	}
}

func (e *Executor) publish(delta domain.LedgerDelta) {
	for _, s := range e.sinks {
		s.PublishDelta(delta)
	}
}
