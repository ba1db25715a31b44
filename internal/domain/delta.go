package domain

import "time"

// DeltaKind says which operation produced a LedgerDelta.
type DeltaKind string

const (
	DeltaBuy        DeltaKind = "buy"
	DeltaSell       DeltaKind = "sell"
	DeltaBalanceSet DeltaKind = "balance_set"
)

// DeltaKindFor maps a trade side onto its delta kind.
func DeltaKindFor(side Side) DeltaKind {
	if side == SideSell {
		return DeltaSell
	}
	return DeltaBuy
}

// LedgerDelta describes the state after one settlement so read sides can patch
// themselves without a full re-fetch. Holding is nil for balance overwrites and deletions.
type LedgerDelta struct {
	IntentID string    `json:"intentId"`
	Kind     DeltaKind `json:"kind"`
	Symbol   string    `json:"symbol,omitempty"`
	Wallet   Wallet    `json:"wallet"`
	Holding  *Holding  `json:"holding"`
	Deleted  bool      `json:"deleted"`
	Replayed bool      `json:"replayed"`
	At       time.Time `json:"at"`
}

// Snapshot is a consistent view of the whole ledger.
type Snapshot struct {
	Wallet   Wallet    `json:"wallet"`
	Holdings []Holding `json:"holdings"`
}

// Clone returns a copy that shares no backing array with s.
func (s Snapshot) Clone() Snapshot {
	holdings := make([]Holding, len(s.Holdings))
	copy(holdings, s.Holdings)
	return Snapshot{Wallet: s.Wallet, Holdings: holdings}
}

// Patch returns the snapshot with d applied. New holdings are appended so
// insertion order is kept. Replayed deltas carry current state and patch the same way.
func (s Snapshot) Patch(d LedgerDelta) Snapshot {
	next := s.Clone()
	next.Wallet = d.Wallet

	if d.Symbol == "" {
		return next
	}

	idx := -1
	for i := range next.Holdings {
		if next.Holdings[i].Symbol == d.Symbol {
			idx = i
			break
		}
	}

	switch {
	case d.Deleted || d.Holding == nil:
		if idx >= 0 {
			next.Holdings = append(next.Holdings[:idx], next.Holdings[idx+1:]...)
		}
	case idx >= 0:
		next.Holdings[idx] = *d.Holding
	default:
		next.Holdings = append(next.Holdings, *d.Holding)
	}
	return next
}

// Find returns the holding for symbol, if present.
func (s Snapshot) Find(symbol string) (Holding, bool) {
	symbol = NormalizeSymbol(symbol)
	for _, h := range s.Holdings {
		if h.Symbol == symbol {
			return h, true
		}
	}
	return Holding{}, false
}
