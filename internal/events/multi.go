package events

import (
	"github.com/vadiminshakov/papertrade/internal/domain"
	"github.com/vadiminshakov/papertrade/internal/ledger"
)

// Multi publishes each delta to every sink in order.
type Multi []ledger.DeltaSink

func (m Multi) PublishDelta(d domain.LedgerDelta) {
	for _, s := range m {
		s.PublishDelta(d)
	}
}
