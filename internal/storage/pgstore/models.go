package pgstore

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrade/internal/domain"
)

const walletRowID = 1

// WalletRecord is the singleton wallet row.
type WalletRecord struct {
	ID        uint            `gorm:"primaryKey"`
	Balance   decimal.Decimal `gorm:"type:numeric;not null"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime"`
}

func (WalletRecord) TableName() string {
	return "wallet"
}

// HoldingRecord is one holding row. ID grows with inserts and gives the list order.
type HoldingRecord struct {
	ID                  uint            `gorm:"primaryKey"`
	Symbol              string          `gorm:"type:text;not null;uniqueIndex:idx_holding_symbol"`
	Name                string          `gorm:"type:text;not null;default:''"`
	Quantity            int64           `gorm:"not null;check:quantity >= 1"`
	TotalCost           decimal.Decimal `gorm:"type:numeric;not null"`
	AverageCostPerShare decimal.Decimal `gorm:"type:numeric;not null"`
	CurrentPrice        decimal.Decimal `gorm:"type:numeric;not null"`
	Change              decimal.Decimal `gorm:"type:numeric;not null"`
	MarketValue         decimal.Decimal `gorm:"type:numeric;not null"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime"`
}

func (HoldingRecord) TableName() string {
	return "holdings"
}

// CommitRecord marks an intent as committed.
type CommitRecord struct {
	IntentID    string    `gorm:"primaryKey;type:text"`
	Fingerprint string    `gorm:"type:text;not null;default:''"`
	CommittedAt time.Time `gorm:"autoCreateTime"`
}

func (CommitRecord) TableName() string {
	return "ledger_commits"
}

func toHoldingRecord(h domain.Holding) HoldingRecord {
	return HoldingRecord{
		Symbol:              h.Symbol,
		Name:                h.Name,
		Quantity:            h.Quantity,
		TotalCost:           h.TotalCost,
		AverageCostPerShare: h.AverageCostPerShare,
		CurrentPrice:        h.CurrentPrice,
		Change:              h.Change,
		MarketValue:         h.MarketValue,
	}
}

func (r HoldingRecord) toDomain() domain.Holding {
	return domain.Holding{
		Symbol:              r.Symbol,
		Name:                r.Name,
		Quantity:            r.Quantity,
		TotalCost:           r.TotalCost,
		AverageCostPerShare: r.AverageCostPerShare,
		CurrentPrice:        r.CurrentPrice,
		Change:              r.Change,
		MarketValue:         r.MarketValue,
	}
}
