// Package pgstore is the Postgres ledger.Store. Each batch commits inside one database transaction.
package pgstore

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/papertrade/config"
	"github.com/vadiminshakov/papertrade/internal/domain"
	"github.com/vadiminshakov/papertrade/internal/ledger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Store keeps the ledger in three tables: wallet, holdings and ledger_commits.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewClient connects with dsn and migrates the schema.
func NewClient(dsn string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to postgres")
	}

	s := &Store{db: db, logger: logger}
	if err := s.AutoMigrate(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Open builds the DSN from cfg, optionally creates the database and connects.
func Open(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Store, error) {
	if cfg.CreateDatabase {
		if err := CreateDatabase(ctx, cfg); err != nil {
			return nil, errors.Wrap(err, "failed to create database")
		}
	}

	dsn, err := cfg.DSN(ctx, cfg.DBName)
	if err != nil {
		return nil, err
	}
	s, err := NewClient(dsn, logger)
	if err != nil {
		return nil, err
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to retrieve raw DB")
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return s, nil
}

func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&WalletRecord{}, &HoldingRecord{}, &CommitRecord{}); err != nil {
		return errors.Wrap(err, "auto-migrate ledger tables")
	}
	return nil
}

func (s *Store) IsHealthy(ctx context.Context) bool {
	db, err := s.db.DB()
	if err != nil {
		return false
	}
	return db.PingContext(ctx) == nil
}

func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to retrieve raw DB")
	}
	return db.Close()
}

func (s *Store) GetWallet(ctx context.Context) (domain.Wallet, error) {
	return getWallet(s.db.WithContext(ctx))
}

func (s *Store) GetHolding(ctx context.Context, symbol string) (*domain.Holding, error) {
	var rec HoldingRecord
	err := s.db.WithContext(ctx).Where("symbol = ?", symbol).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "select holding %s", symbol)
	}
	h := rec.toDomain()
	return &h, nil
}

func (s *Store) ListHoldings(ctx context.Context) ([]domain.Holding, error) {
	return listHoldings(s.db.WithContext(ctx))
}

func (s *Store) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := getWallet(tx)
		if err != nil {
			return err
		}
		holdings, err := listHoldings(tx)
		if err != nil {
			return err
		}
		snap = domain.Snapshot{Wallet: w, Holdings: holdings}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	return snap, err
}

func (s *Store) Committed(ctx context.Context, intentID string) (string, bool, error) {
	var rec CommitRecord
	err := s.db.WithContext(ctx).Where("intent_id = ?", intentID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "check commit %s", intentID)
	}
	return rec.Fingerprint, true, nil
}

// Commit records the intent and applies every mutation in one transaction.
// A batch whose intent is already recorded is skipped.
func (s *Store) Commit(ctx context.Context, batch ledger.Batch) error {
	if err := batch.Validate(); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "intent_id"}},
			DoNothing: true,
		}).Create(&CommitRecord{IntentID: batch.IntentID, Fingerprint: batch.Fingerprint})
		if res.Error != nil {
			return errors.Wrap(res.Error, "insert commit record")
		}
		if res.RowsAffected == 0 {
			s.logger.Debug("batch already committed", zap.String("intent_id", batch.IntentID))
			return nil
		}

		for _, m := range batch.Mutations {
			if err := applyMutation(tx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

func applyMutation(tx *gorm.DB, m ledger.Mutation) error {
	switch m.Kind {
	case ledger.MutationSetWallet:
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"balance", "updated_at"}),
		}).Create(&WalletRecord{ID: walletRowID, Balance: m.Wallet.Balance}).Error
		return errors.Wrap(err, "upsert wallet")
	case ledger.MutationUpsertHolding:
		rec := toHoldingRecord(m.Holding)
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "quantity", "total_cost", "average_cost_per_share",
				"current_price", "change", "market_value", "updated_at",
			}),
		}).Create(&rec).Error
		return errors.Wrapf(err, "upsert holding %s", m.Symbol)
	case ledger.MutationDeleteHolding:
		err := tx.Where("symbol = ?", m.Symbol).Delete(&HoldingRecord{}).Error
		return errors.Wrapf(err, "delete holding %s", m.Symbol)
	default:
		return errors.Errorf("unknown mutation %s", m.Kind)
	}
}

func getWallet(db *gorm.DB) (domain.Wallet, error) {
	var rec WalletRecord
	err := db.Where("id = ?", walletRowID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Wallet{}, ledger.ErrWalletNotFound
	}
	if err != nil {
		return domain.Wallet{}, errors.Wrap(err, "select wallet")
	}
	return domain.Wallet{Balance: rec.Balance}, nil
}

func listHoldings(db *gorm.DB) ([]domain.Holding, error) {
	var recs []HoldingRecord
	if err := db.Order("id asc").Find(&recs).Error; err != nil {
		return nil, errors.Wrap(err, "select holdings")
	}
	out := make([]domain.Holding, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toDomain())
	}
	return out, nil
}
