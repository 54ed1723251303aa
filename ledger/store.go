package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrDuplicatePayment    = errors.New("payment already applied")
)

// Account is one user's credit balance.
type Account struct {
	UserID    string `gorm:"primaryKey"`
	Credits   int    `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// Payment records a verified purchase so the same transaction is never
// credited twice.
type Payment struct {
	TxHash    string `gorm:"primaryKey"`
	UserID    string `gorm:"index"`
	Credits   int
	CreatedAt time.Time
}

// Store persists accounts in SQLite.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// OpenStore opens (and migrates) the SQLite database at path.
func OpenStore(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("ledger db handle: %w", err)
	}
	// Single connection; concurrent sqlite writers fail with "database is locked".
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Account{}, &Payment{}); err != nil {
		return nil, fmt.Errorf("migrate ledger db: %w", err)
	}
	log.Info("ledger database ready", zap.String("path", path))
	return &Store{db: db, logger: log}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Balance returns the user's credits; unknown users have zero.
func (s *Store) Balance(ctx context.Context, userID string) (int, error) {
	var acct Account
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load balance: %w", err)
	}
	return acct.Credits, nil
}

// Credit adds credits bought in transaction txHash and returns the new balance.
func (s *Store) Credit(ctx context.Context, userID, txHash string, credits int) (int, error) {
	if credits <= 0 {
		return 0, fmt.Errorf("credit amount must be positive, got %d", credits)
	}
	var total int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Payment
		err := tx.Where("tx_hash = ?", txHash).First(&existing).Error
		if err == nil {
			return ErrDuplicatePayment
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.Create(&Payment{TxHash: txHash, UserID: userID, Credits: credits}).Error; err != nil {
			return err
		}

		acct := Account{UserID: userID}
		if err := tx.FirstOrCreate(&acct, Account{UserID: userID}).Error; err != nil {
			return err
		}
		if err := tx.Model(&Account{}).Where("user_id = ?", userID).
			Update("credits", gorm.Expr("credits + ?", credits)).Error; err != nil {
			return err
		}
		total = acct.Credits + credits
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("credit %s: %w", userID, err)
	}
	s.logger.Info("credits added", zap.String("user_id", userID), zap.Int("credits", credits), zap.Int("total", total))
	return total, nil
}

// Debit atomically removes credits, refusing to take the balance below zero.
// It returns the remaining balance.
func (s *Store) Debit(ctx context.Context, userID string, credits int) (int, error) {
	if credits <= 0 {
		return 0, fmt.Errorf("debit amount must be positive, got %d", credits)
	}
	var remaining int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Account{}).
			Where("user_id = ? AND credits >= ?", userID, credits).
			Update("credits", gorm.Expr("credits - ?", credits))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientCredits
		}
		var acct Account
		if err := tx.Where("user_id = ?", userID).First(&acct).Error; err != nil {
			return err
		}
		remaining = acct.Credits
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("debit %s: %w", userID, err)
	}
	s.logger.Info("credits deducted", zap.String("user_id", userID), zap.Int("credits", credits), zap.Int("remaining", remaining))
	return remaining, nil
}
