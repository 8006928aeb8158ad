package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/daka/models"
)

// StreakTracker maintains per-wallet rolling check-in statistics.
type StreakTracker struct {
	db *gorm.DB
}

// NewStreakTracker creates a tracker on db.
func NewStreakTracker(db *gorm.DB) *StreakTracker {
	return &StreakTracker{db: db}
}

// Advance folds a recorded check-in on today into the wallet's streak row.
func (t *StreakTracker) Advance(ctx context.Context, wallet string, today time.Time) error {
	today = UTCDay(today)
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var streak models.WalletStreak
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("wallet = ?", wallet).
			First(&streak).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&models.WalletStreak{
				Wallet:          wallet,
				LastCheckinDate: today,
				ConsecutiveDays: 1,
				TotalCheckins:   1,
			}).Error
		}
		if err != nil {
			return err
		}

		next := advanceStreak(streak, today)
		return tx.Save(&next).Error
	})
	if err != nil {
		return fmt.Errorf("advance streak for %s: %w", wallet, err)
	}
	return nil
}

// advanceStreak applies one check-in on today to an existing row.
func advanceStreak(s models.WalletStreak, today time.Time) models.WalletStreak {
	switch {
	case isYesterday(s.LastCheckinDate, today):
		s.ConsecutiveDays++
	case isSameDay(s.LastCheckinDate, today):
		// repeated invocation for the same day must not extend the streak
	default:
		s.ConsecutiveDays = 1
	}
	s.TotalCheckins++
	s.LastCheckinDate = today
	if s.ConsecutiveDays >= models.QualifyingStreak {
		s.Qualified = true
	}
	return s
}

// WalletStatus is the read-side view of a wallet's streak.
type WalletStatus struct {
	Wallet          string     `json:"wallet"`
	ConsecutiveDays int        `json:"consecutive_days"`
	TotalCheckins   int        `json:"total_checkins"`
	Qualified       bool       `json:"qualified"`
	LastCheckinDate *time.Time `json:"last_checkin_date"`
	CheckedInToday  bool       `json:"checked_in_today"`
}

// Status returns the wallet's streak; a wallet that never checked in has a zero status.
func (t *StreakTracker) Status(ctx context.Context, wallet string, today time.Time) (WalletStatus, error) {
	status := WalletStatus{Wallet: wallet}

	var streak models.WalletStreak
	err := t.db.WithContext(ctx).Where("wallet = ?", wallet).First(&streak).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return status, fmt.Errorf("load streak for %s: %w", wallet, err)
	default:
		last := UTCDay(streak.LastCheckinDate)
		status.ConsecutiveDays = streak.ConsecutiveDays
		status.TotalCheckins = streak.TotalCheckins
		status.Qualified = streak.Qualified
		status.LastCheckinDate = &last
	}

	var n int64
	if err := t.db.WithContext(ctx).Model(&models.CheckIn{}).
		Where("wallet = ? AND date = ?", wallet, UTCDay(today)).
		Count(&n).Error; err != nil {
		return status, fmt.Errorf("count today's check-in for %s: %w", wallet, err)
	}
	status.CheckedInToday = n > 0
	return status, nil
}
