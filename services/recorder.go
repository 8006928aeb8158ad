package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/daka/metrics"
	"github.com/cppla/daka/models"
)

// RecordResult is the outcome of inserting a check-in row.
type RecordResult int

const (
	Recorded RecordResult = iota
	AlreadyRecordedToday
	StorageUnavailable
)

func (r RecordResult) String() string {
	switch r {
	case Recorded:
		return "recorded"
	case AlreadyRecordedToday:
		return "already_recorded_today"
	default:
		return "storage_unavailable"
	}
}

// Recorder inserts check-ins and advances streaks after a successful insert.
type Recorder struct {
	db      *gorm.DB
	streaks *StreakTracker
	log     *zap.Logger
}

// NewRecorder creates a recorder on db.
func NewRecorder(db *gorm.DB, streaks *StreakTracker, log *zap.Logger) *Recorder {
	return &Recorder{db: db, streaks: streaks, log: log}
}

// Record inserts {wallet, date}. The unique index is the only guard
// against a second check-in on the same day; there is no read before the
// insert because two concurrent requests could both pass it.
func (r *Recorder) Record(ctx context.Context, wallet string, date time.Time) RecordResult {
	day := UTCDay(date)
	err := r.db.WithContext(ctx).Create(&models.CheckIn{Wallet: wallet, Date: day}).Error
	if err != nil {
		if isUniqueViolation(err) {
			return AlreadyRecordedToday
		}
		r.log.Error("insert check-in failed", zap.String("wallet", wallet), zap.Time("date", day), zap.Error(err))
		return StorageUnavailable
	}

	// The check-in is committed; the streak is secondary and its failure
	// must not turn a recorded check-in into an error.
	if err := r.streaks.Advance(context.WithoutCancel(ctx), wallet, day); err != nil {
		metrics.IncStreakFailure()
		r.log.Warn("streak update failed", zap.String("wallet", wallet), zap.Time("date", day), zap.Error(err))
	}
	return Recorded
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || // mysql 1062
		strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "SQLSTATE 23505") // postgres
}
