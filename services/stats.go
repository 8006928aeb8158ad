package services

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/daka/models"
)

// Snapshot is the display-only summary of today's activity.
type Snapshot struct {
	Count       int64  `json:"count"`
	Target      string `json:"target"`
	TestingMode bool   `json:"testing_mode"`
}

// StatsAggregator answers read-only stats queries.
type StatsAggregator struct {
	db       *gorm.DB
	policies *PolicyStore
	log      *zap.Logger
}

// NewStatsAggregator creates an aggregator on db.
func NewStatsAggregator(db *gorm.DB, policies *PolicyStore, log *zap.Logger) *StatsAggregator {
	return &StatsAggregator{db: db, policies: policies, log: log}
}

// Snapshot never fails: store errors fall back to a zero count and default policy.
func (a *StatsAggregator) Snapshot(ctx context.Context, today time.Time) Snapshot {
	snap := Snapshot{Target: strconv.Itoa(DefaultTargetCount)}

	if err := a.db.WithContext(ctx).Model(&models.CheckIn{}).
		Where("date = ?", UTCDay(today)).
		Count(&snap.Count).Error; err != nil {
		a.log.Warn("count today's check-ins failed", zap.Error(err))
		snap.Count = 0
	}

	policy, err := a.policies.Load(ctx)
	if err != nil {
		a.log.Warn("load policy for stats failed", zap.Error(err))
		return snap
	}
	snap.Target = strconv.Itoa(policy.TargetCount)
	snap.TestingMode = policy.TestingMode
	return snap
}
