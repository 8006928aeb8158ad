package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/daka/services"
)

// StatsController serves today's check-in count with the display policy.
type StatsController struct {
	stats *services.StatsAggregator
	now   func() time.Time
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(stats *services.StatsAggregator) *StatsController {
	return &StatsController{stats: stats, now: time.Now}
}

// GetStats returns {count, target, testing_mode}; it degrades to defaults instead of failing.
func (s *StatsController) GetStats(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, s.stats.Snapshot(ctx.Request.Context(), s.now()))
}
