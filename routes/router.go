package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/daka/config"
	"github.com/cppla/daka/controllers"
	"github.com/cppla/daka/ledger"
	"github.com/cppla/daka/metrics"
	"github.com/cppla/daka/middleware"
	"github.com/cppla/daka/services"
	"github.com/cppla/daka/utils"
)

// Deps are the collaborators the router wires into controllers.
type Deps struct {
	DB     *gorm.DB
	Ledger ledger.Reader
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, deps Deps) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	// Access log and panic recovery go to their own rolling file
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, true))
	} else {
		r.Use(gin.Recovery())
	}
	r.Use(middleware.RequestMetrics())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	log := utils.Logger
	policies := services.NewPolicyStore(deps.DB, log)
	streaks := services.NewStreakTracker(deps.DB)
	recorder := services.NewRecorder(deps.DB, streaks, log)
	stats := services.NewStatsAggregator(deps.DB, policies, log)
	daka := services.NewDakaService(deps.Ledger, policies, recorder, log, services.Options{
		SignatureWindow:  cfg.SignatureWindow,
		RequireSignature: cfg.RequireSignature,
	})

	dakaController := controllers.NewDakaController(daka, streaks)
	statsController := controllers.NewStatsController(stats)
	adminController := controllers.NewAdminController(policies)

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api/v1")
	api.GET("/stats", statsController.GetStats)
	api.GET("/daka/:wallet", dakaController.Status)
	api.POST("/daka", middleware.RateLimitMiddleware(cfg.RateLimitPerMinute), dakaController.Submit)

	admin := api.Group("/admin")
	admin.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute), middleware.AdminRequired(cfg.JWTSecret))
	admin.GET("/policy", adminController.GetPolicy)
	admin.PUT("/policy", adminController.UpdatePolicy)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
