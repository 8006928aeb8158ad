package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/daka/ledger"
	"github.com/cppla/daka/services"
	"github.com/cppla/daka/utils"
)

// DakaController handles the daily check-in endpoints.
type DakaController struct {
	daka    *services.DakaService
	streaks *services.StreakTracker
	now     func() time.Time
}

// NewDakaController creates a new controller instance.
func NewDakaController(daka *services.DakaService, streaks *services.StreakTracker) *DakaController {
	return &DakaController{daka: daka, streaks: streaks, now: time.Now}
}

type submitRequest struct {
	Wallet    string `json:"wallet" binding:"required"`
	Signature string `json:"signature"`
}

// Submit records today's check-in for a wallet.
func (d *DakaController) Submit(ctx *gin.Context) {
	var req submitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, services.Result{Message: services.MsgInvalidAddress})
		return
	}

	res := d.daka.Submit(ctx.Request.Context(), services.SubmitRequest{
		Wallet:    req.Wallet,
		Signature: req.Signature,
	})
	ctx.JSON(statusFor(res.Outcome), res)
}

// Status returns the wallet's streak and whether it checked in today.
func (d *DakaController) Status(ctx *gin.Context) {
	wallet := ctx.Param("wallet")
	if !ledger.ValidAddress(wallet) {
		utils.Error(ctx, http.StatusBadRequest, 40010, services.MsgInvalidAddress)
		return
	}

	status, err := d.streaks.Status(ctx.Request.Context(), wallet, d.now())
	if err != nil {
		utils.Logger.Error("load wallet status failed", zap.String("wallet", wallet), zap.Error(err))
		utils.Error(ctx, http.StatusServiceUnavailable, 50310, services.MsgDatabaseError)
		return
	}
	utils.Success(ctx, status)
}

func statusFor(o services.Outcome) int {
	switch o {
	case services.OutcomeRecorded:
		return http.StatusOK
	case services.OutcomeInvalidAddress:
		return http.StatusBadRequest
	case services.OutcomeInvalidSignature:
		return http.StatusUnauthorized
	case services.OutcomeRejected:
		return http.StatusForbidden
	case services.OutcomeAlreadyToday:
		return http.StatusConflict
	case services.OutcomeDatabaseError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
