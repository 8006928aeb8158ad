package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/daka/middleware"
	"github.com/cppla/daka/services"
	"github.com/cppla/daka/utils"
)

// AdminController lets operators read and change the eligibility policy.
type AdminController struct {
	policies *services.PolicyStore
}

func NewAdminController(policies *services.PolicyStore) *AdminController {
	return &AdminController{policies: policies}
}

// GetPolicy returns the raw policy_config rows and the effective policy.
func (a *AdminController) GetPolicy(ctx *gin.Context) {
	values, err := a.policies.Values(ctx.Request.Context())
	if err != nil {
		utils.Logger.Error("load policy failed", zap.Error(err))
		utils.Error(ctx, http.StatusServiceUnavailable, 50320, services.MsgDatabaseError)
		return
	}
	effective, invalid := services.ParsePolicy(values)
	utils.Success(ctx, gin.H{
		"values":    values,
		"effective": effective,
		"invalid":   invalid,
	})
}

// UpdatePolicy upserts the given keys. Changes apply to the next check-in.
func (a *AdminController) UpdatePolicy(ctx *gin.Context) {
	var values map[string]string
	if err := ctx.ShouldBindJSON(&values); err != nil || len(values) == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40020, "body must be a non-empty object of string values")
		return
	}
	for key, raw := range values {
		if err := services.ValidatePolicyValue(key, raw); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40021, err.Error())
			return
		}
	}

	if err := a.policies.Set(ctx.Request.Context(), values); err != nil {
		utils.Logger.Error("update policy failed", zap.Error(err))
		utils.Error(ctx, http.StatusServiceUnavailable, 50321, services.MsgDatabaseError)
		return
	}
	utils.Logger.Info("policy updated",
		zap.String("by", ctx.GetString(middleware.ContextSubjectKey)),
		zap.Any("values", values))
	a.GetPolicy(ctx)
}
