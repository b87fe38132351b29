package controllers

import (
	"net/http"

	"reservation-service/apperrors"
	"reservation-service/models"
	"reservation-service/services"

	"github.com/gin-gonic/gin"
)

// CustomerController exposes the caller's wallet and subscription.
type CustomerController struct {
	customerService services.CustomerService
}

func NewCustomerController(customerService services.CustomerService) *CustomerController {
	return &CustomerController{customerService: customerService}
}

// GetProfile handles GET /customers/me.
func (cc *CustomerController) GetProfile(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	c, err := cc.customerService.GetProfile(ctx.Request.Context(), userID)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"customer": c})
}

// ChargeWallet handles POST /customers/me/wallet.
func (cc *CustomerController) ChargeWallet(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	var req models.ChargeWalletRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	c, err := cc.customerService.ChargeWallet(ctx.Request.Context(), userID, req.Amount)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"customer": c})
}

// UpgradeSubscription handles POST /customers/me/subscription.
func (cc *CustomerController) UpgradeSubscription(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	var req models.UpgradeSubscriptionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	c, err := cc.customerService.UpgradeSubscription(ctx.Request.Context(), userID, req.Tier)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"customer": c})
}
