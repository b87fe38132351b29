package controllers

import (
	"errors"
	"io"
	"net/http"

	"reservation-service/apperrors"
	"reservation-service/models"
	"reservation-service/services"

	"github.com/gin-gonic/gin"
)

type AdminController struct {
	reservationService services.ReservationService
}

func NewAdminController(reservationService services.ReservationService) *AdminController {
	return &AdminController{reservationService: reservationService}
}

// ProcessQueue handles POST /admin/books/:id/process-queue. The body is optional.
func (ac *AdminController) ProcessQueue(ctx *gin.Context) {
	bookID, ok := uintParam(ctx, "id")
	if !ok {
		return
	}
	var req models.ProcessQueueRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	res, err := ac.reservationService.ProcessQueue(ctx.Request.Context(), bookID, req.Days)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, res)
}
