package controllers

import (
	"net/http"
	"strconv"

	"reservation-service/apperrors"
	"reservation-service/middleware"
	"reservation-service/models"
	"reservation-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReservationController handles HTTP requests for reservations and the waitlist.
type ReservationController struct {
	reservationService services.ReservationService
}

// NewReservationController creates a new ReservationController.
func NewReservationController(reservationService services.ReservationService) *ReservationController {
	return &ReservationController{reservationService: reservationService}
}

// Reserve handles POST /reservations. 201 with the reservation, or 202 with the queue position.
func (rc *ReservationController) Reserve(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	var req models.CreateReservationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	res, err := rc.reservationService.Reserve(ctx.Request.Context(), userID, req.BookID, req.Days)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	status := http.StatusCreated
	if res.Outcome == models.OutcomeQueued {
		status = http.StatusAccepted
	}
	ctx.JSON(status, res)
}

// ListReservations handles GET /reservations?page=&limit=.
func (rc *ReservationController) ListReservations(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))

	resp, err := rc.reservationService.ListReservations(ctx.Request.Context(), userID, page, limit)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// Cancel handles DELETE /reservations/:id.
func (rc *ReservationController) Cancel(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		apperrors.Respond(ctx, apperrors.InvalidInput("Invalid reservation ID", err))
		return
	}

	res, err := rc.reservationService.Cancel(ctx.Request.Context(), userID, id)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, res)
}

// QueuePosition handles GET /reservations/queue/:book_id.
func (rc *ReservationController) QueuePosition(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	bookID, ok := uintParam(ctx, "book_id")
	if !ok {
		return
	}

	resp, err := rc.reservationService.QueuePosition(ctx.Request.Context(), userID, bookID)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// LeaveQueue handles DELETE /reservations/queue/:book_id.
func (rc *ReservationController) LeaveQueue(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	bookID, ok := uintParam(ctx, "book_id")
	if !ok {
		return
	}

	if err := rc.reservationService.LeaveQueue(ctx.Request.Context(), userID, bookID); err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Left the waitlist", "book_id": bookID})
}

func requireUser(ctx *gin.Context) (string, bool) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return "", false
	}
	return userID, true
}

func uintParam(ctx *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || v == 0 {
		apperrors.Respond(ctx, apperrors.InvalidInput("Invalid "+name, err))
		return 0, false
	}
	return uint(v), true
}
