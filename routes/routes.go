package routes

import (
	"reservation-service/controllers"
	"reservation-service/middleware"

	"github.com/gin-gonic/gin"
)

// Controllers groups the handlers mounted by RegisterRoutes.
type Controllers struct {
	Reservations *controllers.ReservationController
	Customers    *controllers.CustomerController
	Admin        *controllers.AdminController
}

// RegisterRoutes sets up every authenticated route. Reserve and cancel share one per-IP limiter.
func RegisterRoutes(r *gin.Engine, h Controllers, auth gin.HandlerFunc, limiter *middleware.RateLimiter) {
	limited := limiter.Middleware()

	reservations := r.Group("/reservations")
	reservations.Use(auth)
	reservations.POST("", limited, h.Reservations.Reserve)
	reservations.GET("", h.Reservations.ListReservations)
	reservations.DELETE("/:id", limited, h.Reservations.Cancel)
	reservations.GET("/queue/:book_id", h.Reservations.QueuePosition)
	reservations.DELETE("/queue/:book_id", h.Reservations.LeaveQueue)

	customers := r.Group("/customers/me")
	customers.Use(auth)
	customers.GET("", h.Customers.GetProfile)
	customers.POST("/wallet", h.Customers.ChargeWallet)
	customers.POST("/subscription", h.Customers.UpgradeSubscription)

	// Admin-only routes
	admin := r.Group("/admin")
	admin.Use(auth, middleware.AdminOnly())
	admin.POST("/books/:id/process-queue", h.Admin.ProcessQueue)
}
