package models

import (
	"time"

	"github.com/google/uuid"
)

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	// StatusPending is declared for compatibility and never produced by this service.
	StatusPending   ReservationStatus = "pending"
	StatusActive    ReservationStatus = "active"
	StatusCompleted ReservationStatus = "completed"
)

// Reservation is one customer's hold on one unit of a book.
type Reservation struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID     uint              `gorm:"not null;index" json:"customer_id" validate:"required"`
	BookID         uint              `gorm:"not null;index" json:"book_id" validate:"required"`
	StartTime      time.Time         `gorm:"not null" json:"start_time" validate:"required"`
	EndTime        time.Time         `gorm:"not null;index" json:"end_time" validate:"required,gtfield=StartTime"`
	Price          int64             `gorm:"not null;default:0;check:chk_reservations_price,price >= 0" json:"price" validate:"gte=0"`
	Status         ReservationStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status" validate:"required,oneof=pending active completed"`
	ReminderSentAt *time.Time        `json:"reminder_sent_at,omitempty"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewReservation validates and builds an active reservation spanning days from start.
func NewReservation(customerID, bookID uint, start time.Time, days int, price int64) (*Reservation, error) {
	r := &Reservation{
		ID:         uuid.New(),
		CustomerID: customerID,
		BookID:     bookID,
		StartTime:  start,
		EndTime:    start.Add(time.Duration(days) * 24 * time.Hour),
		Price:      price,
		Status:     StatusActive,
	}
	if err := check("reservation", r); err != nil {
		return nil, err
	}
	return r, nil
}

// WholeDays returns the reserved span in complete days.
func (r *Reservation) WholeDays() int64 {
	return int64(r.EndTime.Sub(r.StartTime) / (24 * time.Hour))
}
