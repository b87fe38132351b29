package models

import "time"

// Event types published on the reservation topic.
const (
	EventReservationCreated    = "reservation_created"
	EventReservationCancelled  = "reservation_cancelled"
	EventReservationPromoted   = "reservation_promoted"
	EventReservationEndingSoon = "reservation_ending_soon"
)

// ReservationEvent is the payload of every reservation event.
type ReservationEvent struct {
	EventType        string     `json:"event_type"`
	BookID           uint       `json:"book_id"`
	CustomerID       uint       `json:"customer_id"`
	ReservationID    string     `json:"reservation_id,omitempty"`
	Price            int64      `json:"price,omitempty"`
	Refund           int64      `json:"refund,omitempty"`
	EndOfReservation *time.Time `json:"end_of_reservation,omitempty"`
	Timestamp        time.Time  `json:"timestamp"`
}
