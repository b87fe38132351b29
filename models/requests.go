package models

// CreateReservationRequest is the payload for POST /reservations.
type CreateReservationRequest struct {
	BookID uint `json:"book_id" binding:"required,gt=0"`
	Days   int  `json:"days" binding:"required,gt=0"`
}

// ReserveOutcome says whether a reserve call produced a reservation or a queue slot.
type ReserveOutcome string

const (
	OutcomeInstant ReserveOutcome = "instant"
	OutcomeQueued  ReserveOutcome = "queued"
)

// ReserveResult is returned by the reservation service and rendered as-is.
type ReserveResult struct {
	Outcome     ReserveOutcome `json:"outcome"`
	Reservation *Reservation   `json:"reservation,omitempty"`
	Position    int64          `json:"position,omitempty"`
	BookID      uint           `json:"book_id"`
}

// CancelResult reports the refund and what happened to the waitlist afterwards.
type CancelResult struct {
	ReservationID string       `json:"reservation_id"`
	Refund        int64        `json:"refund"`
	Promotion     *QueueResult `json:"promotion,omitempty"`
}

// QueueOutcome is the result of one processQueue run.
type QueueOutcome string

const (
	QueuePromoted QueueOutcome = "promoted"
	QueueWaiting  QueueOutcome = "waiting"
	QueueNoOp     QueueOutcome = "noop"
)

// QueueResult describes a processQueue run.
type QueueResult struct {
	Outcome     QueueOutcome `json:"outcome"`
	BookID      uint         `json:"book_id"`
	Reservation *Reservation `json:"reservation,omitempty"`
	Dropped     []uint       `json:"dropped,omitempty"`
}

// QueuePositionResponse is returned by GET /reservations/queue/:book_id.
type QueuePositionResponse struct {
	BookID   uint  `json:"book_id"`
	Position int64 `json:"position"`
	Length   int64 `json:"length"`
}

// ProcessQueueRequest is the optional body of the admin process-queue call.
type ProcessQueueRequest struct {
	Days int `json:"days" binding:"omitempty,gt=0"`
}

// MaxTopUp is the largest single wallet top-up, in cents. Keep the binding tag below in sync.
const MaxTopUp int64 = 1_000_000_000_000

// ChargeWalletRequest is the payload for POST /customers/me/wallet.
type ChargeWalletRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0,lte=1000000000000"`
}

// UpgradeSubscriptionRequest is the payload for POST /customers/me/subscription.
type UpgradeSubscriptionRequest struct {
	Tier Tier `json:"tier" binding:"required,oneof=plus premium"`
}

// ListReservationsResponse is a page of the caller's reservations.
type ListReservationsResponse struct {
	Reservations []Reservation `json:"reservations"`
	Total        int64         `json:"total"`
	Page         int           `json:"page"`
	Limit        int           `json:"limit"`
}
