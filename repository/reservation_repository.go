package repository

import (
	"context"
	"time"

	"reservation-service/apperrors"
	"reservation-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormReservationRepository implements ReservationRepository using GORM.
type GormReservationRepository struct {
	db *gorm.DB
}

// NewGormReservationRepository creates a new GormReservationRepository.
func NewGormReservationRepository(db *gorm.DB) ReservationRepository {
	return &GormReservationRepository{db: db}
}

func (r *GormReservationRepository) Create(ctx context.Context, reservation *models.Reservation) error {
	return translate(r.db.WithContext(ctx).Create(reservation).Error, "reservation")
}

func (r *GormReservationRepository) FindByIDForCustomer(ctx context.Context, id uuid.UUID, customerID uint) (*models.Reservation, error) {
	var res models.Reservation
	err := r.db.WithContext(ctx).
		Where("id = ? AND customer_id = ?", id, customerID).
		First(&res).Error
	if err != nil {
		return nil, translate(err, "reservation")
	}
	return &res, nil
}

func (r *GormReservationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Reservation{})
	if res.Error != nil {
		return translate(res.Error, "reservation")
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("reservation")
	}
	return nil
}

// ListByCustomer returns one page of the customer's reservations, newest first.
func (r *GormReservationRepository) ListByCustomer(ctx context.Context, customerID uint, page, limit int) ([]models.Reservation, int64, error) {
	var reservations []models.Reservation
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Reservation{}).Where("customer_id = ?", customerID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "reservation")
	}

	offset := (page - 1) * limit
	if err := query.
		Offset(offset).
		Limit(limit).
		Order("start_time DESC").
		Find(&reservations).Error; err != nil {
		return nil, 0, translate(err, "reservation")
	}

	return reservations, total, nil
}

func (r *GormReservationRepository) CountActive(ctx context.Context, customerID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("customer_id = ? AND status = ?", customerID, models.StatusActive).
		Count(&n).Error
	return n, translate(err, "reservation")
}

func (r *GormReservationRepository) SumPaidCompletedSince(ctx context.Context, customerID uint, since time.Time) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Select("COALESCE(SUM(price), 0)").
		Where("customer_id = ? AND status = ? AND start_time >= ?", customerID, models.StatusCompleted, since).
		Scan(&sum).Error
	return sum, translate(err, "reservation")
}

func (r *GormReservationRepository) CountCompletedSince(ctx context.Context, customerID uint, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("customer_id = ? AND status = ? AND start_time >= ?", customerID, models.StatusCompleted, since).
		Count(&n).Error
	return n, translate(err, "reservation")
}

// FindEndingBetween returns active reservations ending in [from, to] that have not been reminded yet.
func (r *GormReservationRepository) FindEndingBetween(ctx context.Context, from, to time.Time, limit int) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND reminder_sent_at IS NULL AND end_time BETWEEN ? AND ?", models.StatusActive, from, to).
		Order("end_time ASC").
		Limit(limit).
		Find(&reservations).Error
	if err != nil {
		return nil, translate(err, "reservation")
	}
	return reservations, nil
}

func (r *GormReservationRepository) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ?", id).
		Update("reminder_sent_at", at)
	if res.Error != nil {
		return translate(res.Error, "reservation")
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("reservation")
	}
	return nil
}
