package repository

import (
	"context"

	"reservation-service/apperrors"
	"reservation-service/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBookRepository implements BookRepository using GORM.
type GormBookRepository struct {
	db *gorm.DB
}

// NewGormBookRepository creates a new GormBookRepository.
func NewGormBookRepository(db *gorm.DB) BookRepository {
	return &GormBookRepository{db: db}
}

func (r *GormBookRepository) Create(ctx context.Context, book *models.Book) error {
	return translate(r.db.WithContext(ctx).Create(book).Error, "book")
}

func (r *GormBookRepository) FindByID(ctx context.Context, id uint) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).First(&book, id).Error; err != nil {
		return nil, translate(err, "book")
	}
	return &book, nil
}

// ReserveUnit takes the row lock, checks availability and increments reserved_units.
// The guarded UPDATE keeps the CHECK invariant even when called outside a transaction.
func (r *GormBookRepository) ReserveUnit(ctx context.Context, id uint) (*models.Book, error) {
	db := r.db.WithContext(ctx)

	var book models.Book
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&book, id).Error; err != nil {
		return nil, translate(err, "book")
	}
	if book.Available() <= 0 {
		return nil, apperrors.Exhausted(id)
	}

	res := db.Model(&models.Book{}).
		Where("id = ? AND reserved_units < total_units", id).
		UpdateColumn("reserved_units", gorm.Expr("reserved_units + 1"))
	if res.Error != nil {
		return nil, translate(res.Error, "book")
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.Exhausted(id)
	}
	book.ReservedUnits++
	return &book, nil
}

func (r *GormBookRepository) ReleaseUnit(ctx context.Context, id uint) error {
	db := r.db.WithContext(ctx)

	var book models.Book
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&book, id).Error; err != nil {
		return translate(err, "book")
	}
	if book.ReservedUnits == 0 {
		return nil
	}
	res := db.Model(&models.Book{}).
		Where("id = ? AND reserved_units > 0", id).
		UpdateColumn("reserved_units", gorm.Expr("reserved_units - 1"))
	return translate(res.Error, "book")
}
