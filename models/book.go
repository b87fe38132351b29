package models

import (
	"time"

	"reservation-service/apperrors"
)

// Book is a title with a fixed number of physical units.
// The table-level CHECK keeps reserved_units within [0, total_units].
type Book struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title         string    `gorm:"type:varchar(255);not null" json:"title" validate:"required,max=255"`
	TotalUnits    int       `gorm:"not null;default:0;check:chk_books_total_units,total_units >= 0" json:"total_units" validate:"gte=0"`
	ReservedUnits int       `gorm:"not null;default:0;check:chk_books_reserved_units,reserved_units >= 0 AND reserved_units <= total_units" json:"reserved_units" validate:"gte=0,ltefield=TotalUnits"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewBook validates and builds a Book.
func NewBook(title string, totalUnits, reservedUnits int) (*Book, error) {
	b := &Book{Title: title, TotalUnits: totalUnits, ReservedUnits: reservedUnits}
	if err := check("book", b); err != nil {
		return nil, err
	}
	return b, nil
}

// Available returns the number of units that can still be reserved.
func (b *Book) Available() int {
	if b.ReservedUnits >= b.TotalUnits {
		return 0
	}
	return b.TotalUnits - b.ReservedUnits
}

// Reserve takes one unit.
func (b *Book) Reserve() error {
	if b.Available() <= 0 {
		return apperrors.Exhausted(b.ID)
	}
	b.ReservedUnits++
	return nil
}

// Release returns one unit, never going below zero.
func (b *Book) Release() {
	if b.ReservedUnits > 0 {
		b.ReservedUnits--
	}
}
