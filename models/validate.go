package models

import (
	"reservation-service/apperrors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func check(entity string, v any) error {
	if err := validate.Struct(v); err != nil {
		return apperrors.InvalidInput("invalid "+entity, err)
	}
	return nil
}
