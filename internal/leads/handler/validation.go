package handler

import (
	"leadtracker_backend/internal/leads/domain"
	"leadtracker_backend/platform/validator"

	playground "github.com/go-playground/validator/v10"
)

// RegisterValidations installs the `stage` tag, which accepts only names
// known to the pipeline.
func RegisterValidations(val *validator.Validator, pipeline *domain.Pipeline) error {
	return val.RegisterValidation("stage", func(fl playground.FieldLevel) bool {
		return pipeline.Contains(fl.Field().String())
	})
}
