package handlers

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"reward-guard-backend/internal/models"
)

// RegisterValidators installs the custom binding validators. Called once at
// startup before the router is built.
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("ethaddr", func(fl validator.FieldLevel) bool {
			return models.ValidAddress(fl.Field().String())
		})
	}
}
