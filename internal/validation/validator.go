// Package validation registers the custom binding validators
package validation

import (
	"log"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Initialize installs the custom validators on gin's binding engine
func Initialize() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	if err := v.RegisterValidation("nospaces", noSpaces); err != nil {
		log.Fatalf("Failed to register validator: %v", err)
	}
}

func noSpaces(fl validator.FieldLevel) bool {
	return !strings.ContainsAny(fl.Field().String(), " \t\r\n")
}
