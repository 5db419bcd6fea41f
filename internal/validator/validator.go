// Package validator wraps go-playground/validator with the domain rules
// request DTOs rely on.
package validator

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/models"
)

type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	if len(ve) == 1 {
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(ve))
}

// Validator validates request DTOs.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	validate := validator.New()

	v := &Validator{validate: validate}
	v.registerDomainRules()
	return v
}

// Validate returns nil on success and ValidationErrors otherwise.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

func (v *Validator) registerDomainRules() {
	_ = v.validate.RegisterValidation("test_module", func(fl validator.FieldLevel) bool {
		switch models.TestModule(fl.Field().String()) {
		case models.ModuleListening, models.ModuleReading, models.ModuleWriting, models.ModuleSpeaking:
			return true
		}
		return false
	})

	_ = v.validate.RegisterValidation("test_variant", func(fl validator.FieldLevel) bool {
		switch models.TestVariant(fl.Field().String()) {
		case models.VariantAcademic, models.VariantGeneral:
			return true
		}
		return false
	})
}

// ToValidationErrors converts go-playground errors into the API shape.
func ToValidationErrors(err error) ValidationErrors {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return ValidationErrors{{Field: "request", Message: err.Error()}}
	}

	out := make(ValidationErrors, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Message: messageForTag(fe),
			Value:   fe.Value(),
			Rule:    fe.Tag(),
		})
	}
	return out
}

func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "test_module":
		return "must be one of listening, reading, writing, speaking"
	case "test_variant":
		return "must be academic or general"
	default:
		return fmt.Sprintf("failed rule %q", fe.Tag())
	}
}
