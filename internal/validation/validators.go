package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/cyans/todo-app-sub000/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Report JSON names in validation errors
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := Validate.RegisterValidation("todo_status", validateTodoStatus); err != nil {
		panic(fmt.Sprintf("failed to register todo_status validator: %v", err))
	}
	if err := Validate.RegisterValidation("todo_priority", validateTodoPriority); err != nil {
		panic(fmt.Sprintf("failed to register todo_priority validator: %v", err))
	}
}

// validateTodoStatus accepts the five workflow states. Use with omitempty for optional fields.
func validateTodoStatus(fl validator.FieldLevel) bool {
	return models.Status(fl.Field().String()).IsValid()
}

func validateTodoPriority(fl validator.FieldLevel) bool {
	return models.Priority(fl.Field().String()).IsValid()
}

// SanitizeText trims whitespace and removes control characters other than newline and tab
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// FieldError converts the first validator failure into an invalid_input error
// naming the offending JSON field
func FieldError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return models.NewInvalidInputError("body", err.Error())
	}

	fe := validationErrors[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return models.NewInvalidInputError(field, "is required")
	case "max":
		return models.NewInvalidInputError(field, fmt.Sprintf("must be at most %s characters", fe.Param()))
	case "todo_status":
		return models.NewInvalidStatusError(fmt.Sprint(fe.Value()))
	case "todo_priority":
		return models.NewInvalidInputError(field, "must be one of low, medium, high")
	default:
		return models.NewInvalidInputError(field, fmt.Sprintf("failed %s validation", fe.Tag()))
	}
}
