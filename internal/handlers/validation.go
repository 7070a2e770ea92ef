package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/streamr/backend/internal/streams"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})
	})
	return validate
}

// validateRequest checks v against its struct tags and reports failures as a
// field-keyed validation error.
func validateRequest(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate request: %w", err)
	}

	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			fields[fe.Field()] = "is required"
		case "email":
			fields[fe.Field()] = "must be a valid email address"
		case "min":
			fields[fe.Field()] = fmt.Sprintf("must be at least %s characters", fe.Param())
		case "max":
			fields[fe.Field()] = fmt.Sprintf("must be at most %s characters", fe.Param())
		default:
			fields[fe.Field()] = fmt.Sprintf("failed %s validation", fe.Tag())
		}
	}
	return &streams.ValidationError{Fields: fields}
}
