package streams

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
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

// StreamInput holds the client-assignable fields of a stream.
type StreamInput struct {
	Name        string `json:"name" validate:"required,max=30"`
	Description string `json:"description" validate:"max=140"`
}

// EntryInput holds the client-assignable fields of an entry.
type EntryInput struct {
	EntryPointMS int             `json:"entry_point_in_ms" validate:"gte=0"`
	Title        string          `json:"title" validate:"required,max=30"`
	ContentType  string          `json:"content_type" validate:"required,max=20"`
	Content      json.RawMessage `json:"content"`
}

func (in *StreamInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
}

func (in *EntryInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.ContentType = strings.TrimSpace(in.ContentType)
}

// Validate normalises and checks the input.
func (in *StreamInput) Validate() error {
	in.normalize()
	return validationError(getValidator().Struct(in), nil)
}

// Validate normalises and checks the input. Content must be a JSON object.
func (in *EntryInput) Validate() error {
	in.normalize()

	extra := map[string]string{}
	if !isJSONObject(in.Content) {
		extra["content"] = "must be a JSON object"
	}
	return validationError(getValidator().Struct(in), extra)
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var obj map[string]json.RawMessage
	return json.Unmarshal(trimmed, &obj) == nil
}

func validationError(err error, extra map[string]string) error {
	fields := map[string]string{}
	for k, v := range extra {
		fields[k] = v
	}

	if err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate input: %w", err)
		}
		for _, fe := range fieldErrs {
			fields[fe.Field()] = describe(fe)
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
