// Package validate runs struct-tag validation on request payloads and converts the
// result into API field errors.
package validate

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"cellar-api/pkg/apierror"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		instance.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return instance
}

// Struct validates s. It returns nil or an *apierror.Error carrying one detail per
// failing field.
func Struct(s any) error {
	err := get().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return apierror.BadRequest(err.Error())
	}

	details := make([]apierror.FieldError, 0, len(validationErrors))
	for _, ve := range validationErrors {
		details = append(details, apierror.FieldError{
			Field:   ve.Field(),
			Message: message(ve),
		})
	}
	return apierror.ValidationError("request validation failed", details...)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " long"
	case "min":
		return "must be at least " + fe.Param() + " long"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "uuid":
		return "must be a valid UUID"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
