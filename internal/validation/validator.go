// Package validation validates request payloads with go-playground/validator
// and converts failures into apperr validation errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"backend-journitag/internal/apperr"

	"github.com/go-playground/validator/v10"
)

type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return &Validator{v: v}
}

var std = New()

// Struct validates s with the package-level validator.
func Struct(s any) error { return std.Validate(s) }

func (v *Validator) Validate(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.Validation(err.Error())
	}

	details := make(map[string]string, len(fieldErrs))
	var first string
	for _, fe := range fieldErrs {
		msg := friendlyMessage(fe)
		details[fe.Field()] = msg
		if first == "" {
			first = fe.Field() + " " + msg
		}
	}
	return apperr.ValidationWithDetails(first, details)
}

func friendlyMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "latitude":
		return "must be a valid latitude"
	case "longitude":
		return "must be a valid longitude"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
