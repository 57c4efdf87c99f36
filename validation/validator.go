// Package validation wraps go-playground/validator and turns its failures into
// INVALID_INPUT domain errors keyed by JSON field path.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kevinaaaquil/scripture-catalog/apperrors"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// reservedSlugs are path segments the books router claims before {slug}.
var reservedSlugs = map[string]bool{
	"id":         true,
	"search":     true,
	"statistics": true,
}

// Validator wraps validator.Validate with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator with the catalog's custom rules registered.
func New() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "" {
			return fld.Name
		}
		if i := strings.IndexByte(name, ','); i >= 0 {
			name = name[:i]
		}
		if name == "-" {
			return fld.Name
		}
		return name
	})

	// "slug" must be lowercase letters, digits and hyphens, and not reserved.
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return slugPattern.MatchString(s) && !reservedSlugs[s]
	})

	return &Validator{v: v}
}

// Validate validates a struct and returns an *apperrors.Error on failure.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return apperrors.InvalidInput("invalid input: %v", err)
	}

	fields := make(map[string]string, len(validationErrs))
	for _, e := range validationErrs {
		fields[fieldPath(e)] = friendlyMessage(e)
	}
	return apperrors.Validation("validation failed", fields)
}

// fieldPath drops the root struct name from the namespace, so nested errors
// read "chapters[0].verses[2].translation".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "slug":
		if s, ok := e.Value().(string); ok && reservedSlugs[s] {
			return "is reserved"
		}
		return "must contain only lowercase letters, digits and hyphens"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + e.Param()
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", e.Param())
		}
		return "must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must not exceed %s characters", e.Param())
		}
		return "must be at most " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	default:
		return "is invalid"
	}
}
