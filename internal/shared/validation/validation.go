// Package validation checks request DTOs with validator/v10 struct tags.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"workforce-backend/internal/shared/apperr"
)

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		instance.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
	return instance
}

// Struct validates v. On failure it returns a validation *apperr.Error whose
// message names the offending fields; message overrides it when non-empty.
// The field names are attached as "fields".
func Struct(v any, message string) error {
	err := get().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.KindValidation, "invalid request", err)
	}

	fields := make([]string, 0, len(verrs))
	var missing, invalid []string
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		} else {
			invalid = append(invalid, fe.Field())
		}
	}
	if message == "" {
		message = describe(missing, invalid)
	}
	return apperr.Validation(message).With("fields", fields)
}

func describe(missing, invalid []string) string {
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, strings.Join(missing, ", ")+" required")
	}
	if len(invalid) > 0 {
		parts = append(parts, strings.Join(invalid, ", ")+" invalid")
	}
	return strings.Join(parts, "; ")
}
