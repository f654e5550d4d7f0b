package shared

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
}

var validationMessages = map[string]string{
	"required": "field '%s' is required",
	"email":    "field '%s' must be a valid email address",
	"min":      "field '%s' must be at least %s characters long",
	"max":      "field '%s' must be no longer than %s characters",
	"gt":       "field '%s' must be greater than %s",
	"gte":      "field '%s' must be greater than or equal to %s",
	"lte":      "field '%s' must be less than or equal to %s",
	"url":      "field '%s' must be a valid URL",
}

func validationMessage(e validator.FieldError) string {
	msg, ok := validationMessages[e.Tag()]
	if !ok {
		return fmt.Sprintf("field '%s' is invalid: %s", e.Field(), e.Tag())
	}
	if strings.Count(msg, "%s") == 2 {
		return fmt.Sprintf(msg, e.Field(), e.Param())
	}
	return fmt.Sprintf(msg, e.Field())
}

// ValidateStruct validates s against its `validate` tags.
//
// Returns nil or a [*ValidationError] keyed by the json (or form) field name.
func ValidateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	fields := make(map[string]string, len(verrs))
	for _, e := range verrs {
		fields[e.Field()] = validationMessage(e)
	}
	return &ValidationError{Fields: fields}
}
