package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"quizbank/internal/apperr"

	"github.com/go-playground/validator/v10"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// Validator wraps go-playground validator and turns its field errors into
// one validation failure message.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return &Validator{validate: v}
}

// Struct validates s and returns an apperr validation error naming every
// failing field.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.Validation(err.Error())
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apperr.Validation(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "username":
		return fmt.Sprintf("%s may only contain lowercase letters, digits, dot, dash and underscore", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
