// Package validation plugs go-playground/validator into echo and renders
// field errors as the short sentences returned to API clients.
package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

var (
	hasLower = regexp.MustCompile(`[a-z]`)
	hasUpper = regexp.MustCompile(`[A-Z]`)
	hasDigit = regexp.MustCompile(`[0-9]`)
)

// Validator implements echo.Validator.
type Validator struct {
	v *validator.Validate
}

// New builds a validator that reports json field names and knows the
// "password" rule: 8 to 72 bytes with a lower case letter, an upper case
// letter and a digit.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return len(s) >= 8 && len(s) <= maxPasswordBytes && hasLower.MatchString(s) && hasUpper.MatchString(s) && hasDigit.MatchString(s)
	})
	return &Validator{v: v}
}

// Validate runs struct validation on i.
func (cv *Validator) Validate(i interface{}) error {
	return cv.v.Struct(i)
}

// Var validates a single value against tag.
func (cv *Validator) Var(field interface{}, tag string) error {
	return cv.v.Var(field, tag)
}

// Messages turns validator errors into one sentence per failed field.
func Messages(errs validator.ValidationErrors) []string {
	out := make([]string, 0, len(errs))
	for _, fe := range errs {
		out = append(out, message(fe))
	}
	return out
}

func message(fe validator.FieldError) string {
	f := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", f)
	case "email":
		return "Invalid Email"
	case "password":
		return "Password must be 8 to 72 characters and include uppercase, lowercase, and a number"
	case "eqfield":
		return "Passwords do not match"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", f, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must have at least %s characters", f, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", f, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must have at most %s characters", f, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", f, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", f, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", f, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", f, fe.Param())
	case "ltfield":
		return fmt.Sprintf("Discount price (%v) should be below regular price", fe.Value())
	}
	return fmt.Sprintf("%s failed on the %s rule", f, fe.Tag())
}
