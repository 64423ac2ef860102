// Package validation wraps go-playground/validator with the custom tags used by
// payment orders and experience drafts.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ryfty/ryfty-payments/internal/domain"
)

var kenyanMobile = regexp.MustCompile(`^(07|01)[0-9]{8}$`)

var messages = map[string]string{
	"required":      "is required",
	"ke_msisdn":     "must be a valid Kenyan mobile number (07XXXXXXXX or 01XXXXXXXX)",
	"oneof":         "must be one of: %s",
	"min":           "must have at least %s item(s)",
	"max":           "must be at most %s characters",
	"alphanum":      "must contain only letters and numbers",
	"latitude":      "must be a valid latitude",
	"longitude":     "must be a valid longitude",
	"datetime":      "must be a date in the format %s",
	"gtefield":      "must not be before %s",
	"required_with": "is required when %s is set",
	"dive":          "is invalid",
}

// Validator validates structs and turns the first failure into a domain validation error.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator with the custom tags registered.
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for empty tags.
	_ = v.RegisterValidation("ke_msisdn", func(fl validator.FieldLevel) bool {
		return IsKenyanMobile(fl.Field().String())
	})
	return &Validator{v: v}
}

// Struct validates s. The returned error wraps domain.ErrValidation.
func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.NewValidationError(err.Error())
	}
	return domain.NewValidationError(describe(fieldErrs[0]))
}

func describe(fe validator.FieldError) string {
	msg, ok := messages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
	if strings.Contains(msg, "%s") {
		msg = fmt.Sprintf(msg, fe.Param())
	}
	return fe.Field() + " " + msg
}

// NormalizeMSISDN strips the spaces and dashes users type into phone numbers.
func NormalizeMSISDN(number string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(number))
}

// IsKenyanMobile reports whether number is a Safaricom/Airtel style 07/01 number.
func IsKenyanMobile(number string) bool {
	return kenyanMobile.MatchString(NormalizeMSISDN(number))
}
