// Package validation validates decoded request bodies with go-playground/validator
// and reports failures as a field map keyed by JSON names.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/isdelr/recipe-api-be/internal/services"
	"github.com/shopspring/decimal"
)

// Money bounds for recipe prices: at most five digits, two after the point.
const (
	moneyPlaces = 2
	moneyDigits = 5
)

// Validator wraps go-playground/validator with our custom rules.
type Validator struct {
	v *validator.Validate
}

// New creates a validator configured for request structs.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" {
			return fld.Name
		}
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("money", validMoney)
	_ = v.RegisterValidation("link", validLink)

	return &Validator{v: v}
}

// Validate validates s and returns a *services.ValidationError describing
// every failed field.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fields := make(map[string]string, len(validationErrs))
	for _, e := range validationErrs {
		fields[fieldPath(e.Namespace())] = friendlyMessage(e)
	}
	return &services.ValidationError{Fields: fields}
}

// fieldPath drops the root struct name: "recipeRequest.tags[0].name" becomes
// "tags[0].name".
func fieldPath(namespace string) string {
	_, rest, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}
	return rest
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", e.Param())
		}
		return "must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must not exceed %s characters", e.Param())
		}
		return "must not exceed " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "url", "link":
		return "must be a valid URL"
	case "money":
		return fmt.Sprintf("must be a non-negative amount with at most %d digits and %d decimal places", moneyDigits, moneyPlaces)
	default:
		return "is invalid"
	}
}

// validMoney accepts a non-negative decimal that fits NUMERIC(5,2).
func validMoney(fl validator.FieldLevel) bool {
	var d decimal.Decimal
	field := fl.Field()
	switch field.Kind() {
	case reflect.String:
		parsed, err := decimal.NewFromString(field.String())
		if err != nil {
			return false
		}
		d = parsed
	default:
		dec, ok := field.Interface().(decimal.Decimal)
		if !ok {
			return false
		}
		d = dec
	}
	return MoneyFits(d)
}

// MoneyFits reports whether d is non-negative with at most two decimal
// places and three integer digits.
func MoneyFits(d decimal.Decimal) bool {
	if d.IsNegative() {
		return false
	}
	if !d.Round(moneyPlaces).Equal(d) {
		return false
	}
	limit := decimal.New(1, moneyDigits-moneyPlaces)
	return d.LessThan(limit)
}

// validLink accepts an empty string or an absolute http(s) URL.
func validLink(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return false
	}
	return validate.Var(s, "url") == nil
}

var validate = validator.New()
