package validation

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Rule registers one custom tag on the underlying validator.
type Rule struct {
	Rule func(v *validator.Validate)
}

// Validator is a wrapper around the go-playground validator that registers
// the estimator's custom tags and flattens field errors into one message.
type Validator struct {
	validator *validator.Validate
}

// NewValidator returns a validator with the default rules registered.
func NewValidator(rules ...Rule) *Validator {
	v := &Validator{validator: validator.New()}
	v.Register(DefaultRules()...)
	v.Register(rules...)
	return v
}

// Register adds rules to the validator.
func (v *Validator) Register(rules ...Rule) {
	for _, r := range rules {
		r.Rule(v.validator)
	}
}

// Struct validates s and returns a single error listing every failed field.
func (v *Validator) Struct(s any) error {
	err := v.validator.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Namespace())
	case "gte", "min":
		return fmt.Sprintf("%s must be >= %s (got %v)", fe.Namespace(), fe.Param(), fe.Value())
	case "lte", "max":
		return fmt.Sprintf("%s must be <= %s (got %v)", fe.Namespace(), fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be > %s (got %v)", fe.Namespace(), fe.Param(), fe.Value())
	case "lt":
		return fmt.Sprintf("%s must be < %s (got %v)", fe.Namespace(), fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got %v)", fe.Namespace(), fe.Param(), fe.Value())
	case "gtefield", "gtfield":
		return fmt.Sprintf("%s must not be below %s", fe.Namespace(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %q validation", fe.Namespace(), fe.Tag())
	}
}

func registerFn(tag string, fn func(fl validator.FieldLevel) bool) func(v *validator.Validate) {
	return func(v *validator.Validate) {
		_ = v.RegisterValidation(tag, fn)
	}
}

// DefaultRules returns the custom tags every estimator validator understands.
func DefaultRules() []Rule {
	return []Rule{
		{Rule: registerFn("finite", finiteValidator)},
	}
}

func finiteValidator(fl validator.FieldLevel) bool {
	val := fl.Field().Float()
	return !math.IsNaN(val) && !math.IsInf(val, 0)
}
