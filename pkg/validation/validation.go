// Package validation wraps go-playground/validator with the two credential
// specific tags (notblank, calendardate) and renders the first failure as a
// short field-level message.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	dErrors "certledger/pkg/domain-errors"
	s "certledger/pkg/string"
)

// DateLayout is the calendar form every date is normalized to.
const DateLayout = "2006-01-02"

var v = build()

func build() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterTagNameFunc(jsonName)
	_ = val.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = val.RegisterValidation("calendardate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(DateLayout, fl.Field().String())
		return err == nil
	})
	return val
}

// jsonName reports fields by their wire name. Untagged fields fall back to
// the snake_case of the Go name.
func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return s.ToSnakeCase(f.Name)
	}
	return name
}

var messages = map[string]string{
	"required":     "%s is required",
	"notblank":     "%s must not be blank",
	"calendardate": "%s must be a date in YYYY-MM-DD form",
	"email|e164":   "%s must be an email address or an E.164 phone number",
}

var withParam = map[string]string{
	"min":   "%s must be at least %s",
	"max":   "%s must be at most %s",
	"oneof": "%s must be one of [%s]",
}

// Validate checks req against its validate tags. Failures come back as
// CodeInvalidInput carrying the message for the first offending field.
func Validate(req any) error {
	if err := v.Struct(req); err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, ErrorMessage(err))
	}
	return nil
}

// ErrorMessage renders a validator error for clients.
func ErrorMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "invalid request body"
	}
	fe := fieldErrs[0]
	field := fe.Field()
	if field == "" {
		return "invalid request body"
	}

	tag := fe.ActualTag()
	if format, ok := messages[tag]; ok {
		return fmt.Sprintf(format, field)
	}
	if format, ok := withParam[tag]; ok {
		return fmt.Sprintf(format, field, fe.Param())
	}
	return field + " is invalid"
}
