package httpapi

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, err := parseDate(fl.Field().String())
		return err == nil
	})
	return v
}

var messages = map[string]string{
	"required":    "The field '%s' is required.",
	"max":         "The field '%s' must be no longer than %s characters.",
	"excludesall": "The field '%s' must not contain any of %q.",
	"date":        "The field '%s' must be a date (YYYY-MM-DD or RFC 3339).",
}

// validateStruct returns a map of JSON field names to messages, or nil when s is valid.
func validateStruct(s any) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, e := range verrs {
		msg, ok := messages[e.Tag()]
		switch {
		case !ok:
			out[e.Field()] = fmt.Sprintf("Field '%s' is invalid: %s", e.Field(), e.Tag())
		case strings.Count(msg, "%") == 2:
			out[e.Field()] = fmt.Sprintf(msg, e.Field(), e.Param())
		default:
			out[e.Field()] = fmt.Sprintf(msg, e.Field())
		}
	}
	return out
}

// parseDate accepts a bare date or an RFC 3339 timestamp. Empty means unset.
func parseDate(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", v, time.UTC); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", v)
	}
	t = t.UTC()
	return &t, nil
}
