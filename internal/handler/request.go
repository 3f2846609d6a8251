package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/expense-tracker/internal/apperror"
)

// validate is shared across handlers; validator.Validate is safe for
// concurrent use. Field names in error messages come from json tags so the
// client sees the keys it actually sent.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeAndValidate decodes the JSON body into dst and runs its validate
// tags. Failures come back as apperror validation errors, so writeError
// turns them into 400s with the usual shape.
func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("", "Invalid JSON body")
	}
	return checkStruct(dst)
}

func checkStruct(dst any) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validating request: %w", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	if len(fields) == 1 {
		for field, msg := range fields {
			return apperror.ValidationFailed(field, msg)
		}
	}
	return apperror.ValidationFields("Invalid request", fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s cannot exceed %s characters", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}

// dateLayouts are accepted for ledger dates, tried in order.
var dateLayouts = []string{"2006-01-02", time.RFC3339}

// parseDate parses an optional date string. Empty input returns the zero
// time; the services default that to now.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperror.ValidationFailed("date", "date must be YYYY-MM-DD or RFC 3339")
}

// queryRiderID pulls rider_id from the query string for GET endpoints.
func queryRiderID(r *http.Request) string {
	return r.URL.Query().Get("rider_id")
}
