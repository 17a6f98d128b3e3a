package application

import (
	"net/mail"
	"strings"
	"time"
)

// DateLayout is the format of attendance and leave dates, which double as document ids.
const DateLayout = "2006-01-02"

func validateDate(v *ValidationError, field, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		v.add(field, "required")
		return value
	}
	if _, err := time.Parse(DateLayout, value); err != nil {
		v.add(field, "must be a date in YYYY-MM-DD format")
	}
	return value
}

func validateID(v *ValidationError, field, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		v.add(field, "required")
		return value
	}
	if strings.Contains(value, "/") {
		v.add(field, "must not contain '/'")
	}
	return value
}

func validateRequired(v *ValidationError, field, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		v.add(field, "required")
	}
	return value
}

func validateEmail(v *ValidationError, field, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		v.add(field, "required")
		return value
	}
	if _, err := mail.ParseAddress(value); err != nil {
		v.add(field, "must be a valid email address")
	}
	return value
}
