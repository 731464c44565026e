// Package emailaddr normalizes the email addresses that key every trial and
// purchase record. It also owns the validator instance shared by request
// structs.
package emailaddr

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ManuelReschke/BookfoldAR/internal/pkg/apperrors"
)

const maxLength = 254

var validate = validator.New()

// Normalize trims and lowercases the address and rejects anything that is not
// a syntactically valid email.
func Normalize(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperrors.Validation("email_required", "email is required")
	}
	if len(email) > maxLength {
		return "", apperrors.Validation("invalid_email", "valid email required")
	}
	if err := validate.Var(email, "email"); err != nil {
		return "", apperrors.Validation("invalid_email", "valid email required")
	}
	return email, nil
}

// ValidateStruct runs the `validate` tags of s. Errors are the raw
// validator.ValidationErrors so callers can pick their own error codes.
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}
