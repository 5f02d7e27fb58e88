package authclient

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// draftMessages holds the user-facing text per field and failed rule. The
// wording matches what the backend returns for the same violations.
var draftMessages = map[string]map[string]string{
	"username": {
		"required": "Username is required",
		"min":      "Username must be between 3 and 50 characters",
		"max":      "Username must be between 3 and 50 characters",
	},
	"email": {
		"required": "Email is required",
		"email":    "Email must be valid",
		"max":      "Email must not exceed 100 characters",
	},
	"password": {
		"required": "Password is required",
		"min":      "Password must be between 8 and 255 characters",
		"max":      "Password must be between 8 and 255 characters",
	},
	"firstName": {
		"required": "First name is required",
		"max":      "First name must not exceed 50 characters",
	},
	"lastName": {
		"required": "Last name is required",
		"max":      "Last name must not exceed 50 characters",
	},
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateDraft checks d locally. It returns nil or an *APIError of kind
// KindValidationFailed with one message per offending field.
func validateDraft(v *validator.Validate, d ProfileDraft, summary string) error {
	d.Username = strings.TrimSpace(d.Username)
	d.Email = strings.TrimSpace(d.Email)
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)

	err := v.Struct(d)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &APIError{Kind: KindValidationFailed, Message: summary, Err: err}
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if _, seen := fields[field]; seen {
			continue
		}
		msg := draftMessages[field][fe.Tag()]
		if msg == "" {
			msg = fe.Error()
		}
		fields[field] = msg
	}
	return &APIError{Kind: KindValidationFailed, Message: summary, FieldErrors: fields}
}
