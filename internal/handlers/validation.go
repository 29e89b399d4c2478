package handlers

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"

	pkghttp "github.com/elbekdev/atelier/pkg/http"
)

// ValidationErrorResponse represents a validation error with field-level details
type ValidationErrorResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var uzPhonePattern = regexp.MustCompile(`^\+998\d{9}$`)

// Global validator instance (reused across all handlers)
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// uzphone: +998 followed by exactly nine digits, the only phone
	// format the storefront accepts.
	_ = v.RegisterValidation("uzphone", func(fl validator.FieldLevel) bool {
		return uzPhonePattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidateRequest validates a request struct using go-playground/validator.
// Every field is checked independently; the result carries one entry per
// failed field so the client can show all problems at once. Nil means the
// request is valid.
func ValidateRequest(req interface{}) []ValidationErrorResponse {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	if ve, ok := err.(validator.ValidationErrors); ok {
		fieldErrors := make([]ValidationErrorResponse, 0, len(ve))
		for _, fe := range ve {
			fieldErrors = append(fieldErrors, ValidationErrorResponse{
				Field:   fe.Field(),
				Message: formatValidationError(fe),
			})
		}
		return fieldErrors
	}

	return []ValidationErrorResponse{{Message: fmt.Sprintf("validation failed: %v", err)}}
}

// writeValidationErrors emits the full field error list in one envelope so
// a form with several bad fields shows every problem in a single round trip.
func writeValidationErrors(w http.ResponseWriter, fieldErrors []ValidationErrorResponse) {
	pkghttp.WriteJSON(w, http.StatusBadRequest, map[string]any{
		"error":   "validation_failed",
		"message": "One or more fields are invalid",
		"fields":  fieldErrors,
	})
}

// formatValidationError converts a validator FieldError to a user-friendly message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "uzphone":
		return "must be an Uzbek number in the form +998XXXXXXXXX"
	case "min":
		return fmt.Sprintf("must have a minimum of %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must have a maximum of %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "latitude":
		return "must be a valid latitude"
	case "longitude":
		return "must be a valid longitude"
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
