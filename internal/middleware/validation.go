package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"dpp-certification/internal/domain"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("document_type", func(fl validator.FieldLevel) bool {
		return domain.DocumentType(fl.Field().String()).Valid()
	})
	validate.RegisterValidation("product_status", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseProductStatus(fl.Field().String())
		return err == nil
	})
	validate.RegisterValidation("company_kind", func(fl validator.FieldLevel) bool {
		return domain.CompanyKind(fl.Field().String()).Valid()
	})
}

// ValidateRequest validates the request body against a struct with validation tags
func ValidateRequest(v interface{}) error {
	return validate.Struct(v)
}

// ErrMalformedBody is returned when the request body is not valid JSON
var ErrMalformedBody = errors.New("malformed request body")

// DecodeAndValidate decodes JSON request body and validates it
func DecodeAndValidate(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return ValidateRequest(v)
}

// RespondWithDecodeError writes the 400 envelope for a body that failed to
// decode or validate
func RespondWithDecodeError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		RespondWithValidationErrors(w, FormatValidationErrors(verrs))
		return
	}
	RespondWithError(w, http.StatusBadRequest, "invalid request body")
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FormatValidationErrors converts validator errors to a readable format
func FormatValidationErrors(err error) []ValidationError {
	var errors []ValidationError

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			errors = append(errors, ValidationError{
				Field:   e.Field(),
				Message: getErrorMessage(e),
			})
		}
	}

	return errors
}

func getErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "gte":
		return "Value must be greater than or equal to " + e.Param()
	case "lte":
		return "Value must be less than or equal to " + e.Param()
	case "uuid":
		return "Value must be a UUID"
	case "document_type":
		return "Unknown document type"
	case "product_status":
		return "Unknown product status"
	case "company_kind":
		return "Unknown company kind"
	default:
		return "Invalid value"
	}
}
