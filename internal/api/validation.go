package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/MJE43/visual-replay-go/internal/logger"
)

const maxBodyBytes = 1 << 20

// Validator wraps the validator instance
type Validator struct {
	validate *validator.Validate
}

var (
	validatorOnce sync.Once
	validate      *Validator
)

// GetValidator returns the shared validator. Field names in errors follow
// the JSON tags.
func GetValidator() *Validator {
	validatorOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
		validate = &Validator{validate: v}
	})
	return validate
}

// ValidateStruct validates a struct using tags
func (v *Validator) ValidateStruct(s any) error {
	return v.validate.Struct(s)
}

// FormatValidationError formats validation errors into a field -> message
// map that never exposes Go struct names.
func FormatValidationError(err error) map[string]string {
	if err == nil {
		return nil
	}

	errs := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		errs["error"] = "Invalid request format"
		return errs
	}

	for _, e := range validationErrors {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			errs[field] = "This field is required"
		case "max":
			errs[field] = fmt.Sprintf("Must be at most %s", e.Param())
		case "min":
			errs[field] = fmt.Sprintf("Must be at least %s", e.Param())
		case "gte":
			errs[field] = fmt.Sprintf("Must be greater than or equal to %s", e.Param())
		case "lte":
			errs[field] = fmt.Sprintf("Must be less than or equal to %s", e.Param())
		case "gtefield":
			errs[field] = fmt.Sprintf("Must not be less than %s", strings.ToLower(e.Param()))
		case "oneof":
			errs[field] = fmt.Sprintf("Must be one of: %s", strings.ReplaceAll(e.Param(), " ", ", "))
		default:
			errs[field] = "Invalid value"
		}
	}

	return errs
}

// decodeAndValidate decodes the JSON body into dst and validates it. On
// failure the error response has already been written and it returns false.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any, action string) bool {
	log := logger.FromContext(r.Context())

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		log.WarnContext(r.Context(), "failed to decode request", "action", action, "error", err)
		s.errorHandler.HandleValidationError(w, r, "body", "Invalid JSON format", map[string]any{
			"error": err.Error(),
		})
		return false
	}

	if err := GetValidator().ValidateStruct(dst); err != nil {
		fields := FormatValidationError(err)
		ctx := make(map[string]any, len(fields))
		for k, v := range fields {
			ctx[k] = v
		}
		s.errorHandler.HandleValidationError(w, r, "fields", fmt.Sprintf("%s request is invalid", action), map[string]any{
			"fields": ctx,
		})
		return false
	}
	return true
}
