package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

const maxJSONBody = 1 << 20 // 1MB

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

// getValidator returns a shared validator that reports json field names.
func getValidator() *validator.Validate {
	vldOnce.Do(func() {
		vld = validator.New(validator.WithRequiredStructEnabled())
		vld.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return vld
}

// decodeJSON reads a size-capped JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		switch {
		case errors.As(err, &mbe):
			return domain.FieldError("body", fmt.Sprintf("exceeds %d bytes", mbe.Limit))
		case errors.Is(err, io.EOF):
			return domain.FieldError("body", "is empty")
		default:
			return domain.FieldError("body", "invalid json")
		}
	}
	return validateStruct(dst)
}

// validateStruct converts the first validator failure into a ValidationError.
// Errors inside the answers slice keep their index.
func validateStruct(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidArgument, err)
	}
	fe := ve[0]
	return validationFromField(fe.Namespace(), fe.Field(), fe.Tag(), fe.Param())
}

func validationFromField(namespace, field, tag, param string) *domain.ValidationError {
	reason := tag
	switch tag {
	case "required":
		reason = "is required"
	case "email":
		reason = "must be a valid email address"
	case "uuid", "uuid4":
		reason = "must be a UUID"
	case "min", "gte":
		reason = "must be at least " + param
	case "max", "lte":
		reason = "must be at most " + param
	case "oneof":
		reason = "must be one of " + param
	}
	// namespace looks like "request.answers[2].questionId"
	idx := -1
	if i := strings.Index(namespace, "answers["); i >= 0 {
		var n int
		if _, err := fmt.Sscanf(namespace[i:], "answers[%d]", &n); err == nil {
			idx = n
		}
	}
	return &domain.ValidationError{Index: idx, Field: field, Reason: reason}
}
