package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/okian/pitchside/internal/domain/model"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// decode reads a JSON body into dst and runs the struct's validate tags.
// Unparseable JSON is a bad request; failed tags are validation errors.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, op string, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	if err := s.validate.Struct(dst); err != nil {
		return invalidFields(op, err)
	}
	return nil
}

// invalidFields renders validator failures as one validation error listing
// "field: tag" pairs.
func invalidFields(op string, err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return WrapKind(op, ErrBadRequest, err)
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), describeTag(fe)))
	}
	return model.Invalid(op, "%s", strings.Join(parts, "; "))
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "datetime":
		return "must be a date formatted " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	}
	return "failed " + fe.Tag()
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(q url.Values, op, key string) (time.Time, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, model.Invalid(op, "%s must be a date formatted YYYY-MM-DD", key)
	}
	return t, nil
}
