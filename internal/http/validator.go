package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	validate        = newValidator()
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func validateStruct(s interface{}) []validationError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []validationError{{Message: err.Error()}}
	}

	out := make([]validationError, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		var message string
		switch fe.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", field)
		case "min":
			message = fmt.Sprintf("%s must be at least %s long", field, fe.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s long", field, fe.Param())
		case "gte", "lte":
			message = fmt.Sprintf("%s is out of range", field)
		case "username":
			message = fmt.Sprintf("%s may only contain letters, digits and underscores", field)
		case "numeric":
			message = fmt.Sprintf("%s must be numeric", field)
		default:
			message = fmt.Sprintf("%s is invalid", field)
		}
		out = append(out, validationError{Field: field, Message: message})
	}
	return out
}

// decodeAndValidate decodes the body into dst and checks its tags. It writes
// the error response itself and reports whether the handler may continue.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := decodeJSONBody(w, r, dst); err != nil {
		s.respondDecodeError(w, err)
		return false
	}
	if errs := validateStruct(dst); len(errs) > 0 {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request",
			Details: errs,
		})
		return false
	}
	return true
}
