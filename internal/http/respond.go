package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Clark-Hu/movielog/internal/domain"
)

const maxRequestBody = 1 << 20 // 1 MiB

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Error("failed to encode response", "error", err)
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxError):
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", fmt.Sprintf("Invalid value for field %s", typeError.Field))
	case errors.As(err, &maxBytesError):
		s.respondError(w, http.StatusRequestEntityTooLarge, "VALIDATION_ERROR", "Request body too large")
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Request body cannot be empty")
	default:
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unable to parse request body")
	}
}

// errorStatus maps a core failure kind onto its HTTP status and error code.
func errorStatus(kind domain.Kind) (int, string, string) {
	switch kind {
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized, "UNAUTHENTICATED", "Missing or invalid authentication information"
	case domain.KindNotAuthorized:
		return http.StatusUnauthorized, "NOT_AUTHORIZED", "Not allowed to act on this resource"
	case domain.KindMovieNotFound:
		return http.StatusNotFound, "MOVIE_NOT_FOUND", "Movie not found"
	case domain.KindResourceNotFound:
		return http.StatusNotFound, "NOT_FOUND", "Resource not found"
	case domain.KindAlreadyExists:
		return http.StatusConflict, "ALREADY_EXISTS", "Resource already exists"
	case domain.KindValidationFailed:
		return http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong"
	}
}

// respondServiceError writes the response for an error returned by a core
// service. Internal details are logged, never sent.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := errorStatus(domain.KindOf(err))
	resp := errorResponse{Code: code, Message: message}

	var derr *domain.Error
	if errors.As(err, &derr) && derr.Kind == domain.KindValidationFailed && derr.Resource != "" {
		detail := validationError{Field: derr.Resource, Message: derr.Resource + " is invalid"}
		if derr.Err != nil {
			detail.Message = fmt.Sprintf("%s: %s", derr.Resource, derr.Err)
		}
		resp.Details = []validationError{detail}
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	s.respondJSON(w, status, resp)
}
