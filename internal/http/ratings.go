package httpserver

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ratingValue accepts the score as a JSON integer or as a string holding
// one, e.g. 7 or "7".
type ratingValue struct {
	n   int
	set bool
}

func (v *ratingValue) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return &json.UnmarshalTypeError{Value: string(data), Type: reflect.TypeOf(0), Field: "value"}
	}
	v.n, v.set = n, true
	return nil
}

type ratingRequest struct {
	Value ratingValue `json:"value"`
}

func (s *Server) decodeRating(w http.ResponseWriter, r *http.Request) (int, bool) {
	var req ratingRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return 0, false
	}
	if !req.Value.set {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request",
			Details: []validationError{{Field: "value", Message: "value is required"}},
		})
		return 0, false
	}
	return req.Value.n, true
}

func (s *Server) handleGetCallerRating(w http.ResponseWriter, r *http.Request) {
	tmdbID := chi.URLParam(r, "id")
	rating, err := s.ledger.RatingFor(r.Context(), callerFrom(r), tmdbID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	resp := callerRatingResponse{}
	if rating != nil {
		view := ratingResponse{
			ID:        rating.ID,
			UserID:    rating.UserID,
			MovieID:   tmdbID,
			Value:     rating.Value,
			CreatedAt: rating.CreatedAt,
			UpdatedAt: rating.UpdatedAt,
		}
		resp.Rate = &view
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateRating(w http.ResponseWriter, r *http.Request) {
	value, ok := s.decodeRating(w, r)
	if !ok {
		return
	}
	result, err := s.ledger.CreateRating(r.Context(), callerFrom(r), chi.URLParam(r, "id"), value)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	rate := toRatingResponse(result.Rating, result.Movie)
	s.respondJSON(w, http.StatusCreated, ratingMutationResponse{Rate: &rate, Movie: toMovieResponse(result.Movie)})
}

func (s *Server) handleUpdateRating(w http.ResponseWriter, r *http.Request) {
	value, ok := s.decodeRating(w, r)
	if !ok {
		return
	}
	result, err := s.ledger.UpdateRating(r.Context(), callerFrom(r), chi.URLParam(r, "id"), chi.URLParam(r, "rateId"), value)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	rate := toRatingResponse(result.Rating, result.Movie)
	s.respondJSON(w, http.StatusOK, ratingMutationResponse{Rate: &rate, Movie: toMovieResponse(result.Movie)})
}

func (s *Server) handleDeleteRating(w http.ResponseWriter, r *http.Request) {
	if _, err := s.ledger.DeleteRating(r.Context(), callerFrom(r), chi.URLParam(r, "id"), chi.URLParam(r, "rateId")); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
