package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/movielog/internal/ledger"
)

type reviewRequest struct {
	Title string `json:"title" validate:"required,max=175"`
	Body  string `json:"body" validate:"required,max=10000"`
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	result, err := s.ledger.CreateReview(r.Context(), callerFrom(r), chi.URLParam(r, "id"), ledger.ReviewInput{Title: req.Title, Body: req.Body})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, toReviewResponse(result.Review, result.Movie))
}

func (s *Server) handleUpdateReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	result, err := s.ledger.UpdateReview(r.Context(), callerFrom(r), chi.URLParam(r, "id"), chi.URLParam(r, "reviewId"),
		ledger.ReviewInput{Title: req.Title, Body: req.Body})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toReviewResponse(result.Review, result.Movie))
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteReview(r.Context(), callerFrom(r), chi.URLParam(r, "id"), chi.URLParam(r, "reviewId")); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
