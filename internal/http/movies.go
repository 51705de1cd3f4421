package httpserver

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := parsePage(query)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	result, err := s.ledger.Movies(r.Context(), strings.TrimSpace(query.Get("q")), page.Size, page.Offset())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, newPageResponse(page, result.Total, toMovieResponses(result.Movies)))
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	movie, err := s.ledger.Movie(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toMovieResponse(movie))
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	result, err := s.ledger.MovieReviews(r.Context(), chi.URLParam(r, "id"), page.Size, page.Offset())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	reviews := make([]reviewResponse, 0, len(result.Reviews))
	for _, review := range result.Reviews {
		reviews = append(reviews, toReviewResponse(review, result.Movie))
	}
	s.respondJSON(w, http.StatusOK, reviewPageResponse{
		pageResponse: newPageResponse(page, result.Total, reviews),
		MovieDetails: toMovieResponse(result.Movie),
	})
}

func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	result, err := s.ledger.Review(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "reviewId"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toReviewResponse(result.Review, result.Movie))
}
