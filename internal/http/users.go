package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/movielog/internal/auth"
)

type signupRequest struct {
	Username string `json:"username" validate:"required,min=5,max=20,username"`
	Password string `json:"password" validate:"required,min=8,max=64"`
	Bio      string `json:"bio" validate:"max=300"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=20"`
	Password string `json:"password" validate:"required,max=64"`
}

type userUpdateRequest struct {
	Bio      *string `json:"bio" validate:"omitempty,max=300"`
	Password *string `json:"password" validate:"omitempty,min=8,max=64"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	user, err := s.auth.Signup(r.Context(), req.Username, req.Password, req.Bio)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/users/"+user.ID)
	s.respondJSON(w, http.StatusCreated, toUserResponse(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	session, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, sessionResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      toUserResponse(session.User),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.Status(r.Context(), callerFrom(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req userUpdateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	user, err := s.auth.UpdateProfile(r.Context(), callerFrom(r), chi.URLParam(r, "id"), auth.ProfileUpdate{
		Bio:      req.Bio,
		Password: req.Password,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	report, err := s.ledger.DeleteUser(r.Context(), callerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, deletionResponse{
		RatingsRemoved: report.RatingsRemoved,
		ReviewsRemoved: report.ReviewsRemoved,
		ListsRemoved:   report.ListsRemoved,
		MoviesTouched:  len(report.MoviesTouched),
	})
}

func (s *Server) handleUserRatings(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	result, err := s.ledger.UserRatings(r.Context(), chi.URLParam(r, "id"), page.Size, page.Offset())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	ratings := make([]userRatingResponse, 0, len(result.Ratings))
	for _, item := range result.Ratings {
		ratings = append(ratings, userRatingResponse{
			ratingResponse: toRatingResponse(item.Rating, item.Movie),
			Movie:          toMovieResponse(item.Movie),
		})
	}
	s.respondJSON(w, http.StatusOK, userRatingPageResponse{
		pageResponse: newPageResponse(page, result.Total, ratings),
		UserDetails:  toUserResponse(result.User),
	})
}

func (s *Server) handleUserReviews(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	result, err := s.ledger.UserReviews(r.Context(), chi.URLParam(r, "id"), page.Size, page.Offset())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	reviews := make([]userReviewResponse, 0, len(result.Reviews))
	for _, item := range result.Reviews {
		reviews = append(reviews, userReviewResponse{
			reviewResponse: toReviewResponse(item.Review, item.Movie),
			Movie:          toMovieResponse(item.Movie),
		})
	}
	s.respondJSON(w, http.StatusOK, userReviewPageResponse{
		pageResponse: newPageResponse(page, result.Total, reviews),
		UserDetails:  toUserResponse(result.User),
	})
}
