package httpserver

import (
	"time"

	"github.com/Clark-Hu/movielog/internal/domain"
)

// Response types are the only shapes that leave the server. They are built
// from domain values and never carry internal ids beyond what clients need.

type movieResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Photo       string `json:"photo"`
	ReleaseDate string `json:"release_date"`
	RateCount   int64  `json:"rate_count"`
	RateAverage int64  `json:"rate_average"`
}

func toMovieResponse(movie domain.Movie) movieResponse {
	return movieResponse{
		ID:          movie.TMDBID,
		Name:        movie.Name,
		Description: movie.Description,
		Photo:       movie.Photo,
		ReleaseDate: movie.ReleaseDate,
		RateCount:   movie.Rating.Count,
		RateAverage: movie.Rating.Average,
	}
}

func toMovieResponses(movies []domain.Movie) []movieResponse {
	out := make([]movieResponse, 0, len(movies))
	for _, movie := range movies {
		out = append(out, toMovieResponse(movie))
	}
	return out
}

type ratingResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	MovieID   string    `json:"movie_id"`
	Value     int       `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toRatingResponse(rating domain.Rating, movie domain.Movie) ratingResponse {
	return ratingResponse{
		ID:        rating.ID,
		UserID:    rating.UserID,
		MovieID:   movie.TMDBID,
		Value:     rating.Value,
		CreatedAt: rating.CreatedAt,
		UpdatedAt: rating.UpdatedAt,
	}
}

type ratingMutationResponse struct {
	Rate  *ratingResponse `json:"rate,omitempty"`
	Movie movieResponse   `json:"movie"`
}

type callerRatingResponse struct {
	Rate *ratingResponse `json:"rate"`
}

type reviewResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	MovieID   string    `json:"movie_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toReviewResponse(review domain.Review, movie domain.Movie) reviewResponse {
	return reviewResponse{
		ID:        review.ID,
		UserID:    review.UserID,
		MovieID:   movie.TMDBID,
		Title:     review.Title,
		Body:      review.Body,
		CreatedAt: review.CreatedAt,
		UpdatedAt: review.UpdatedAt,
	}
}

type reviewPageResponse struct {
	pageResponse[reviewResponse]
	MovieDetails movieResponse `json:"movie_details"`
}

type userRatingResponse struct {
	ratingResponse
	Movie movieResponse `json:"movie"`
}

type userRatingPageResponse struct {
	pageResponse[userRatingResponse]
	UserDetails userResponse `json:"user_details"`
}

type userReviewResponse struct {
	reviewResponse
	Movie movieResponse `json:"movie"`
}

type userReviewPageResponse struct {
	pageResponse[userReviewResponse]
	UserDetails userResponse `json:"user_details"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Bio       string    `json:"bio"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(user domain.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Username:  user.Username,
		Bio:       user.Bio,
		CreatedAt: user.CreatedAt,
	}
}

type sessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      userResponse `json:"user"`
}

type deletionResponse struct {
	RatingsRemoved int64 `json:"ratings_removed"`
	ReviewsRemoved int64 `json:"reviews_removed"`
	ListsRemoved   int64 `json:"lists_removed"`
	MoviesTouched  int   `json:"movies_touched"`
}

type listResponse struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Movies      []movieResponse `json:"movies,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func toListResponse(list domain.List) listResponse {
	resp := listResponse{
		ID:          list.ID,
		UserID:      list.UserID,
		Name:        list.Name,
		Description: list.Description,
		CreatedAt:   list.CreatedAt,
		UpdatedAt:   list.UpdatedAt,
	}
	if list.Movies != nil {
		resp.Movies = toMovieResponses(list.Movies)
	}
	return resp
}

type watchlistResponse struct {
	UserID string          `json:"user_id"`
	Movies []movieResponse `json:"movies"`
}
