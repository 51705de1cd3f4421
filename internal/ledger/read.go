package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Clark-Hu/movielog/internal/domain"
	"github.com/Clark-Hu/movielog/internal/repository"
)

// MoviePage is one page of the ranked catalog.
type MoviePage struct {
	Movies []domain.Movie
	Total  int
}

// Movies pages through local movies ranked by average rating. query filters
// by name when non-empty.
func (s *Service) Movies(ctx context.Context, query string, limit, offset int) (MoviePage, error) {
	const op = "movie.list"
	filters := repository.MovieListFilters{Limit: limit, Offset: offset}
	if q := strings.TrimSpace(query); q != "" {
		filters.Query = &q
	}
	total, err := s.repo.Movies.Count(ctx, filters)
	if err != nil {
		return MoviePage{}, repository.Classify(op, err)
	}
	movies, err := s.repo.Movies.List(ctx, filters)
	if err != nil {
		return MoviePage{}, repository.Classify(op, err)
	}
	return MoviePage{Movies: movies, Total: total}, nil
}

// Movie returns a local movie by TMDB id. It never contacts the provider.
func (s *Service) Movie(ctx context.Context, tmdbID string) (domain.Movie, error) {
	movie, err := s.resolver.Lookup(ctx, s.repo.Movies, tmdbID)
	if err != nil {
		return domain.Movie{}, repository.Classify("movie.get", err)
	}
	return movie, nil
}

// ReviewPage is one page of a movie's reviews.
type ReviewPage struct {
	Movie   domain.Movie
	Reviews []domain.Review
	Total   int
}

// MovieReviews pages through the reviews of a local movie, newest first.
func (s *Service) MovieReviews(ctx context.Context, tmdbID string, limit, offset int) (ReviewPage, error) {
	const op = "review.list"
	movie, err := s.resolver.Lookup(ctx, s.repo.Movies, tmdbID)
	if err != nil {
		return ReviewPage{}, repository.Classify(op, err)
	}
	total, err := s.repo.Reviews.CountByMovie(ctx, movie.ID)
	if err != nil {
		return ReviewPage{}, repository.Classify(op, err)
	}
	reviews, err := s.repo.Reviews.ListByMovie(ctx, movie.ID, limit, offset)
	if err != nil {
		return ReviewPage{}, repository.Classify(op, err)
	}
	return ReviewPage{Movie: movie, Reviews: reviews, Total: total}, nil
}

// Review returns one review of a local movie. A review that belongs to a
// different movie is reported as absent.
func (s *Service) Review(ctx context.Context, tmdbID, reviewID string) (ReviewResult, error) {
	const op = "review.get"
	movie, err := s.resolver.Lookup(ctx, s.repo.Movies, tmdbID)
	if err != nil {
		return ReviewResult{}, repository.Classify(op, err)
	}
	review, err := s.repo.Reviews.GetByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ReviewResult{}, domain.E(domain.KindResourceNotFound, op, reviewID, nil)
		}
		return ReviewResult{}, repository.Classify(op, err)
	}
	if review.MovieID != movie.ID {
		return ReviewResult{}, domain.E(domain.KindResourceNotFound, op, reviewID, nil)
	}
	return ReviewResult{Review: review, Movie: movie}, nil
}

// UserRatingPage is one page of a user's ratings with their movies.
type UserRatingPage struct {
	User    domain.User
	Ratings []RatingResult
	Total   int
}

// UserRatings pages through the ratings a user made, newest first.
func (s *Service) UserRatings(ctx context.Context, userID string, limit, offset int) (UserRatingPage, error) {
	const op = "rating.list_by_user"
	user, err := s.lookupUser(ctx, op, userID)
	if err != nil {
		return UserRatingPage{}, err
	}
	total, err := s.repo.Ratings.CountByUser(ctx, user.ID)
	if err != nil {
		return UserRatingPage{}, repository.Classify(op, err)
	}
	ratings, err := s.repo.Ratings.ListByUserPaged(ctx, user.ID, limit, offset)
	if err != nil {
		return UserRatingPage{}, repository.Classify(op, err)
	}
	movies, err := moviesOf(ctx, s.repo, op, ratings, func(r domain.Rating) string { return r.MovieID })
	if err != nil {
		return UserRatingPage{}, err
	}

	page := UserRatingPage{User: user, Ratings: make([]RatingResult, 0, len(ratings)), Total: total}
	for _, rating := range ratings {
		page.Ratings = append(page.Ratings, RatingResult{Rating: rating, Movie: movies[rating.MovieID]})
	}
	return page, nil
}

// UserReviewPage is one page of a user's reviews with their movies.
type UserReviewPage struct {
	User    domain.User
	Reviews []ReviewResult
	Total   int
}

// UserReviews pages through the reviews a user wrote, newest first.
func (s *Service) UserReviews(ctx context.Context, userID string, limit, offset int) (UserReviewPage, error) {
	const op = "review.list_by_user"
	user, err := s.lookupUser(ctx, op, userID)
	if err != nil {
		return UserReviewPage{}, err
	}
	total, err := s.repo.Reviews.CountByUser(ctx, user.ID)
	if err != nil {
		return UserReviewPage{}, repository.Classify(op, err)
	}
	reviews, err := s.repo.Reviews.ListByUserPaged(ctx, user.ID, limit, offset)
	if err != nil {
		return UserReviewPage{}, repository.Classify(op, err)
	}
	movies, err := moviesOf(ctx, s.repo, op, reviews, func(r domain.Review) string { return r.MovieID })
	if err != nil {
		return UserReviewPage{}, err
	}

	page := UserReviewPage{User: user, Reviews: make([]ReviewResult, 0, len(reviews)), Total: total}
	for _, review := range reviews {
		page.Reviews = append(page.Reviews, ReviewResult{Review: review, Movie: movies[review.MovieID]})
	}
	return page, nil
}

func (s *Service) lookupUser(ctx context.Context, op, userID string) (domain.User, error) {
	user, err := s.repo.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, domain.E(domain.KindResourceNotFound, op, userID, nil)
		}
		return domain.User{}, repository.Classify(op, err)
	}
	return user, nil
}

// moviesOf loads the movies items point at. Movies are never deleted, so a
// missing one means the rows changed underneath the read.
func moviesOf[T any](ctx context.Context, repo *repository.Repository, op string, items []T, movieID func(T) string) (map[string]domain.Movie, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, movieID(item))
	}
	movies, err := repo.Movies.GetByIDs(ctx, ids)
	if err != nil {
		return nil, repository.Classify(op, err)
	}
	for _, id := range ids {
		if _, ok := movies[id]; !ok {
			return nil, domain.E(domain.KindTransactionAborted, op, id, fmt.Errorf("movie %s vanished", id))
		}
	}
	return movies, nil
}
