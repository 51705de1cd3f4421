package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/Clark-Hu/movielog/internal/domain"
	"github.com/Clark-Hu/movielog/internal/events"
	"github.com/Clark-Hu/movielog/internal/repository"
)

// RatingResult is a rating together with its movie after the write.
type RatingResult struct {
	Rating domain.Rating
	Movie  domain.Movie
}

// CreateRating stores the caller's first rating for the movie and folds it
// into the movie aggregate.
func (s *Service) CreateRating(ctx context.Context, caller domain.Caller, tmdbID string, value int) (RatingResult, error) {
	const op = "rating.create"
	userID, err := caller.Require(op)
	if err != nil {
		return RatingResult{}, err
	}
	if err := ValidateRating(value); err != nil {
		return RatingResult{}, err
	}

	var result RatingResult
	err = s.inTx(ctx, op, func(ctx context.Context, repo *repository.Repository) error {
		movie, err := s.guardCreate(ctx, repo, op, userID, tmdbID, existsIn[domain.Rating](repo.Ratings))
		if err != nil {
			return err
		}

		rating, err := repo.Ratings.Create(ctx, repository.RatingCreateParams{UserID: userID, MovieID: movie.ID, Value: value})
		if err != nil {
			return err
		}
		agg, err := ApplyNew(movie.Rating, value)
		if err != nil {
			return err
		}
		movie, err = repo.Movies.UpdateAggregate(ctx, movie.ID, agg)
		if err != nil {
			return err
		}
		result = RatingResult{Rating: rating, Movie: movie}
		return nil
	})
	if err != nil {
		return RatingResult{}, err
	}

	s.logger.Info("rating created", "user_id", userID, "movie_id", result.Movie.ID, "value", value)
	s.publish(ctx, events.Event{
		Type:       events.RatingCreated,
		UserID:     userID,
		MovieID:    result.Movie.ID,
		TMDBID:     tmdbID,
		ResourceID: result.Rating.ID,
		Aggregate:  aggregateEvent(result.Movie.Rating),
	})
	return result, nil
}

// UpdateRating changes the value of the caller's rating.
func (s *Service) UpdateRating(ctx context.Context, caller domain.Caller, tmdbID, ratingID string, value int) (RatingResult, error) {
	const op = "rating.update"
	userID, err := caller.Require(op)
	if err != nil {
		return RatingResult{}, err
	}
	if err := ValidateRating(value); err != nil {
		return RatingResult{}, err
	}

	var result RatingResult
	err = s.inTx(ctx, op, func(ctx context.Context, repo *repository.Repository) error {
		movie, rating, err := guardMutation[domain.Rating](ctx, s, repo, repo.Ratings, op, userID, tmdbID, ratingID)
		if err != nil {
			return err
		}

		agg, err := ApplyChange(movie.Rating, rating.Value, value)
		if err != nil {
			return err
		}
		rating, err = repo.Ratings.UpdateValue(ctx, rating.ID, value)
		if err != nil {
			return err
		}
		movie, err = repo.Movies.UpdateAggregate(ctx, movie.ID, agg)
		if err != nil {
			return err
		}
		result = RatingResult{Rating: rating, Movie: movie}
		return nil
	})
	if err != nil {
		return RatingResult{}, err
	}

	s.logger.Info("rating updated", "user_id", userID, "rating_id", ratingID, "value", value)
	s.publish(ctx, events.Event{
		Type:       events.RatingUpdated,
		UserID:     userID,
		MovieID:    result.Movie.ID,
		TMDBID:     tmdbID,
		ResourceID: ratingID,
		Aggregate:  aggregateEvent(result.Movie.Rating),
	})
	return result, nil
}

// DeleteRating removes the caller's rating and returns the updated movie.
func (s *Service) DeleteRating(ctx context.Context, caller domain.Caller, tmdbID, ratingID string) (domain.Movie, error) {
	const op = "rating.delete"
	userID, err := caller.Require(op)
	if err != nil {
		return domain.Movie{}, err
	}

	var movie domain.Movie
	err = s.inTx(ctx, op, func(ctx context.Context, repo *repository.Repository) error {
		locked, rating, err := guardMutation[domain.Rating](ctx, s, repo, repo.Ratings, op, userID, tmdbID, ratingID)
		if err != nil {
			return err
		}

		agg, err := ApplyRemoval(locked.Rating, rating.Value)
		if err != nil {
			return err
		}
		if err := repo.Ratings.Delete(ctx, rating.ID); err != nil {
			return err
		}
		movie, err = repo.Movies.UpdateAggregate(ctx, locked.ID, agg)
		return err
	})
	if err != nil {
		return domain.Movie{}, err
	}

	s.logger.Info("rating deleted", "user_id", userID, "rating_id", ratingID)
	s.publish(ctx, events.Event{
		Type:       events.RatingDeleted,
		UserID:     userID,
		MovieID:    movie.ID,
		TMDBID:     tmdbID,
		ResourceID: ratingID,
		Aggregate:  aggregateEvent(movie.Rating),
	})
	return movie, nil
}

// RatingFor returns the caller's rating for a movie, or nil when the caller
// has not rated it or the movie is not in the local catalog.
func (s *Service) RatingFor(ctx context.Context, caller domain.Caller, tmdbID string) (*domain.Rating, error) {
	const op = "rating.get"
	userID, err := caller.Require(op)
	if err != nil {
		return nil, err
	}

	movie, err := s.resolver.Lookup(ctx, s.repo.Movies, tmdbID)
	if err != nil {
		if errors.Is(err, domain.ErrMovieNotFound) {
			return nil, nil
		}
		return nil, repository.Classify(op, err)
	}
	rating, err := s.repo.Ratings.GetByUserAndMovie(ctx, userID, movie.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, repository.Classify(op, fmt.Errorf("get rating: %w", err))
	}
	return &rating, nil
}
