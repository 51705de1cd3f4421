package ledger

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Clark-Hu/movielog/internal/domain"
	"github.com/Clark-Hu/movielog/internal/events"
	"github.com/Clark-Hu/movielog/internal/repository"
)

// Review length bounds, counted in characters after trimming.
const (
	ReviewTitleMin = 12
	ReviewTitleMax = 175
	ReviewBodyMin  = 400
	ReviewBodyMax  = 10000
)

// ReviewInput carries the editable fields of a review.
type ReviewInput struct {
	Title string
	Body  string
}

func (in ReviewInput) normalize(op string) (ReviewInput, error) {
	out := ReviewInput{Title: strings.TrimSpace(in.Title), Body: strings.TrimSpace(in.Body)}
	if n := utf8.RuneCountInString(out.Title); n < ReviewTitleMin || n > ReviewTitleMax {
		return out, domain.E(domain.KindValidationFailed, op, "title",
			fmt.Errorf("length %d outside %d..%d", n, ReviewTitleMin, ReviewTitleMax))
	}
	if n := utf8.RuneCountInString(out.Body); n < ReviewBodyMin || n > ReviewBodyMax {
		return out, domain.E(domain.KindValidationFailed, op, "body",
			fmt.Errorf("length %d outside %d..%d", n, ReviewBodyMin, ReviewBodyMax))
	}
	return out, nil
}

// ReviewResult is a review together with its movie.
type ReviewResult struct {
	Review domain.Review
	Movie  domain.Movie
}

// CreateReview stores the caller's single review for a movie.
func (s *Service) CreateReview(ctx context.Context, caller domain.Caller, tmdbID string, input ReviewInput) (ReviewResult, error) {
	const op = "review.create"
	userID, err := caller.Require(op)
	if err != nil {
		return ReviewResult{}, err
	}
	input, err = input.normalize(op)
	if err != nil {
		return ReviewResult{}, err
	}

	var result ReviewResult
	err = s.inTx(ctx, op, func(ctx context.Context, repo *repository.Repository) error {
		movie, err := s.guardCreate(ctx, repo, op, userID, tmdbID, existsIn[domain.Review](repo.Reviews))
		if err != nil {
			return err
		}
		review, err := repo.Reviews.Create(ctx, repository.ReviewCreateParams{
			UserID:  userID,
			MovieID: movie.ID,
			Title:   input.Title,
			Body:    input.Body,
		})
		if err != nil {
			return err
		}
		result = ReviewResult{Review: review, Movie: movie}
		return nil
	})
	if err != nil {
		return ReviewResult{}, err
	}

	s.publish(ctx, events.Event{
		Type:       events.ReviewCreated,
		UserID:     userID,
		MovieID:    result.Movie.ID,
		TMDBID:     tmdbID,
		ResourceID: result.Review.ID,
	})
	return result, nil
}

// UpdateReview replaces title and body of the caller's review.
func (s *Service) UpdateReview(ctx context.Context, caller domain.Caller, tmdbID, reviewID string, input ReviewInput) (ReviewResult, error) {
	const op = "review.update"
	userID, err := caller.Require(op)
	if err != nil {
		return ReviewResult{}, err
	}
	input, err = input.normalize(op)
	if err != nil {
		return ReviewResult{}, err
	}

	var result ReviewResult
	err = s.inTx(ctx, op, func(ctx context.Context, repo *repository.Repository) error {
		movie, review, err := guardMutation[domain.Review](ctx, s, repo, repo.Reviews, op, userID, tmdbID, reviewID)
		if err != nil {
			return err
		}
		review, err = repo.Reviews.Update(ctx, review.ID, input.Title, input.Body)
		if err != nil {
			return err
		}
		result = ReviewResult{Review: review, Movie: movie}
		return nil
	})
	if err != nil {
		return ReviewResult{}, err
	}

	s.publish(ctx, events.Event{
		Type:       events.ReviewUpdated,
		UserID:     userID,
		MovieID:    result.Movie.ID,
		TMDBID:     tmdbID,
		ResourceID: reviewID,
	})
	return result, nil
}

// DeleteReview removes the caller's review.
func (s *Service) DeleteReview(ctx context.Context, caller domain.Caller, tmdbID, reviewID string) error {
	const op = "review.delete"
	userID, err := caller.Require(op)
	if err != nil {
		return err
	}

	var movieID string
	err = s.inTx(ctx, op, func(ctx context.Context, repo *repository.Repository) error {
		movie, review, err := guardMutation[domain.Review](ctx, s, repo, repo.Reviews, op, userID, tmdbID, reviewID)
		if err != nil {
			return err
		}
		movieID = movie.ID
		return repo.Reviews.Delete(ctx, review.ID)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.Event{
		Type:       events.ReviewDeleted,
		UserID:     userID,
		MovieID:    movieID,
		TMDBID:     tmdbID,
		ResourceID: reviewID,
	})
	return nil
}
