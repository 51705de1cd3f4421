package ledger

import (
	"context"
	"errors"

	"github.com/Clark-Hu/movielog/internal/domain"
	"github.com/Clark-Hu/movielog/internal/events"
	"github.com/Clark-Hu/movielog/internal/repository"
)

// DeletionReport summarizes what an account deletion removed.
type DeletionReport struct {
	RatingsRemoved int64
	ReviewsRemoved int64
	ListsRemoved   int64
	MoviesTouched  []string
}

// DeleteUser removes an account with everything it owns. Each rated movie
// has the user's ratings subtracted from its aggregate in the same
// transaction, visiting movies in id order.
func (s *Service) DeleteUser(ctx context.Context, caller domain.Caller, targetUserID string) (DeletionReport, error) {
	const op = "user.delete"
	callerID, err := caller.Require(op)
	if err != nil {
		return DeletionReport{}, err
	}

	var report DeletionReport
	err = s.inTx(ctx, op, func(ctx context.Context, repo *repository.Repository) error {
		user, err := repo.Users.LockByID(ctx, targetUserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.E(domain.KindResourceNotFound, op, targetUserID, nil)
			}
			return err
		}
		if user.ID != callerID {
			return domain.E(domain.KindNotAuthorized, op, targetUserID, nil)
		}

		ratings, err := repo.Ratings.ListByUser(ctx, user.ID)
		if err != nil {
			return err
		}
		touched, err := reconcileRemovals(ctx, repo, ratings)
		if err != nil {
			return err
		}

		removed, err := repo.Ratings.DeleteByUser(ctx, user.ID)
		if err != nil {
			return err
		}
		reviews, err := repo.Reviews.DeleteByUser(ctx, user.ID)
		if err != nil {
			return err
		}
		lists, err := repo.Lists.DeleteByUser(ctx, user.ID)
		if err != nil {
			return err
		}
		if _, err := repo.Watchlist.DeleteByUser(ctx, user.ID); err != nil {
			return err
		}
		if err := repo.Users.Delete(ctx, user.ID); err != nil {
			return err
		}

		report = DeletionReport{
			RatingsRemoved: removed,
			ReviewsRemoved: reviews,
			ListsRemoved:   lists,
			MoviesTouched:  touched,
		}
		return nil
	})
	if err != nil {
		return DeletionReport{}, err
	}

	s.logger.Info("user deleted",
		"user_id", targetUserID,
		"ratings", report.RatingsRemoved,
		"reviews", report.ReviewsRemoved,
		"lists", report.ListsRemoved)
	s.publish(ctx, events.Event{
		Type:          events.UserDeleted,
		UserID:        targetUserID,
		MoviesTouched: report.MoviesTouched,
	})
	return report, nil
}

// reconcileRemovals subtracts ratings (sorted by movie id) from their
// movies' aggregates, locking each movie once.
func reconcileRemovals(ctx context.Context, repo *repository.Repository, ratings []domain.Rating) ([]string, error) {
	touched := make([]string, 0)
	for i := 0; i < len(ratings); {
		movieID := ratings[i].MovieID
		movie, err := repo.Movies.LockByID(ctx, movieID)
		if err != nil {
			return nil, err
		}

		agg := movie.Rating
		for ; i < len(ratings) && ratings[i].MovieID == movieID; i++ {
			if agg, err = ApplyRemoval(agg, ratings[i].Value); err != nil {
				return nil, err
			}
		}
		if _, err := repo.Movies.UpdateAggregate(ctx, movieID, agg); err != nil {
			return nil, err
		}
		touched = append(touched, movieID)
	}
	return touched, nil
}
