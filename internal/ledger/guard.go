package ledger

import (
	"context"
	"errors"

	"github.com/Clark-Hu/movielog/internal/domain"
	"github.com/Clark-Hu/movielog/internal/repository"
)

// owned is a per-(user, movie) resource such as a rating or a review.
type owned interface {
	Owner() string
	Movie() string
}

type ownedLookup[T owned] interface {
	GetByID(ctx context.Context, id string) (T, error)
	GetByUserAndMovie(ctx context.Context, userID, movieID string) (T, error)
}

// guardCreate resolves the movie (creating it from the provider when
// needed), locks it and rejects a second resource for the same pair.
func (s *Service) guardCreate(ctx context.Context, repo *repository.Repository, op, userID, tmdbID string, exists func(ctx context.Context, userID, movieID string) error) (domain.Movie, error) {
	if err := repo.LockCaller(ctx, op, userID); err != nil {
		return domain.Movie{}, err
	}

	movie, err := s.resolver.Resolve(ctx, repo.Movies, tmdbID)
	if err != nil {
		return domain.Movie{}, err
	}
	movie, err = repo.Movies.LockByID(ctx, movie.ID)
	if err != nil {
		return domain.Movie{}, err
	}

	switch err := exists(ctx, userID, movie.ID); {
	case err == nil:
		return domain.Movie{}, domain.E(domain.KindAlreadyExists, op, tmdbID, nil)
	case errors.Is(err, repository.ErrNotFound):
		return movie, nil
	default:
		return domain.Movie{}, err
	}
}

// existsIn adapts an ownedLookup to the existence probe used by guardCreate.
func existsIn[T owned](lookup ownedLookup[T]) func(ctx context.Context, userID, movieID string) error {
	return func(ctx context.Context, userID, movieID string) error {
		_, err := lookup.GetByUserAndMovie(ctx, userID, movieID)
		return err
	}
}

// guardMutation runs the check chain shared by update and delete:
// movie known locally, resource present, resource attached to that movie,
// resource owned by the caller. The movie comes back locked.
func guardMutation[T owned](ctx context.Context, s *Service, repo *repository.Repository, lookup ownedLookup[T], op, userID, tmdbID, resourceID string) (domain.Movie, T, error) {
	var zero T
	if err := repo.LockCaller(ctx, op, userID); err != nil {
		return domain.Movie{}, zero, err
	}

	movie, err := s.resolver.Lookup(ctx, repo.Movies, tmdbID)
	if err != nil {
		return domain.Movie{}, zero, err
	}
	movie, err = repo.Movies.LockByID(ctx, movie.ID)
	if err != nil {
		return domain.Movie{}, zero, err
	}

	resource, err := lookup.GetByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Movie{}, zero, domain.E(domain.KindResourceNotFound, op, resourceID, nil)
		}
		return domain.Movie{}, zero, err
	}
	if resource.Movie() != movie.ID {
		return domain.Movie{}, zero, domain.E(domain.KindResourceNotFound, op, resourceID, nil)
	}
	if resource.Owner() != userID {
		return domain.Movie{}, zero, domain.E(domain.KindNotAuthorized, op, resourceID, nil)
	}
	return movie, resource, nil
}
