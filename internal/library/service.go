// Package library manages user-curated lists and the per-user watchlist.
// Movies are referenced by TMDB id and resolved into the catalog on write.
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/Clark-Hu/movielog/internal/catalog"
	"github.com/Clark-Hu/movielog/internal/domain"
	"github.com/Clark-Hu/movielog/internal/repository"
)

const (
	ListNameMin        = 12
	ListNameMax        = 175
	ListDescriptionMax = 300
	ListMoviesMax      = 100
)

// ListInput carries the editable fields of a list.
type ListInput struct {
	Name        string
	Description string
	TMDBIDs     []string
}

func (in ListInput) normalize(op string) (ListInput, error) {
	out := ListInput{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		TMDBIDs:     in.TMDBIDs,
	}
	if n := utf8.RuneCountInString(out.Name); n < ListNameMin || n > ListNameMax {
		return out, domain.E(domain.KindValidationFailed, op, "name",
			fmt.Errorf("length %d outside %d..%d", n, ListNameMin, ListNameMax))
	}
	if n := utf8.RuneCountInString(out.Description); n > ListDescriptionMax {
		return out, domain.E(domain.KindValidationFailed, op, "description",
			fmt.Errorf("length %d above %d", n, ListDescriptionMax))
	}
	if err := checkMovieCount(op, out.TMDBIDs); err != nil {
		return out, err
	}
	return out, nil
}

func checkMovieCount(op string, ids []string) error {
	if len(ids) > ListMoviesMax {
		return domain.E(domain.KindValidationFailed, op, "movies",
			fmt.Errorf("%d movies above %d", len(ids), ListMoviesMax))
	}
	return nil
}

// Service implements list and watchlist operations.
type Service struct {
	tx       repository.TxRunner
	repo     *repository.Repository
	resolver *catalog.Resolver
	logger   *slog.Logger
}

func NewService(tx repository.TxRunner, repo *repository.Repository, resolver *catalog.Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{tx: tx, repo: repo, resolver: resolver, logger: logger.With("component", "library")}
}

// CreateList stores a new list owned by the caller.
func (s *Service) CreateList(ctx context.Context, caller domain.Caller, input ListInput) (domain.List, error) {
	const op = "list.create"
	userID, err := caller.Require(op)
	if err != nil {
		return domain.List{}, err
	}
	input, err = input.normalize(op)
	if err != nil {
		return domain.List{}, err
	}

	var list domain.List
	err = s.repo.InTx(ctx, s.tx, op, func(ctx context.Context, repo *repository.Repository) error {
		if err := repo.LockCaller(ctx, op, userID); err != nil {
			return err
		}
		movies, err := s.resolver.ResolveAll(ctx, repo.Movies, input.TMDBIDs)
		if err != nil {
			return err
		}
		list, err = repo.Lists.Create(ctx, userID, repository.ListParams{Name: input.Name, Description: input.Description})
		if err != nil {
			return err
		}
		if err := repo.Lists.ReplaceMovies(ctx, list.ID, movieIDs(movies)); err != nil {
			return err
		}
		list.Movies = movies
		return nil
	})
	if err != nil {
		return domain.List{}, err
	}
	s.logger.Info("list created", "user_id", userID, "list_id", list.ID, "movies", len(list.Movies))
	return list, nil
}

// ListUpdate is a partial edit of a list. Nil fields keep their current
// value; a non-nil TMDBIDs replaces the whole movie sequence.
type ListUpdate struct {
	Name        *string
	Description *string
	TMDBIDs     *[]string
}

// UpdateList applies update to a caller-owned list. The merge with the stored
// list happens under the list's row lock, so concurrent partial edits of
// different fields all survive.
func (s *Service) UpdateList(ctx context.Context, caller domain.Caller, listID string, update ListUpdate) (domain.List, error) {
	const op = "list.update"
	userID, err := caller.Require(op)
	if err != nil {
		return domain.List{}, err
	}
	if update.TMDBIDs != nil {
		if err := checkMovieCount(op, *update.TMDBIDs); err != nil {
			return domain.List{}, err
		}
	}

	var list domain.List
	err = s.repo.InTx(ctx, s.tx, op, func(ctx context.Context, repo *repository.Repository) error {
		current, err := ownedList(ctx, repo, op, userID, listID)
		if err != nil {
			return err
		}
		input := ListInput{Name: current.Name, Description: current.Description}
		if update.Name != nil {
			input.Name = *update.Name
		}
		if update.Description != nil {
			input.Description = *update.Description
		}
		if update.TMDBIDs != nil {
			input.TMDBIDs = *update.TMDBIDs
		}
		if input, err = input.normalize(op); err != nil {
			return err
		}

		list, err = repo.Lists.Update(ctx, listID, repository.ListParams{Name: input.Name, Description: input.Description})
		if err != nil {
			return err
		}
		if update.TMDBIDs == nil {
			list.Movies, err = repo.Lists.Movies(ctx, listID)
			return err
		}
		movies, err := s.resolver.ResolveAll(ctx, repo.Movies, input.TMDBIDs)
		if err != nil {
			return err
		}
		if err := repo.Lists.ReplaceMovies(ctx, listID, movieIDs(movies)); err != nil {
			return err
		}
		list.Movies = movies
		return nil
	})
	if err != nil {
		return domain.List{}, err
	}
	return list, nil
}

// DeleteList removes a caller-owned list.
func (s *Service) DeleteList(ctx context.Context, caller domain.Caller, listID string) error {
	const op = "list.delete"
	userID, err := caller.Require(op)
	if err != nil {
		return err
	}
	return s.repo.InTx(ctx, s.tx, op, func(ctx context.Context, repo *repository.Repository) error {
		if _, err := ownedList(ctx, repo, op, userID, listID); err != nil {
			return err
		}
		return repo.Lists.Delete(ctx, listID)
	})
}

// GetList returns a list with its movies in order.
func (s *Service) GetList(ctx context.Context, listID string) (domain.List, error) {
	const op = "list.get"
	list, err := s.repo.Lists.GetByID(ctx, listID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.List{}, domain.E(domain.KindResourceNotFound, op, listID, nil)
		}
		return domain.List{}, repository.Classify(op, err)
	}
	list.Movies, err = s.repo.Lists.Movies(ctx, listID)
	if err != nil {
		return domain.List{}, repository.Classify(op, err)
	}
	return list, nil
}

// UserLists pages through the lists of a user and reports the total.
func (s *Service) UserLists(ctx context.Context, userID string, limit, offset int) ([]domain.List, int, error) {
	const op = "list.by_user"
	if err := s.requireUser(ctx, op, userID); err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Lists.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, repository.Classify(op, err)
	}
	lists, err := s.repo.Lists.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, repository.Classify(op, err)
	}
	return lists, total, nil
}

// Watchlist pages through a user's watchlist and reports the total.
func (s *Service) Watchlist(ctx context.Context, userID string, limit, offset int) ([]domain.Movie, int, error) {
	const op = "watchlist.get"
	if err := s.requireUser(ctx, op, userID); err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Watchlist.Count(ctx, userID)
	if err != nil {
		return nil, 0, repository.Classify(op, err)
	}
	movies, err := s.repo.Watchlist.Movies(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, repository.Classify(op, err)
	}
	return movies, total, nil
}

// ReplaceWatchlist overwrites the caller's watchlist with tmdbIDs.
func (s *Service) ReplaceWatchlist(ctx context.Context, caller domain.Caller, userID string, tmdbIDs []string) (domain.Watchlist, error) {
	const op = "watchlist.replace"
	callerID, err := caller.Require(op)
	if err != nil {
		return domain.Watchlist{}, err
	}
	if err := checkMovieCount(op, tmdbIDs); err != nil {
		return domain.Watchlist{}, err
	}
	if callerID != userID {
		if err := s.requireUser(ctx, op, userID); err != nil {
			return domain.Watchlist{}, err
		}
		return domain.Watchlist{}, domain.E(domain.KindNotAuthorized, op, userID, nil)
	}

	var watchlist domain.Watchlist
	err = s.repo.InTx(ctx, s.tx, op, func(ctx context.Context, repo *repository.Repository) error {
		if err := repo.LockCaller(ctx, op, callerID); err != nil {
			return err
		}
		movies, err := s.resolver.ResolveAll(ctx, repo.Movies, tmdbIDs)
		if err != nil {
			return err
		}
		if err := repo.Watchlist.Replace(ctx, callerID, movieIDs(movies)); err != nil {
			return err
		}
		watchlist = domain.Watchlist{UserID: callerID, Movies: movies}
		return nil
	})
	if err != nil {
		return domain.Watchlist{}, err
	}
	return watchlist, nil
}

func (s *Service) requireUser(ctx context.Context, op, userID string) error {
	if _, err := s.repo.Users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.E(domain.KindResourceNotFound, op, userID, nil)
		}
		return repository.Classify(op, err)
	}
	return nil
}

// ownedList locks the caller and the list, then checks ownership.
func ownedList(ctx context.Context, repo *repository.Repository, op, userID, listID string) (domain.List, error) {
	if err := repo.LockCaller(ctx, op, userID); err != nil {
		return domain.List{}, err
	}
	list, err := repo.Lists.LockByID(ctx, listID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.List{}, domain.E(domain.KindResourceNotFound, op, listID, nil)
		}
		return domain.List{}, err
	}
	if list.UserID != userID {
		return domain.List{}, domain.E(domain.KindNotAuthorized, op, listID, nil)
	}
	return list, nil
}

func movieIDs(movies []domain.Movie) []string {
	ids := make([]string, len(movies))
	for i, m := range movies {
		ids[i] = m.ID
	}
	return ids
}
