// Package catalog maps external TMDB ids onto local movie rows, creating them
// on first reference.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Clark-Hu/movielog/internal/domain"
	"github.com/Clark-Hu/movielog/internal/repository"
)

// Provider fetches descriptors for unknown movies.
type Provider interface {
	FetchMovie(ctx context.Context, tmdbID string) (domain.MovieDescriptor, error)
}

// MovieStore is the slice of the movies repository the resolver needs. Pass a
// transaction-bound store to make creation part of the caller's transaction.
type MovieStore interface {
	GetByTMDBID(ctx context.Context, tmdbID string) (domain.Movie, error)
	InsertIfAbsent(ctx context.Context, desc domain.MovieDescriptor) (domain.Movie, bool, error)
}

// Resolver implements get-or-create of movies keyed by TMDB id.
type Resolver struct {
	provider Provider
	logger   *slog.Logger
}

func NewResolver(provider Provider, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{provider: provider, logger: logger.With("component", "catalog")}
}

// Lookup returns the local movie for tmdbID without contacting the provider.
func (r *Resolver) Lookup(ctx context.Context, movies MovieStore, tmdbID string) (domain.Movie, error) {
	movie, err := movies.GetByTMDBID(ctx, tmdbID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Movie{}, domain.E(domain.KindMovieNotFound, "catalog.lookup", tmdbID, nil)
		}
		return domain.Movie{}, fmt.Errorf("lookup movie %s: %w", tmdbID, err)
	}
	return movie, nil
}

// Resolve returns the local movie for tmdbID, fetching and storing it when it
// is not known yet. Concurrent resolvers of the same id converge on a single
// row: the loser of the insert race re-reads the winner's row.
func (r *Resolver) Resolve(ctx context.Context, movies MovieStore, tmdbID string) (domain.Movie, error) {
	movie, err := movies.GetByTMDBID(ctx, tmdbID)
	if err == nil {
		return movie, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.Movie{}, fmt.Errorf("resolve movie %s: %w", tmdbID, err)
	}

	desc, err := r.provider.FetchMovie(ctx, tmdbID)
	if err != nil {
		r.logger.Debug("provider fetch failed", "tmdb_id", tmdbID, "error", err)
		return domain.Movie{}, domain.E(domain.KindMovieNotFound, "catalog.resolve", tmdbID, err)
	}
	// The local key is always the id the caller asked for.
	desc.TMDBID = tmdbID

	movie, inserted, err := movies.InsertIfAbsent(ctx, desc)
	if err != nil {
		return domain.Movie{}, fmt.Errorf("store movie %s: %w", tmdbID, err)
	}
	if inserted {
		r.logger.Info("movie created", "tmdb_id", tmdbID, "movie_id", movie.ID)
		return movie, nil
	}

	movie, err = movies.GetByTMDBID(ctx, tmdbID)
	if err != nil {
		return domain.Movie{}, fmt.Errorf("re-read movie %s: %w", tmdbID, err)
	}
	return movie, nil
}

// ResolveAll resolves each distinct id in order of first appearance.
func (r *Resolver) ResolveAll(ctx context.Context, movies MovieStore, tmdbIDs []string) ([]domain.Movie, error) {
	seen := make(map[string]struct{}, len(tmdbIDs))
	out := make([]domain.Movie, 0, len(tmdbIDs))
	for _, id := range tmdbIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		movie, err := r.Resolve(ctx, movies, id)
		if err != nil {
			return nil, err
		}
		out = append(out, movie)
	}
	return out, nil
}
