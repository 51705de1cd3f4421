package repository

import (
	"context"
	"fmt"

	"github.com/Clark-Hu/movielog/internal/domain"
	"github.com/Clark-Hu/movielog/internal/store"
)

// WatchlistRepository persists the implicit per-user watchlist.
type WatchlistRepository struct {
	db store.DBTX
}

const prefixedMovieColumns = `
    m.id,
    m.tmdb_id,
    m.name,
    m.description,
    m.photo,
    m.release_date,
    m.rating_count,
    m.rating_sum,
    m.rating_average,
    m.created_at,
    m.updated_at
`

// Movies pages through a user's watchlist in insertion order.
func (r *WatchlistRepository) Movies(ctx context.Context, userID string, limit, offset int) ([]domain.Movie, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM movies m
        JOIN watchlist_movies w ON w.movie_id = m.id
        WHERE w.user_id = $1
        ORDER BY w.position
        LIMIT $2 OFFSET $3
    `, prefixedMovieColumns)
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanMovie)
}

func (r *WatchlistRepository) Count(ctx context.Context, userID string) (int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM watchlist_movies WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("count watchlist: %w", err)
	}
	return total, nil
}

// Replace rewrites the watchlist of a user, keeping the given order.
func (r *WatchlistRepository) Replace(ctx context.Context, userID string, movieIDs []string) error {
	if _, err := r.DeleteByUser(ctx, userID); err != nil {
		return err
	}
	if len(movieIDs) == 0 {
		return nil
	}
	const query = `
        INSERT INTO watchlist_movies (user_id, movie_id, position)
        SELECT $1, movie_id, ord::int
        FROM unnest($2::uuid[]) WITH ORDINALITY AS t(movie_id, ord)
    `
	if _, err := r.db.Exec(ctx, query, userID, movieIDs); err != nil {
		return fmt.Errorf("insert watchlist movies: %w", err)
	}
	return nil
}

func (r *WatchlistRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM watchlist_movies WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("clear watchlist: %w", err)
	}
	return tag.RowsAffected(), nil
}
