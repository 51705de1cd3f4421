package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/movielog/internal/domain"
	"github.com/Clark-Hu/movielog/internal/store"
)

// MoviesRepository provides persistence helpers for movie entities.
type MoviesRepository struct {
	db store.DBTX
}

const movieColumns = `
    id,
    tmdb_id,
    name,
    description,
    photo,
    release_date,
    rating_count,
    rating_sum,
    rating_average,
    created_at,
    updated_at
`

// MovieListFilters encapsulates search and pagination options.
type MovieListFilters struct {
	Query  *string
	Limit  int
	Offset int
}

// InsertIfAbsent stores the descriptor unless a movie with the same TMDB id
// already exists. inserted is false when another writer got there first; the
// caller should then read the existing row.
func (r *MoviesRepository) InsertIfAbsent(ctx context.Context, desc domain.MovieDescriptor) (movie domain.Movie, inserted bool, err error) {
	id, err := newID()
	if err != nil {
		return domain.Movie{}, false, err
	}

	query := fmt.Sprintf(`
        INSERT INTO movies (id, tmdb_id, name, description, photo, release_date)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (tmdb_id) DO NOTHING
        RETURNING %s
    `, movieColumns)

	row := r.db.QueryRow(ctx, query, id, desc.TMDBID, desc.Name, desc.Description, desc.Photo, desc.ReleaseDate)
	movie, err = scanMovie(row)
	if err != nil {
		if err = translateErr(err); err == ErrNotFound {
			return domain.Movie{}, false, nil
		}
		return domain.Movie{}, false, err
	}
	return movie, true, nil
}

// GetByID fetches a movie by its identifier.
func (r *MoviesRepository) GetByID(ctx context.Context, id string) (domain.Movie, error) {
	if !IsValidID(id) {
		return domain.Movie{}, ErrNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM movies WHERE id = $1`, movieColumns)
	movie, err := scanMovie(r.db.QueryRow(ctx, query, id))
	return movie, translateErr(err)
}

// GetByTMDBID fetches a movie by its external provider id.
func (r *MoviesRepository) GetByTMDBID(ctx context.Context, tmdbID string) (domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies WHERE tmdb_id = $1`, movieColumns)
	movie, err := scanMovie(r.db.QueryRow(ctx, query, tmdbID))
	return movie, translateErr(err)
}

// GetByIDs fetches the movies with the given ids, keyed by id. Unknown ids
// are absent from the result.
func (r *MoviesRepository) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Movie, error) {
	out := make(map[string]domain.Movie, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM movies WHERE id = ANY($1::uuid[])`, movieColumns)
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	movies, err := collect(rows, scanMovie)
	if err != nil {
		return nil, err
	}
	for _, movie := range movies {
		out[movie.ID] = movie
	}
	return out, nil
}

// LockByID re-reads a movie with a row lock held until the transaction ends.
// Aggregate read-modify-write sequences must go through this.
func (r *MoviesRepository) LockByID(ctx context.Context, id string) (domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies WHERE id = $1 FOR UPDATE`, movieColumns)
	movie, err := scanMovie(r.db.QueryRow(ctx, query, id))
	return movie, translateErr(err)
}

// UpdateAggregate overwrites the rating aggregate of a movie.
func (r *MoviesRepository) UpdateAggregate(ctx context.Context, id string, agg domain.RatingAggregate) (domain.Movie, error) {
	query := fmt.Sprintf(`
        UPDATE movies
        SET rating_count = $2,
            rating_sum = $3,
            rating_average = $4,
            updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, movieColumns)

	movie, err := scanMovie(r.db.QueryRow(ctx, query, id, agg.Count, agg.Sum, agg.Average))
	return movie, translateErr(err)
}

// List returns movies ranked by average rating, then release date.
func (r *MoviesRepository) List(ctx context.Context, filters MovieListFilters) ([]domain.Movie, error) {
	if filters.Limit <= 0 {
		filters.Limit = 10
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	where, args := movieFilterClause(filters)
	args = append(args, filters.Limit, filters.Offset)

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(movieColumns)
	b.WriteString(" FROM movies")
	b.WriteString(where)
	b.WriteString(" ORDER BY rating_average DESC, release_date DESC, id")
	fmt.Fprintf(&b, " LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanMovie)
}

// Count returns the number of movies matching the filters.
func (r *MoviesRepository) Count(ctx context.Context, filters MovieListFilters) (int, error) {
	where, args := movieFilterClause(filters)
	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM movies"+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count movies: %w", err)
	}
	return total, nil
}

func movieFilterClause(filters MovieListFilters) (string, []any) {
	if filters.Query == nil || strings.TrimSpace(*filters.Query) == "" {
		return "", nil
	}
	return " WHERE name ILIKE $1", []any{"%" + strings.TrimSpace(*filters.Query) + "%"}
}

func scanMovie(row pgx.Row) (domain.Movie, error) {
	var movie domain.Movie
	err := row.Scan(
		&movie.ID,
		&movie.TMDBID,
		&movie.Name,
		&movie.Description,
		&movie.Photo,
		&movie.ReleaseDate,
		&movie.Rating.Count,
		&movie.Rating.Sum,
		&movie.Rating.Average,
		&movie.CreatedAt,
		&movie.UpdatedAt,
	)
	if err != nil {
		return domain.Movie{}, err
	}
	return movie, nil
}
