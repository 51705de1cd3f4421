package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/movielog/internal/domain"
	"github.com/Clark-Hu/movielog/internal/store"
)

// ListsRepository persists user-curated movie lists.
type ListsRepository struct {
	db store.DBTX
}

const listColumns = `id, user_id, name, description, created_at, updated_at`

// ListParams carries the editable fields of a list.
type ListParams struct {
	Name        string
	Description string
}

func (r *ListsRepository) Create(ctx context.Context, userID string, params ListParams) (domain.List, error) {
	id, err := newID()
	if err != nil {
		return domain.List{}, err
	}
	query := fmt.Sprintf(`
        INSERT INTO lists (id, user_id, name, description)
        VALUES ($1,$2,$3,$4)
        RETURNING %s
    `, listColumns)
	list, err := scanList(r.db.QueryRow(ctx, query, id, userID, params.Name, params.Description))
	return list, translateErr(err)
}

// GetByID returns a list header without its movies.
func (r *ListsRepository) GetByID(ctx context.Context, id string) (domain.List, error) {
	if !IsValidID(id) {
		return domain.List{}, ErrNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM lists WHERE id = $1`, listColumns)
	list, err := scanList(r.db.QueryRow(ctx, query, id))
	return list, translateErr(err)
}

// LockByID reads a list header with a row lock.
func (r *ListsRepository) LockByID(ctx context.Context, id string) (domain.List, error) {
	if !IsValidID(id) {
		return domain.List{}, ErrNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM lists WHERE id = $1 FOR UPDATE`, listColumns)
	list, err := scanList(r.db.QueryRow(ctx, query, id))
	return list, translateErr(err)
}

// ListByUser pages through a user's lists, newest first.
func (r *ListsRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.List, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM lists
        WHERE user_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2 OFFSET $3
    `, listColumns)
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanList)
}

func (r *ListsRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM lists WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("count lists: %w", err)
	}
	return total, nil
}

func (r *ListsRepository) Update(ctx context.Context, id string, params ListParams) (domain.List, error) {
	query := fmt.Sprintf(`
        UPDATE lists
        SET name = $2, description = $3, updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, listColumns)
	list, err := scanList(r.db.QueryRow(ctx, query, id, params.Name, params.Description))
	return list, translateErr(err)
}

// ReplaceMovies rewrites the membership of a list, keeping the given order.
func (r *ListsRepository) ReplaceMovies(ctx context.Context, listID string, movieIDs []string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM list_movies WHERE list_id = $1`, listID); err != nil {
		return fmt.Errorf("clear list movies: %w", err)
	}
	if len(movieIDs) == 0 {
		return nil
	}
	const query = `
        INSERT INTO list_movies (list_id, movie_id, position)
        SELECT $1, movie_id, ord::int
        FROM unnest($2::uuid[]) WITH ORDINALITY AS t(movie_id, ord)
    `
	if _, err := r.db.Exec(ctx, query, listID, movieIDs); err != nil {
		return fmt.Errorf("insert list movies: %w", err)
	}
	return nil
}

// Movies returns the movies of a list in list order.
func (r *ListsRepository) Movies(ctx context.Context, listID string) ([]domain.Movie, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM movies m
        JOIN list_movies lm ON lm.movie_id = m.id
        WHERE lm.list_id = $1
        ORDER BY lm.position
    `, prefixedMovieColumns)
	rows, err := r.db.Query(ctx, query, listID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanMovie)
}

func (r *ListsRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM lists WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByUser removes all lists of a user; memberships cascade.
func (r *ListsRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM lists WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanList(row pgx.Row) (domain.List, error) {
	var list domain.List
	err := row.Scan(
		&list.ID,
		&list.UserID,
		&list.Name,
		&list.Description,
		&list.CreatedAt,
		&list.UpdatedAt,
	)
	if err != nil {
		return domain.List{}, err
	}
	return list, nil
}
