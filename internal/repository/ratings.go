package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/movielog/internal/domain"
	"github.com/Clark-Hu/movielog/internal/store"
)

// RatingsRepository provides helpers for movie ratings.
type RatingsRepository struct {
	db store.DBTX
}

const ratingColumns = `id, user_id, movie_id, value, created_at, updated_at`

// RatingCreateParams captures the payload required to insert a rating.
type RatingCreateParams struct {
	UserID  string
	MovieID string
	Value   int
}

// Create inserts a rating. A second rating for the same (user, movie) pair
// fails with ErrDuplicate.
func (r *RatingsRepository) Create(ctx context.Context, params RatingCreateParams) (domain.Rating, error) {
	id, err := newID()
	if err != nil {
		return domain.Rating{}, err
	}
	query := fmt.Sprintf(`
        INSERT INTO ratings (id, user_id, movie_id, value)
        VALUES ($1,$2,$3,$4)
        RETURNING %s
    `, ratingColumns)

	rating, err := scanRating(r.db.QueryRow(ctx, query, id, params.UserID, params.MovieID, params.Value))
	return rating, translateErr(err)
}

// GetByID fetches a rating by id.
func (r *RatingsRepository) GetByID(ctx context.Context, id string) (domain.Rating, error) {
	if !IsValidID(id) {
		return domain.Rating{}, ErrNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM ratings WHERE id = $1`, ratingColumns)
	rating, err := scanRating(r.db.QueryRow(ctx, query, id))
	return rating, translateErr(err)
}

// GetByUserAndMovie retrieves the rating a user left on a movie.
func (r *RatingsRepository) GetByUserAndMovie(ctx context.Context, userID, movieID string) (domain.Rating, error) {
	query := fmt.Sprintf(`SELECT %s FROM ratings WHERE user_id = $1 AND movie_id = $2`, ratingColumns)
	rating, err := scanRating(r.db.QueryRow(ctx, query, userID, movieID))
	return rating, translateErr(err)
}

// UpdateValue changes the stored value of a rating.
func (r *RatingsRepository) UpdateValue(ctx context.Context, id string, value int) (domain.Rating, error) {
	query := fmt.Sprintf(`
        UPDATE ratings
        SET value = $2, updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, ratingColumns)
	rating, err := scanRating(r.db.QueryRow(ctx, query, id, value))
	return rating, translateErr(err)
}

// Delete removes a rating.
func (r *RatingsRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM ratings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser returns every rating of a user ordered by movie id, which is
// also the order bulk reconciliation locks movies in.
func (r *RatingsRepository) ListByUser(ctx context.Context, userID string) ([]domain.Rating, error) {
	query := fmt.Sprintf(`SELECT %s FROM ratings WHERE user_id = $1 ORDER BY movie_id, id`, ratingColumns)
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanRating)
}

// ListByUserPaged pages through a user's ratings, newest first. Ratings made
// in the same instant put the higher value first.
func (r *RatingsRepository) ListByUserPaged(ctx context.Context, userID string, limit, offset int) ([]domain.Rating, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM ratings
        WHERE user_id = $1
        ORDER BY created_at DESC, value DESC, id DESC
        LIMIT $2 OFFSET $3
    `, ratingColumns)
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanRating)
}

func (r *RatingsRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM ratings WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("count ratings: %w", err)
	}
	return total, nil
}

// DeleteByUser removes every rating of a user and reports how many went away.
func (r *RatingsRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM ratings WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanRating(row pgx.Row) (domain.Rating, error) {
	var (
		rating domain.Rating
		value  int16
	)
	err := row.Scan(
		&rating.ID,
		&rating.UserID,
		&rating.MovieID,
		&value,
		&rating.CreatedAt,
		&rating.UpdatedAt,
	)
	if err != nil {
		return domain.Rating{}, err
	}
	rating.Value = int(value)
	return rating, nil
}
