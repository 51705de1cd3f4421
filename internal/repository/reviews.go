package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/movielog/internal/domain"
	"github.com/Clark-Hu/movielog/internal/store"
)

// ReviewsRepository persists text reviews.
type ReviewsRepository struct {
	db store.DBTX
}

const reviewColumns = `id, user_id, movie_id, title, body, created_at, updated_at`

// ReviewCreateParams captures the payload required to insert a review.
type ReviewCreateParams struct {
	UserID  string
	MovieID string
	Title   string
	Body    string
}

// Create inserts a review; a duplicate (user, movie) pair yields ErrDuplicate.
func (r *ReviewsRepository) Create(ctx context.Context, params ReviewCreateParams) (domain.Review, error) {
	id, err := newID()
	if err != nil {
		return domain.Review{}, err
	}
	query := fmt.Sprintf(`
        INSERT INTO reviews (id, user_id, movie_id, title, body)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING %s
    `, reviewColumns)
	review, err := scanReview(r.db.QueryRow(ctx, query, id, params.UserID, params.MovieID, params.Title, params.Body))
	return review, translateErr(err)
}

func (r *ReviewsRepository) GetByID(ctx context.Context, id string) (domain.Review, error) {
	if !IsValidID(id) {
		return domain.Review{}, ErrNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE id = $1`, reviewColumns)
	review, err := scanReview(r.db.QueryRow(ctx, query, id))
	return review, translateErr(err)
}

func (r *ReviewsRepository) GetByUserAndMovie(ctx context.Context, userID, movieID string) (domain.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE user_id = $1 AND movie_id = $2`, reviewColumns)
	review, err := scanReview(r.db.QueryRow(ctx, query, userID, movieID))
	return review, translateErr(err)
}

// Update replaces title and body of a review.
func (r *ReviewsRepository) Update(ctx context.Context, id, title, body string) (domain.Review, error) {
	query := fmt.Sprintf(`
        UPDATE reviews
        SET title = $2, body = $3, updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, reviewColumns)
	review, err := scanReview(r.db.QueryRow(ctx, query, id, title, body))
	return review, translateErr(err)
}

func (r *ReviewsRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByMovie pages through the reviews of a movie, newest first.
func (r *ReviewsRepository) ListByMovie(ctx context.Context, movieID string, limit, offset int) ([]domain.Review, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM reviews
        WHERE movie_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2 OFFSET $3
    `, reviewColumns)
	rows, err := r.db.Query(ctx, query, movieID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanReview)
}

func (r *ReviewsRepository) CountByMovie(ctx context.Context, movieID string) (int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM reviews WHERE movie_id = $1`, movieID).Scan(&total); err != nil {
		return 0, fmt.Errorf("count reviews: %w", err)
	}
	return total, nil
}

// ListByUserPaged pages through the reviews a user wrote, newest first.
func (r *ReviewsRepository) ListByUserPaged(ctx context.Context, userID string, limit, offset int) ([]domain.Review, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM reviews
        WHERE user_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2 OFFSET $3
    `, reviewColumns)
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanReview)
}

func (r *ReviewsRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM reviews WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("count reviews: %w", err)
	}
	return total, nil
}

func (r *ReviewsRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM reviews WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanReview(row pgx.Row) (domain.Review, error) {
	var review domain.Review
	err := row.Scan(
		&review.ID,
		&review.UserID,
		&review.MovieID,
		&review.Title,
		&review.Body,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		return domain.Review{}, err
	}
	return review, nil
}
