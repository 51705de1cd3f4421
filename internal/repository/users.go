package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/movielog/internal/domain"
	"github.com/Clark-Hu/movielog/internal/store"
)

// UsersRepository persists accounts.
type UsersRepository struct {
	db store.DBTX
}

const userColumns = `id, username, password_hash, bio, created_at, updated_at`

// UserCreateParams carries an already hashed password.
type UserCreateParams struct {
	Username     string
	PasswordHash string
	Bio          string
}

// UserUpdateParams leaves fields untouched when nil.
type UserUpdateParams struct {
	Bio          *string
	PasswordHash *string
}

// Create inserts a user; a taken username yields ErrDuplicate.
func (r *UsersRepository) Create(ctx context.Context, params UserCreateParams) (domain.User, error) {
	id, err := newID()
	if err != nil {
		return domain.User{}, err
	}
	query := fmt.Sprintf(`
        INSERT INTO users (id, username, password_hash, bio)
        VALUES ($1,$2,$3,$4)
        RETURNING %s
    `, userColumns)
	user, err := scanUser(r.db.QueryRow(ctx, query, id, params.Username, params.PasswordHash, params.Bio))
	return user, translateErr(err)
}

func (r *UsersRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	if !IsValidID(id) {
		return domain.User{}, ErrNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	return user, translateErr(err)
}

func (r *UsersRepository) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE username = $1`, userColumns)
	user, err := scanUser(r.db.QueryRow(ctx, query, username))
	return user, translateErr(err)
}

// LockByID reads a user and holds a row lock until the transaction ends.
func (r *UsersRepository) LockByID(ctx context.Context, id string) (domain.User, error) {
	if !IsValidID(id) {
		return domain.User{}, ErrNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1 FOR UPDATE`, userColumns)
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	return user, translateErr(err)
}

// LockKeyShare takes a KEY SHARE lock on the user row. Every write made on a
// user's behalf takes it first, so a concurrent account deletion (which holds
// FOR UPDATE) is serialized ahead of or behind the whole write.
func (r *UsersRepository) LockKeyShare(ctx context.Context, id string) error {
	if !IsValidID(id) {
		return ErrNotFound
	}
	var locked string
	err := r.db.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR KEY SHARE`, id).Scan(&locked)
	return translateErr(err)
}

// Update applies the non-nil fields of params.
func (r *UsersRepository) Update(ctx context.Context, id string, params UserUpdateParams) (domain.User, error) {
	if !IsValidID(id) {
		return domain.User{}, ErrNotFound
	}
	query := fmt.Sprintf(`
        UPDATE users
        SET bio = COALESCE($2, bio),
            password_hash = COALESCE($3, password_hash),
            updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, userColumns)
	user, err := scanUser(r.db.QueryRow(ctx, query, id, params.Bio, params.PasswordHash))
	return user, translateErr(err)
}

// Delete removes the user row. Ratings, reviews and lists must be gone first.
func (r *UsersRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Bio,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}
