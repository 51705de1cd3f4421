package repository

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Clark-Hu/movielog/internal/store"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate indicates a unique constraint rejected the write.
	ErrDuplicate = errors.New("repository: duplicate key")
)

const uniqueViolation = "23505"

// Repository aggregates all domain-specific repositories. Every repository
// runs its statements on the same DBTX, so a Repository bound to a pgx.Tx
// keeps all reads and writes inside that transaction.
type Repository struct {
	Movies    *MoviesRepository
	Ratings   *RatingsRepository
	Reviews   *ReviewsRepository
	Users     *UsersRepository
	Lists     *ListsRepository
	Watchlist *WatchlistRepository
}

// New constructs a Repository backed by the provided store.
func New(st *store.Store) *Repository {
	return NewWithDB(st.Pool())
}

// NewWithDB builds repositories over a pool, connection or transaction.
func NewWithDB(db store.DBTX) *Repository {
	return &Repository{
		Movies:    &MoviesRepository{db: db},
		Ratings:   &RatingsRepository{db: db},
		Reviews:   &ReviewsRepository{db: db},
		Users:     &UsersRepository{db: db},
		Lists:     &ListsRepository{db: db},
		Watchlist: &WatchlistRepository{db: db},
	}
}

// WithTx returns a Repository whose statements run inside tx.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return NewWithDB(tx)
}

// IsValidID reports whether id can be used as a primary key lookup.
// Malformed ids are treated as absent rather than sent to postgres, where a
// cast failure would abort the surrounding transaction.
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id.String(), nil
}

// translateErr maps driver errors onto the repository sentinels.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

// collect drains rows with scan, closing them on return.
func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	items := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
