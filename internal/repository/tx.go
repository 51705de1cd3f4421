package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/movielog/internal/domain"
	"github.com/Clark-Hu/movielog/internal/store"
)

// TxRunner opens transactions; *store.Store implements it.
type TxRunner interface {
	WithTx(ctx context.Context, fn store.TxFunc) error
}

// InTx runs fn with a Repository bound to a fresh transaction from runner and
// classifies any failure for op.
func (r *Repository) InTx(ctx context.Context, runner TxRunner, op string, fn func(ctx context.Context, repo *Repository) error) error {
	err := runner.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, r.WithTx(tx))
	})
	if err == nil {
		return nil
	}
	return Classify(op, err)
}

// LockCaller takes the caller's user lock (see UsersRepository.LockKeyShare).
// A vanished account is treated as an invalid session.
func (r *Repository) LockCaller(ctx context.Context, op, userID string) error {
	if err := r.Users.LockKeyShare(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return domain.E(domain.KindUnauthenticated, op, "", err)
		}
		return err
	}
	return nil
}

// Classify maps a failed write onto a domain error. Errors that already
// carry a Kind pass through; duplicates become AlreadyExists and anything
// else aborts the transaction.
func Classify(op string, err error) error {
	if err == nil || domain.KindOf(err) != domain.KindUnknown {
		return err
	}
	if errors.Is(err, ErrDuplicate) {
		return domain.E(domain.KindAlreadyExists, op, "", err)
	}
	return domain.E(domain.KindTransactionAborted, op, "", err)
}
