// Package gormrepository implements repository.Repository over
// gorm/postgres. Rank maintenance is expressed as bounded UPDATEs over
// ordering windows, so a move never renumbers a whole partition.
package gormrepository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"dealflow/internal/apperr"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// conn returns tx when the caller is inside a transaction, the base
// connection otherwise.
func (s *Store) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}

// ClassifyError maps storage failures onto the error taxonomy.
// Serialization failures and deadlocks surface as retryable conflicts.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return apperr.Wrap(apperr.CodeConflict, "concurrent modification", err)
		case "23505": // unique_violation
			return apperr.Wrap(apperr.CodeConflict, "conflicting write", err)
		}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Wrap(apperr.CodeNotFound, "record not found", err)
	}
	return apperr.Wrap(apperr.CodeInternal, "storage failure", err)
}
