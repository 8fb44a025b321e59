package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kbapi/internal/model"
	"kbapi/internal/repository"
)

// RatingPostgres is a PostgreSQL implementation of repository.RatingRepository.
//
// Submit and Remove run as single transactions: the (document, user) rating
// row is locked FOR UPDATE, mutated, and the document's cached triple is
// moved by relative increments computed server-side in the same statement.
// Writers for different documents touch disjoint rows and never block each
// other; writers for the same document serialize on the row locks, so the
// triple always equals the sum/count of the surviving rating rows.
type RatingPostgres struct {
	db *sql.DB
}

// NewRatingPostgres creates a new RatingPostgres repository.
func NewRatingPostgres(db *sql.DB) *RatingPostgres {
	return &RatingPostgres{db: db}
}

var _ repository.RatingRepository = (*RatingPostgres)(nil)

// applyAggregate moves the cached triple by (sumDelta, countDelta). The
// average is recomputed from the incremented columns inside the statement,
// never from values read earlier by the caller.
const applyAggregate = `
	UPDATE documents SET
		rating_sum = rating_sum + $1,
		rating_count = GREATEST(rating_count + $2, 0),
		average_rating = CASE WHEN GREATEST(rating_count + $2, 0) > 0
			THEN (rating_sum + $1)::double precision / GREATEST(rating_count + $2, 0)
			ELSE 0 END
	WHERE id = $3
`

// FindByDocumentAndUser returns the caller's rating or sql.ErrNoRows.
func (r *RatingPostgres) FindByDocumentAndUser(ctx context.Context, documentID, userID string) (*model.Rating, error) {
	const q = `
		SELECT id, document_id, user_id, value, created_at
		FROM ratings
		WHERE document_id = $1 AND user_id = $2
	`
	var rt model.Rating
	err := r.db.QueryRowContext(ctx, q, documentID, userID).Scan(
		&rt.ID, &rt.DocumentID, &rt.UserID, &rt.Value, &rt.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

// Submit upserts the rating row and applies the matching aggregate delta
// atomically. A failure at any point rolls back the whole unit.
func (r *RatingPostgres) Submit(ctx context.Context, documentID, userID string, value int) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var old int
	err = tx.QueryRowContext(ctx,
		`SELECT value FROM ratings WHERE document_id = $1 AND user_id = $2 FOR UPDATE`,
		documentID, userID,
	).Scan(&old)

	now := time.Now().UTC()
	var created bool
	var sumDelta, countDelta int

	switch {
	case errors.Is(err, sql.ErrNoRows):
		created = true
		sumDelta, countDelta = value, 1
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ratings (id, document_id, user_id, value, created_at) VALUES ($1, $2, $3, $4, $5)`,
			uuid.NewString(), documentID, userID, value, now,
		); err != nil {
			return false, fmt.Errorf("insert rating: %w", err)
		}
	case err != nil:
		return false, fmt.Errorf("lock rating: %w", err)
	default:
		sumDelta, countDelta = value-old, 0
		if _, err := tx.ExecContext(ctx,
			`UPDATE ratings SET value = $1, created_at = $2 WHERE document_id = $3 AND user_id = $4`,
			value, now, documentID, userID,
		); err != nil {
			return false, fmt.Errorf("update rating: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, applyAggregate, sumDelta, countDelta, documentID); err != nil {
		return false, fmt.Errorf("apply aggregate: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

// Remove deletes the rating row and rolls the aggregate back atomically.
func (r *RatingPostgres) Remove(ctx context.Context, documentID, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var old int
	err = tx.QueryRowContext(ctx,
		`SELECT value FROM ratings WHERE document_id = $1 AND user_id = $2 FOR UPDATE`,
		documentID, userID,
	).Scan(&old)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("lock rating: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM ratings WHERE document_id = $1 AND user_id = $2`,
		documentID, userID,
	); err != nil {
		return fmt.Errorf("delete rating: %w", err)
	}

	if _, err := tx.ExecContext(ctx, applyAggregate, -old, -1, documentID); err != nil {
		return fmt.Errorf("apply aggregate: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
