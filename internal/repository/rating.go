package repository

import (
	"context"

	"kbapi/internal/model"
)

// RatingRepository owns the rating rows and, transactionally, the cached
// rating triple on documents. The triple is only ever moved by relative
// increments computed against the rating row state inside one transaction,
// so concurrent raters of the same document cannot lose updates and a
// failure leaves no partial aggregate write.
type RatingRepository interface {
	// FindByDocumentAndUser returns the caller's rating for a document,
	// or sql.ErrNoRows if none exists.
	FindByDocumentAndUser(ctx context.Context, documentID, userID string) (*model.Rating, error)

	// Submit creates or overwrites the (document, user) rating and applies
	// the matching sum/count/average deltas to the document in the same
	// transaction. It reports whether a new rating row was created.
	Submit(ctx context.Context, documentID, userID string, value int) (created bool, err error)

	// Remove deletes the (document, user) rating and rolls the aggregate
	// back in the same transaction. Returns sql.ErrNoRows if absent.
	Remove(ctx context.Context, documentID, userID string) error
}
