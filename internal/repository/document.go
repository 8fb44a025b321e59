package repository

import (
	"context"

	"kbapi/internal/model"
	"kbapi/internal/query"
)

// DocumentRepository defines data access for documents using SQL queries only.
// No business logic here, strictly persistence operations. Reads return
// DocumentView rows with the owner's display name joined in; a missing owner
// yields the Unknown sentinel, never an error.
type DocumentRepository interface {
	// Create inserts a new document record with a zeroed rating triple.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns one document joined with its owner. OwnerGroup on the
	// returned view reflects the owner's current group for in-process
	// visibility checks.
	FindByID(ctx context.Context, id string) (*model.DocumentView, error)

	// Search executes a composed query plan and returns the page plus the
	// total row count under the same predicate.
	Search(ctx context.Context, spec query.Spec) (*PageResult[model.DocumentView], error)

	// Count returns the cardinality of the predicate only.
	Count(ctx context.Context, spec query.Spec) (int, error)

	// Update persists owner-editable fields (title, summary, tags,
	// visibility, updated_at). It never touches the rating triple.
	Update(ctx context.Context, doc *model.Document) error

	// Delete removes a document; rating rows cascade at the schema level.
	Delete(ctx context.Context, id string) error

	// TagCounts aggregates tag frequencies across documents matching the
	// visibility predicate, most frequent first, ties by tag text.
	TagCounts(ctx context.Context, vis query.Visibility, limit int) ([]model.TagCount, error)
}
