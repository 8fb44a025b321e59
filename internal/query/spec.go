package query

import (
	"fmt"

	"kbapi/internal/model"
)

// Sort field allow-list. Anything else silently falls back to created_at.
const (
	SortCreatedAt     = "created_at"
	SortUpdatedAt     = "updated_at"
	SortTitle         = "title"
	SortAverageRating = "average_rating"
)

var sortColumns = map[string]string{
	SortCreatedAt:     "d.created_at",
	SortUpdatedAt:     "d.updated_at",
	SortTitle:         "d.title",
	SortAverageRating: "d.average_rating",
}

// Sort is a normalized sort directive.
type Sort struct {
	Field string
	Desc  bool
}

// ParseSort normalizes a caller-supplied sort field and direction.
// Unknown fields fall back to created_at; direction is descending unless
// order is exactly "asc".
func ParseSort(field, order string) Sort {
	if _, ok := sortColumns[field]; !ok {
		field = SortCreatedAt
	}
	return Sort{Field: field, Desc: order != "asc"}
}

// OrderBySQL renders the ORDER BY clause. The store-assigned id is always
// appended as a tiebreak so the overall order is total: repeated identical
// queries over an unchanged dataset return identical page contents.
func (s Sort) OrderBySQL() string {
	col, ok := sortColumns[s.Field]
	if !ok {
		col = sortColumns[SortCreatedAt]
	}
	dir := "ASC"
	if s.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s %s, d.id ASC", col, dir)
}

// Page is 1-based pagination with a bounded size.
type Page struct {
	Number int
	Size   int
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// NewPage validates pagination bounds; out-of-range values are errors,
// never coerced.
func NewPage(number, size int) (Page, error) {
	if number < 1 {
		return Page{}, model.NewValidationError("page", "must be >= 1")
	}
	if size < 1 || size > MaxPageSize {
		return Page{}, model.NewValidationError("limit", fmt.Sprintf("must be between 1 and %d", MaxPageSize))
	}
	return Page{Number: number, Size: size}, nil
}

// Offset is the number of rows skipped before this page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Spec is one complete, validated query plan: access predicate, filters,
// sort, and pagination, composed once and handed to the store.
type Spec struct {
	// Visible is nil only for owner-scoped queries where the visibility
	// predicate would be redundant (an owner always sees own documents).
	Visible *Visibility
	Filters Filters
	Sort    Sort
	Page    Page
}

// WhereSQL renders the combined WHERE conjunction and its arguments.
func (s Spec) WhereSQL() (string, []any) {
	var b Builder
	if s.Visible != nil {
		s.Visible.AppendSQL(&b)
	}
	s.Filters.AppendSQL(&b)
	return b.Where(), b.Args()
}
