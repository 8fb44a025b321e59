package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"kbapi/internal/model"
	"kbapi/internal/query"
	"kbapi/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
// Predicates arrive as validated query.Spec values; this type only renders and
// executes them.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

// viewColumns is the column list every read shares. The owner row is
// LEFT-joined so orphaned documents still page through with the sentinel
// owner name instead of failing.
const viewColumns = `
	d.id, d.owner_id, d.title, d.summary, d.tags, d.visibility,
	d.storage_path, d.file_type, d.file_size, d.created_at, d.updated_at,
	d.rating_sum, d.rating_count, d.average_rating,
	COALESCE(u.full_name, '` + model.UnknownOwnerName + `'), COALESCE(u.group_name, '')`

const fromJoined = ` FROM documents d LEFT JOIN users u ON u.id = d.owner_id `

func scanView(s interface{ Scan(...any) error }) (*model.DocumentView, error) {
	var v model.DocumentView
	var tags pq.StringArray
	if err := s.Scan(
		&v.ID,
		&v.OwnerID,
		&v.Title,
		&v.Summary,
		&tags,
		&v.Visibility,
		&v.StoragePath,
		&v.Kind,
		&v.Size,
		&v.CreatedAt,
		&v.UpdatedAt,
		&v.RatingSum,
		&v.RatingCount,
		&v.AverageRating,
		&v.OwnerName,
		&v.OwnerGroup,
	); err != nil {
		return nil, err
	}
	v.Tags = tags
	return &v, nil
}

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents (
			id, owner_id, title, summary, tags, visibility,
			storage_path, file_type, file_size, created_at, updated_at,
			rating_sum, rating_count, average_rating
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, 0, 0)
		RETURNING id, created_at, updated_at
	`
	out := *doc
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.OwnerID,
		doc.Title,
		doc.Summary,
		pq.Array(doc.Tags),
		doc.Visibility,
		doc.StoragePath,
		doc.Kind,
		doc.Size,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err := row.Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return nil, err
	}
	out.RatingSum, out.RatingCount, out.AverageRating = 0, 0, 0
	return &out, nil
}

// FindByID fetches a single document joined with its owner.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.DocumentView, error) {
	q := "SELECT" + viewColumns + fromJoined + "WHERE d.id = $1"
	return scanView(r.db.QueryRowContext(ctx, q, id))
}

// Search renders one composed query plan into a count plus a page fetch
// sharing the same WHERE fragment, so listing and totals never diverge.
func (r *DocumentPostgres) Search(ctx context.Context, spec query.Spec) (*repository.PageResult[model.DocumentView], error) {
	where, args := spec.WhereSQL()

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*)"+fromJoined+"WHERE "+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	limitPos := len(args) + 1
	q := fmt.Sprintf("SELECT%s%sWHERE %s %s LIMIT $%d OFFSET $%d",
		viewColumns, fromJoined, where, spec.Sort.OrderBySQL(), limitPos, limitPos+1)
	args = append(args, spec.Page.Size, spec.Page.Offset())

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.DocumentView, 0)
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.DocumentView]{Items: items, Total: total}, nil
}

// Count returns the cardinality of the predicate only.
func (r *DocumentPostgres) Count(ctx context.Context, spec query.Spec) (int, error) {
	where, args := spec.WhereSQL()
	var total int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*)"+fromJoined+"WHERE "+where, args...).Scan(&total)
	return total, err
}

// Update persists the owner-editable fields. The rating triple is
// deliberately absent from the statement.
func (r *DocumentPostgres) Update(ctx context.Context, doc *model.Document) error {
	const q = `
		UPDATE documents
		SET title = $1, summary = $2, tags = $3, visibility = $4, updated_at = $5
		WHERE id = $6
	`
	res, err := r.db.ExecContext(ctx, q,
		doc.Title,
		doc.Summary,
		pq.Array(doc.Tags),
		doc.Visibility,
		doc.UpdatedAt,
		doc.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a document by ID; the ratings FK cascades.
func (r *DocumentPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM documents WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// TagCounts flattens tags across visible documents and ranks them by
// frequency, ties broken by tag text for a deterministic census.
func (r *DocumentPostgres) TagCounts(ctx context.Context, vis query.Visibility, limit int) ([]model.TagCount, error) {
	var b query.Builder
	vis.AppendSQL(&b)

	q := fmt.Sprintf(`
		SELECT t.tag, COUNT(*)
		FROM documents d
		LEFT JOIN users u ON u.id = d.owner_id
		CROSS JOIN LATERAL unnest(d.tags) AS t(tag)
		WHERE %s
		GROUP BY t.tag
		ORDER BY COUNT(*) DESC, t.tag ASC
		LIMIT $%d`, b.Where(), len(b.Args())+1)

	rows, err := r.db.QueryContext(ctx, q, append(b.Args(), limit)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := make([]model.TagCount, 0)
	for rows.Next() {
		var tc model.TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, err
		}
		tags = append(tags, tc)
	}
	return tags, rows.Err()
}
