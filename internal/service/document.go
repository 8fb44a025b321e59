package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"kbapi/internal/model"
	"kbapi/internal/query"
	"kbapi/internal/repository"
	"kbapi/internal/storage"
)

const (
	maxUploadSize   = 10 << 20 // 10 MiB
	shelfLimit      = 5        // latest/popular/my defaults
	tagCensusLimit  = 50
	downloadExpires = 15 * time.Minute
)

// kindByExt is the upload allow-list. Extensions are matched lowercase,
// without the dot.
var kindByExt = map[string]model.DocumentKind{
	"pdf":  model.KindPDF,
	"doc":  model.KindDoc,
	"docx": model.KindDocx,
	"png":  model.KindImage,
	"jpg":  model.KindImage,
	"jpeg": model.KindImage,
	"gif":  model.KindImage,
}

// UploadInput is the DTO for document uploads.
type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Title       string
	Summary     string
	Tags        string // comma-separated
	Visibility  string
	Reader      io.Reader
}

// UpdateInput carries owner-editable fields. Nil means "leave unchanged".
type UpdateInput struct {
	Title      *string `json:"title"`
	Summary    *string `json:"summary"`
	Tags       *string `json:"tags"`
	Visibility *string `json:"visibility"`
}

// SearchInput carries raw search parameters straight from the query string.
type SearchInput struct {
	Query      string
	Tags       string
	DateFrom   string
	DateTo     string
	Group      string
	Visibility string
	Owner      string
	SortBy     string
	Order      string
	Page       int
	Limit      int
}

// DocumentPage is the service-level DTO for paginated documents.
type DocumentPage struct {
	Items []model.DocumentView `json:"data"`
	Total int                  `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}

// DownloadResult streams a stored file back to the caller.
type DownloadResult struct {
	Content     io.ReadCloser
	Filename    string
	ContentType string
	Size        int64
}

// DocumentService defines the catalog use cases. Every read is scoped to the
// calling principal's visibility; writes are owner-only.
type DocumentService interface {
	// Upload stores the content in object storage, saves metadata to the DB,
	// and rolls the blob back if the DB save fails.
	Upload(ctx context.Context, p model.Principal, in UploadInput) (*model.Document, error)

	// Get returns one document if the principal may see it.
	Get(ctx context.Context, p model.Principal, id string) (*model.DocumentView, error)

	// Update modifies owner-editable fields and refreshes updated_at.
	Update(ctx context.Context, p model.Principal, id string, in UpdateInput) (*model.DocumentView, error)

	// Delete removes the blob and the record; ratings cascade.
	Delete(ctx context.Context, p model.Principal, id string) error

	// Download streams the stored file after a visibility check.
	Download(ctx context.Context, p model.Principal, id string) (*DownloadResult, error)

	// DownloadURL returns a short-lived presigned URL for the stored file.
	DownloadURL(ctx context.Context, p model.Principal, id string) (string, error)

	// List pages through every document visible to the principal, newest first.
	List(ctx context.Context, p model.Principal, page, limit int) (*DocumentPage, error)

	// Latest returns the most recently created visible documents.
	Latest(ctx context.Context, p model.Principal, limit int) ([]model.DocumentView, error)

	// Popular returns visible documents by average rating, best first.
	Popular(ctx context.Context, p model.Principal, limit int) ([]model.DocumentView, error)

	// Mine returns the principal's own documents, newest first.
	Mine(ctx context.Context, p model.Principal, limit int) ([]model.DocumentView, error)

	// Search runs the full filter set with sort and pagination.
	Search(ctx context.Context, p model.Principal, in SearchInput) (*DocumentPage, error)

	// CountSearch returns only the cardinality of a search predicate.
	CountSearch(ctx context.Context, p model.Principal, in SearchInput) (int, error)

	// TagCensus aggregates tag frequencies over visible documents.
	TagCensus(ctx context.Context, p model.Principal, limit int) ([]model.TagCount, error)
}

type documentService struct {
	store storage.Storage
	docs  repository.DocumentRepository
	users repository.UserRepository
}

// NewDocumentService constructs a DocumentService.
func NewDocumentService(store storage.Storage, docs repository.DocumentRepository, users repository.UserRepository) DocumentService {
	return &documentService{store: store, docs: docs, users: users}
}

func (s *documentService) Upload(ctx context.Context, p model.Principal, in UploadInput) (*model.Document, error) {
	if in.Reader == nil {
		return nil, model.NewValidationError("file", "is required")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, model.NewValidationError("title", "is required")
	}
	if in.Size > maxUploadSize {
		return nil, model.NewValidationError("file", "exceeds the 10 MiB limit")
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(in.Filename), "."))
	kind, ok := kindByExt[ext]
	if !ok {
		return nil, model.NewValidationError("file", "unsupported file type")
	}

	visibility := model.VisibilityPrivate
	if in.Visibility != "" {
		visibility = model.Visibility(in.Visibility)
		if !visibility.Valid() {
			return nil, model.NewValidationError("visibility", "must be private, group, or public")
		}
	}

	id := uuid.New().String()
	key := "documents/" + id + "." + ext

	objInfo, err := s.store.Put(ctx, key, in.Reader, storage.PutObjectOptions{
		Size:        in.Size,
		ContentType: in.ContentType,
		Metadata: map[string]string{
			"original-filename": in.Filename,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	now := time.Now().UTC()
	doc := &model.Document{
		ID:          id,
		OwnerID:     p.ID,
		Title:       title,
		Summary:     strings.TrimSpace(in.Summary),
		Tags:        query.SplitTags(in.Tags),
		Visibility:  visibility,
		StoragePath: objInfo.Key,
		Kind:        kind,
		Size:        objInfo.Size,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	stored, err := s.docs.Create(ctx, doc)
	if err != nil {
		// Rollback: remove the orphaned blob.
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}
	return stored, nil
}

func (s *documentService) Get(ctx context.Context, p model.Principal, id string) (*model.DocumentView, error) {
	view, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !query.VisibleTo(p).Matches(view.Document, view.OwnerGroup) {
		return nil, model.ErrForbidden
	}
	return view, nil
}

func (s *documentService) Update(ctx context.Context, p model.Principal, id string, in UpdateInput) (*model.DocumentView, error) {
	view, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if view.OwnerID != p.ID {
		return nil, model.ErrForbidden
	}

	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		if t == "" {
			return nil, model.NewValidationError("title", "must not be empty")
		}
		view.Title = t
	}
	if in.Summary != nil {
		view.Summary = strings.TrimSpace(*in.Summary)
	}
	if in.Tags != nil {
		view.Tags = query.SplitTags(*in.Tags)
	}
	if in.Visibility != nil {
		v := model.Visibility(*in.Visibility)
		if !v.Valid() {
			return nil, model.NewValidationError("visibility", "must be private, group, or public")
		}
		view.Visibility = v
	}
	view.UpdatedAt = time.Now().UTC()

	if err := s.docs.Update(ctx, &view.Document); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("update document: %w", err)
	}
	return view, nil
}

func (s *documentService) Delete(ctx context.Context, p model.Principal, id string) error {
	view, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}
	if view.OwnerID != p.ID {
		return model.ErrForbidden
	}
	// Blob first; a failed blob delete keeps the record so the reference
	// is not lost.
	if err := s.store.Delete(ctx, view.StoragePath); err != nil {
		return fmt.Errorf("delete storage: %w", err)
	}
	if err := s.docs.Delete(ctx, id); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (s *documentService) Download(ctx context.Context, p model.Principal, id string) (*DownloadResult, error) {
	view, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	content, info, err := s.store.Get(ctx, view.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("fetch storage object: %w", err)
	}
	return &DownloadResult{
		Content:     content,
		Filename:    view.Title + filepath.Ext(view.StoragePath),
		ContentType: info.ContentType,
		Size:        info.Size,
	}, nil
}

func (s *documentService) DownloadURL(ctx context.Context, p model.Principal, id string) (string, error) {
	view, err := s.Get(ctx, p, id)
	if err != nil {
		return "", err
	}
	url, err := s.store.PresignGet(ctx, view.StoragePath, downloadExpires)
	if err != nil {
		return "", fmt.Errorf("presign storage object: %w", err)
	}
	return url, nil
}

func (s *documentService) List(ctx context.Context, p model.Principal, page, limit int) (*DocumentPage, error) {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = query.DefaultPageSize
	}
	return s.search(ctx, query.VisibleTo(p), query.Filters{},
		query.Sort{Field: query.SortCreatedAt, Desc: true}, page, limit)
}

func (s *documentService) Latest(ctx context.Context, p model.Principal, limit int) ([]model.DocumentView, error) {
	vis := query.VisibleTo(p)
	return s.shelf(ctx, &vis, query.Filters{},
		query.Sort{Field: query.SortCreatedAt, Desc: true}, limit)
}

func (s *documentService) Popular(ctx context.Context, p model.Principal, limit int) ([]model.DocumentView, error) {
	vis := query.VisibleTo(p)
	return s.shelf(ctx, &vis, query.Filters{},
		query.Sort{Field: query.SortAverageRating, Desc: true}, limit)
}

func (s *documentService) Mine(ctx context.Context, p model.Principal, limit int) ([]model.DocumentView, error) {
	// Owner scope needs no visibility predicate.
	return s.shelf(ctx, nil, query.Filters{OwnerID: p.ID},
		query.Sort{Field: query.SortCreatedAt, Desc: true}, limit)
}

func (s *documentService) Search(ctx context.Context, p model.Principal, in SearchInput) (*DocumentPage, error) {
	filters, empty, err := s.resolveFilters(ctx, in)
	if err != nil {
		return nil, err
	}
	if in.Page == 0 {
		in.Page = 1
	}
	if in.Limit == 0 {
		in.Limit = query.DefaultPageSize
	}
	if empty {
		if _, err := query.NewPage(in.Page, in.Limit); err != nil {
			return nil, err
		}
		return &DocumentPage{Items: []model.DocumentView{}, Total: 0, Page: in.Page, Limit: in.Limit}, nil
	}
	return s.search(ctx, query.VisibleTo(p), filters,
		query.ParseSort(in.SortBy, in.Order), in.Page, in.Limit)
}

func (s *documentService) CountSearch(ctx context.Context, p model.Principal, in SearchInput) (int, error) {
	filters, empty, err := s.resolveFilters(ctx, in)
	if err != nil {
		return 0, err
	}
	if empty {
		return 0, nil
	}
	vis := query.VisibleTo(p)
	n, err := s.docs.Count(ctx, query.Spec{Visible: &vis, Filters: filters})
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

func (s *documentService) TagCensus(ctx context.Context, p model.Principal, limit int) ([]model.TagCount, error) {
	if limit <= 0 || limit > query.MaxPageSize {
		limit = tagCensusLimit
	}
	tags, err := s.docs.TagCounts(ctx, query.VisibleTo(p), limit)
	if err != nil {
		return nil, fmt.Errorf("tag census: %w", err)
	}
	if tags == nil {
		tags = []model.TagCount{}
	}
	return tags, nil
}

// fetch loads a document by id, treating malformed ids as missing.
func (s *documentService) fetch(ctx context.Context, id string) (*model.DocumentView, error) {
	if uuid.Validate(id) != nil {
		return nil, model.ErrNotFound
	}
	view, err := s.docs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return view, nil
}

// resolveFilters parses raw search input and resolves the owner search
// string to a user id. An unresolvable owner yields empty=true: the search
// must return no rows rather than ignore the filter.
func (s *documentService) resolveFilters(ctx context.Context, in SearchInput) (query.Filters, bool, error) {
	filters, err := query.ParseFilters(query.RawFilters{
		Text:       in.Query,
		Tags:       in.Tags,
		DateFrom:   in.DateFrom,
		DateTo:     in.DateTo,
		Group:      in.Group,
		Visibility: in.Visibility,
	})
	if err != nil {
		return query.Filters{}, false, err
	}
	if owner := strings.TrimSpace(in.Owner); owner != "" {
		u, err := s.users.FindOwnerMatch(ctx, owner)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return query.Filters{}, true, nil
			}
			return query.Filters{}, false, fmt.Errorf("resolve owner: %w", err)
		}
		filters.OwnerID = u.ID
	}
	return filters, false, nil
}

func (s *documentService) search(ctx context.Context, vis query.Visibility, filters query.Filters, sort query.Sort, page, limit int) (*DocumentPage, error) {
	pg, err := query.NewPage(page, limit)
	if err != nil {
		return nil, err
	}
	res, err := s.docs.Search(ctx, query.Spec{Visible: &vis, Filters: filters, Sort: sort, Page: pg})
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	items := res.Items
	if items == nil {
		items = []model.DocumentView{}
	}
	return &DocumentPage{Items: items, Total: res.Total, Page: pg.Number, Limit: pg.Size}, nil
}

// shelf runs a fixed-size unfiltered listing (latest/popular/my).
func (s *documentService) shelf(ctx context.Context, vis *query.Visibility, filters query.Filters, sort query.Sort, limit int) ([]model.DocumentView, error) {
	if limit <= 0 || limit > query.MaxPageSize {
		limit = shelfLimit
	}
	pg, err := query.NewPage(1, limit)
	if err != nil {
		return nil, err
	}
	res, err := s.docs.Search(ctx, query.Spec{Visible: vis, Filters: filters, Sort: sort, Page: pg})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if res.Items == nil {
		return []model.DocumentView{}, nil
	}
	return res.Items, nil
}
