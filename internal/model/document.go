package model

import "time"

// Visibility is the per-document tri-state access policy.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityGroup   Visibility = "group"
	VisibilityPublic  Visibility = "public"
)

// Valid reports whether v is one of the three known visibility levels.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPrivate, VisibilityGroup, VisibilityPublic:
		return true
	}
	return false
}

// DocumentKind is the declared kind of the stored file.
type DocumentKind string

const (
	KindPDF   DocumentKind = "pdf"
	KindDoc   DocumentKind = "doc"
	KindDocx  DocumentKind = "docx"
	KindImage DocumentKind = "image"
)

// Document represents a cataloged file in the system.
// This is a pure domain model with no database-specific dependencies or tags.
// The rating triple (RatingSum, RatingCount, AverageRating) is a cached
// projection of the ratings table; only the rating repository may write it.
type Document struct {
	ID          string       `json:"id"`
	OwnerID     string       `json:"owner_id"`
	Title       string       `json:"title"`
	Summary     string       `json:"summary,omitempty"`
	Tags        []string     `json:"tags"`
	Visibility  Visibility   `json:"visibility"`
	StoragePath string       `json:"storage_path"`
	Kind        DocumentKind `json:"file_type"`
	Size        int64        `json:"file_size"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`

	RatingSum     int     `json:"-"`
	RatingCount   int     `json:"rating_count"`
	AverageRating float64 `json:"average_rating"`
}

// DocumentView is a Document enriched with the owner's display name,
// as returned by every read operation.
type DocumentView struct {
	Document
	OwnerName string `json:"owner_name"`
	// OwnerGroup is the owner's current group, carried for in-process
	// visibility checks after a point fetch. Not part of the API payload.
	OwnerGroup string `json:"-"`
}

// UnknownOwnerName is substituted when a document's owner row is missing.
const UnknownOwnerName = "Unknown"

// TagCount is one row of the tag census.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}
