package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"kbapi/internal/model"
	"kbapi/internal/query"
	"kbapi/internal/repository"
)

// RatingResult reports the stored rating alongside the document's refreshed
// aggregate.
type RatingResult struct {
	DocumentID    string  `json:"document_id"`
	Value         int     `json:"value"`
	Created       bool    `json:"created"`
	RatingCount   int     `json:"rating_count"`
	AverageRating float64 `json:"average_rating"`
}

// RatingService defines the rating use cases. Submissions require the
// document to be visible to the rater; a user's own stored rating remains
// readable even after visibility later tightens.
type RatingService interface {
	// Submit places or overwrites the caller's 1..5 rating.
	Submit(ctx context.Context, p model.Principal, documentID string, value int) (*RatingResult, error)

	// MyRating returns the caller's stored rating, or nil when none exists.
	MyRating(ctx context.Context, p model.Principal, documentID string) (*model.Rating, error)

	// Remove withdraws the caller's rating and rolls the aggregate back.
	Remove(ctx context.Context, p model.Principal, documentID string) error
}

type ratingService struct {
	ratings repository.RatingRepository
	docs    repository.DocumentRepository
}

// NewRatingService constructs a RatingService.
func NewRatingService(ratings repository.RatingRepository, docs repository.DocumentRepository) RatingService {
	return &ratingService{ratings: ratings, docs: docs}
}

func (s *ratingService) Submit(ctx context.Context, p model.Principal, documentID string, value int) (*RatingResult, error) {
	if value < 1 || value > 5 {
		return nil, model.NewValidationError("value", "must be between 1 and 5")
	}
	view, err := s.resolveDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !query.VisibleTo(p).Matches(view.Document, view.OwnerGroup) {
		return nil, model.ErrForbidden
	}

	created, err := s.ratings.Submit(ctx, documentID, p.ID, value)
	if err != nil {
		return nil, fmt.Errorf("submit rating: %w", model.ErrUnavailable)
	}

	// Re-read the aggregate after the transaction committed.
	after, err := s.docs.FindByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("reload aggregate: %w", model.ErrUnavailable)
	}
	return &RatingResult{
		DocumentID:    documentID,
		Value:         value,
		Created:       created,
		RatingCount:   after.RatingCount,
		AverageRating: after.AverageRating,
	}, nil
}

func (s *ratingService) MyRating(ctx context.Context, p model.Principal, documentID string) (*model.Rating, error) {
	if _, err := s.resolveDocument(ctx, documentID); err != nil {
		return nil, err
	}
	rating, err := s.ratings.FindByDocumentAndUser(ctx, documentID, p.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find rating: %w", err)
	}
	return rating, nil
}

func (s *ratingService) Remove(ctx context.Context, p model.Principal, documentID string) error {
	if _, err := s.resolveDocument(ctx, documentID); err != nil {
		return err
	}
	if err := s.ratings.Remove(ctx, documentID, p.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrNotFound
		}
		return fmt.Errorf("remove rating: %w", model.ErrUnavailable)
	}
	return nil
}

func (s *ratingService) resolveDocument(ctx context.Context, documentID string) (*model.DocumentView, error) {
	if uuid.Validate(documentID) != nil {
		return nil, model.ErrNotFound
	}
	view, err := s.docs.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return view, nil
}
