package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"kbapi/internal/model"
	"kbapi/internal/service"
)

type MockRatingService struct {
	mock.Mock
}

func (m *MockRatingService) Submit(ctx context.Context, p model.Principal, documentID string, value int) (*service.RatingResult, error) {
	args := m.Called(ctx, p, documentID, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RatingResult), args.Error(1)
}

func (m *MockRatingService) MyRating(ctx context.Context, p model.Principal, documentID string) (*model.Rating, error) {
	args := m.Called(ctx, p, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Rating), args.Error(1)
}

func (m *MockRatingService) Remove(ctx context.Context, p model.Principal, documentID string) error {
	args := m.Called(ctx, p, documentID)
	return args.Error(0)
}
