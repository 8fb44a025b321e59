package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"kbapi/internal/model"
)

type MockRatingRepository struct {
	mock.Mock
}

func (m *MockRatingRepository) FindByDocumentAndUser(ctx context.Context, documentID, userID string) (*model.Rating, error) {
	args := m.Called(ctx, documentID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Rating), args.Error(1)
}

func (m *MockRatingRepository) Submit(ctx context.Context, documentID, userID string, value int) (bool, error) {
	args := m.Called(ctx, documentID, userID, value)
	return args.Bool(0), args.Error(1)
}

func (m *MockRatingRepository) Remove(ctx context.Context, documentID, userID string) error {
	args := m.Called(ctx, documentID, userID)
	return args.Error(0)
}
