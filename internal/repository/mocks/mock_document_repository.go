package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"kbapi/internal/model"
	"kbapi/internal/query"
	"kbapi/internal/repository"
)

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentRepository) FindByID(ctx context.Context, id string) (*model.DocumentView, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentView), args.Error(1)
}

func (m *MockDocumentRepository) Search(ctx context.Context, spec query.Spec) (*repository.PageResult[model.DocumentView], error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.DocumentView]), args.Error(1)
}

func (m *MockDocumentRepository) Count(ctx context.Context, spec query.Spec) (int, error) {
	args := m.Called(ctx, spec)
	return args.Int(0), args.Error(1)
}

func (m *MockDocumentRepository) Update(ctx context.Context, doc *model.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentRepository) TagCounts(ctx context.Context, vis query.Visibility, limit int) ([]model.TagCount, error) {
	args := m.Called(ctx, vis, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TagCount), args.Error(1)
}
