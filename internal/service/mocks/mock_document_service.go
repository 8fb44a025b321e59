package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"kbapi/internal/model"
	"kbapi/internal/service"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Upload(ctx context.Context, p model.Principal, in service.UploadInput) (*model.Document, error) {
	args := m.Called(ctx, p, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) Get(ctx context.Context, p model.Principal, id string) (*model.DocumentView, error) {
	args := m.Called(ctx, p, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentView), args.Error(1)
}

func (m *MockDocumentService) Update(ctx context.Context, p model.Principal, id string, in service.UpdateInput) (*model.DocumentView, error) {
	args := m.Called(ctx, p, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentView), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, p model.Principal, id string) error {
	args := m.Called(ctx, p, id)
	return args.Error(0)
}

func (m *MockDocumentService) Download(ctx context.Context, p model.Principal, id string) (*service.DownloadResult, error) {
	args := m.Called(ctx, p, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DownloadResult), args.Error(1)
}

func (m *MockDocumentService) DownloadURL(ctx context.Context, p model.Principal, id string) (string, error) {
	args := m.Called(ctx, p, id)
	return args.String(0), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, p model.Principal, page, limit int) (*service.DocumentPage, error) {
	args := m.Called(ctx, p, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentPage), args.Error(1)
}

func (m *MockDocumentService) Latest(ctx context.Context, p model.Principal, limit int) ([]model.DocumentView, error) {
	args := m.Called(ctx, p, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DocumentView), args.Error(1)
}

func (m *MockDocumentService) Popular(ctx context.Context, p model.Principal, limit int) ([]model.DocumentView, error) {
	args := m.Called(ctx, p, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DocumentView), args.Error(1)
}

func (m *MockDocumentService) Mine(ctx context.Context, p model.Principal, limit int) ([]model.DocumentView, error) {
	args := m.Called(ctx, p, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DocumentView), args.Error(1)
}

func (m *MockDocumentService) Search(ctx context.Context, p model.Principal, in service.SearchInput) (*service.DocumentPage, error) {
	args := m.Called(ctx, p, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentPage), args.Error(1)
}

func (m *MockDocumentService) CountSearch(ctx context.Context, p model.Principal, in service.SearchInput) (int, error) {
	args := m.Called(ctx, p, in)
	return args.Int(0), args.Error(1)
}

func (m *MockDocumentService) TagCensus(ctx context.Context, p model.Principal, limit int) ([]model.TagCount, error) {
	args := m.Called(ctx, p, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TagCount), args.Error(1)
}
