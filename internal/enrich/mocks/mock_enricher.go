package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"kbapi/internal/enrich"
)

type MockEnricher struct {
	mock.Mock
}

func (m *MockEnricher) AnalyzeFile(ctx context.Context, r io.Reader, filename string, size int64) (*enrich.Analysis, error) {
	args := m.Called(ctx, r, filename, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*enrich.Analysis), args.Error(1)
}

func (m *MockEnricher) GenerateSummary(ctx context.Context, text string) (string, error) {
	args := m.Called(ctx, text)
	return args.String(0), args.Error(1)
}

func (m *MockEnricher) GenerateTags(ctx context.Context, text string) ([]string, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
