package mocks

import (
	"context"
	"io"

	"mediaapi/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockUploadService struct {
	mock.Mock
}

func (m *MockUploadService) Upload(ctx context.Context, cat model.Category, r io.Reader, originalFilename string, contentType string, size int64) (*model.StoredFile, error) {
	args := m.Called(ctx, cat, r, originalFilename, contentType, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StoredFile), args.Error(1)
}

func (m *MockUploadService) List(ctx context.Context, cat model.Category) ([]string, error) {
	args := m.Called(ctx, cat)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
