package mocks

import (
	"context"
	"io"

	"filepanel/internal/filter"
	"filepanel/internal/model"
	"filepanel/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockFileService struct {
	mock.Mock
}

var _ service.FileService = (*MockFileService)(nil)

func (m *MockFileService) List(ctx context.Context, st filter.State) (*service.ListResult, error) {
	args := m.Called(ctx, st)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListResult), args.Error(1)
}

func (m *MockFileService) Refresh(ctx context.Context, st filter.State) (*service.ListResult, error) {
	args := m.Called(ctx, st)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListResult), args.Error(1)
}

func (m *MockFileService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockFileService) Download(ctx context.Context, locator, filename string, sink service.Sink) (int64, error) {
	args := m.Called(ctx, locator, filename, sink)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFileService) Upload(ctx context.Context, filename string, r io.Reader) (*model.UploadResult, error) {
	args := m.Called(ctx, filename, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UploadResult), args.Error(1)
}
