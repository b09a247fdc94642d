package stores

import (
	"context"

	"github.com/ajramos/kyra/internal/api"
	"github.com/stretchr/testify/mock"
)

// MockEmailAPI is a mock implementation of EmailAPI
type MockEmailAPI struct {
	mock.Mock
}

func (m *MockEmailAPI) ListMessages(ctx context.Context, category string) ([]api.Email, error) {
	args := m.Called(ctx, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]api.Email), args.Error(1)
}

func (m *MockEmailAPI) SyncGmail(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockEmailAPI) LogInteraction(ctx context.Context, emailID, action string) (*api.Interaction, error) {
	args := m.Called(ctx, emailID, action)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.Interaction), args.Error(1)
}

// MockChatAPI is a mock implementation of ChatAPI
type MockChatAPI struct {
	mock.Mock
}

func (m *MockChatAPI) Chat(ctx context.Context, req api.ChatRequest) (*api.ChatResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.ChatResponse), args.Error(1)
}

// MockDigestAPI is a mock implementation of DigestAPI
type MockDigestAPI struct {
	mock.Mock
}

func (m *MockDigestAPI) LatestDigest(ctx context.Context, email string) (*api.LatestDigest, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.LatestDigest), args.Error(1)
}

func (m *MockDigestAPI) GenerateDigest(ctx context.Context, userID, email string) (*api.GeneratedDigest, error) {
	args := m.Called(ctx, userID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.GeneratedDigest), args.Error(1)
}

