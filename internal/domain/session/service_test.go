package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

// MockRepository is a mock implementation of the Repository interface for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, token Token) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockRepository) Find(ctx context.Context, id string) (Token, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Token), args.Error(1)
}

func (m *MockRepository) Revoke(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newTestService(repo Repository) *Service {
	s := NewService(repo, slog.Default())
	s.cost = bcrypt.MinCost
	return s
}

func TestService_IssueAndValidate(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	var saved Token
	mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(tok Token) bool {
		return tok.UserID == 123 && tok.SecretHash != "" && tok.ExpiresAt == nil
	})).Run(func(args mock.Arguments) {
		saved = args.Get(1).(Token)
	}).Return(nil)

	token, err := service.Issue(context.Background(), 123, 0)
	require.NoError(t, err)

	id, secret, ok := strings.Cut(token, ".")
	require.True(t, ok)
	assert.Equal(t, saved.ID, id)
	assert.NotContains(t, saved.SecretHash, secret)

	mockRepo.On("Find", mock.Anything, id).Return(saved, nil)

	userID, err := service.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, 123, userID)

	_, err = service.Validate(context.Background(), id+".wrong")
	assert.ErrorIs(t, err, ErrInvalidToken)

	mockRepo.AssertExpectations(t)
}

func TestService_Issue_RepositoryError(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("Token")).Return(errors.New("database error"))

	_, err := service.Issue(context.Background(), 1, time.Hour)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database error")
}

func TestService_Validate_Expired(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	var saved Token
	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("Token")).Run(func(args mock.Arguments) {
		saved = args.Get(1).(Token)
	}).Return(nil)

	token, err := service.Issue(context.Background(), 5, time.Hour)
	require.NoError(t, err)
	require.NotNil(t, saved.ExpiresAt)

	mockRepo.On("Find", mock.Anything, saved.ID).Return(saved, nil)

	service.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = service.Validate(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestService_Validate_Malformed(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	tests := []struct {
		name  string
		token string
	}{
		{name: "Empty token", token: ""},
		{name: "No separator", token: "abcdef"},
		{name: "Empty secret", token: "4f0c7f0e-7d5c-4e0e-9a62-2c8a4f2f7b11."},
		{name: "Not a uuid", token: "abc.def"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Validate(context.Background(), tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
	mockRepo.AssertNotCalled(t, "Find", mock.Anything, mock.Anything)
}

func TestService_Validate_RepositoryError(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	id := "4f0c7f0e-7d5c-4e0e-9a62-2c8a4f2f7b11"
	mockRepo.On("Find", mock.Anything, id).Return(Token{}, errors.New("database error"))

	_, err := service.Validate(context.Background(), id+".secret")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidToken)
	assert.Contains(t, err.Error(), "database error")
}

func TestService_Validate_Unknown(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	id := "4f0c7f0e-7d5c-4e0e-9a62-2c8a4f2f7b11"
	mockRepo.On("Find", mock.Anything, id).Return(Token{}, ErrInvalidToken)

	_, err := service.Validate(context.Background(), id+".secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
