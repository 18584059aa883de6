package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"servicehub/internal/domain"
	"servicehub/internal/security"
	"servicehub/internal/service"
)

type MockProfileRepo struct {
	mock.Mock
}

func (m *MockProfileRepo) Create(ctx context.Context, p *domain.Profile) error {
	args := m.Called(ctx, p)
	if args.Error(0) == nil {
		p.ID = "p-1"
	}
	return args.Error(0)
}

func (m *MockProfileRepo) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *MockProfileRepo) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *MockProfileRepo) Update(ctx context.Context, p *domain.Profile) error {
	return m.Called(ctx, p).Error(0)
}

func TestRegister(t *testing.T) {
	mockRepo := new(MockProfileRepo)
	tokens := security.NewTokenService("secret", time.Hour)
	hasher := security.NewPasswordHasher(4)
	pub := &recorder{}

	svc := service.NewAuthService(mockRepo, tokens, hasher, pub)

	t.Run("Success", func(t *testing.T) {
		mockRepo.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, nil).Once()
		mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(p *domain.Profile) bool {
			return p.Email == "new@example.com" && p.UserType == domain.RoleCustomer && p.PasswordHash != "secret1"
		})).Return(nil).Once()

		res, err := svc.Register(context.Background(), service.RegisterInput{
			Email:    " New@Example.com ",
			Password: "secret1",
			FullName: "New User",
		})
		require.NoError(t, err)
		assert.Equal(t, "bearer", res.TokenType)
		assert.Equal(t, "New User", res.User.FullName)

		sub, err := tokens.Subject(res.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "p-1", sub)
		assert.Len(t, pub.forTable(service.TableProfiles), 1)
	})

	t.Run("EmailTaken", func(t *testing.T) {
		mockRepo.On("GetByEmail", mock.Anything, "taken@example.com").
			Return(&domain.Profile{ID: "p-9", Email: "taken@example.com"}, nil).Once()

		res, err := svc.Register(context.Background(), service.RegisterInput{Email: "taken@example.com", Password: "secret1"})
		assert.ErrorIs(t, err, domain.ErrConflict)
		assert.Nil(t, res)
	})

	t.Run("Validation", func(t *testing.T) {
		_, err := svc.Register(context.Background(), service.RegisterInput{Email: "a@example.com", Password: "short"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = svc.Register(context.Background(), service.RegisterInput{Password: "secret1"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = svc.Register(context.Background(), service.RegisterInput{Email: "a@example.com", Password: "secret1", UserType: "admin"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	mockRepo.AssertExpectations(t)
}

func TestLogin(t *testing.T) {
	mockRepo := new(MockProfileRepo)
	tokens := security.NewTokenService("secret", time.Hour)
	hasher := security.NewPasswordHasher(4)
	svc := service.NewAuthService(mockRepo, tokens, hasher, nil)

	hash, err := hasher.Hash("secret1")
	require.NoError(t, err)
	stored := &domain.Profile{ID: "p-2", Email: "ann@example.com", PasswordHash: hash, UserType: domain.RoleProvider}
	mockRepo.On("GetByEmail", mock.Anything, "ann@example.com").Return(stored, nil)
	mockRepo.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, nil)

	t.Run("Success", func(t *testing.T) {
		res, err := svc.Login(context.Background(), service.LoginInput{Email: "Ann@example.com", Password: "secret1"})
		require.NoError(t, err)
		assert.Equal(t, stored, res.User)
		sub, err := tokens.Subject(res.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "p-2", sub)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, err := svc.Login(context.Background(), service.LoginInput{Email: "ann@example.com", Password: "nope123"})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		_, err := svc.Login(context.Background(), service.LoginInput{Email: "ghost@example.com", Password: "secret1"})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}
