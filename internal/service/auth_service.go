package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"servicehub/internal/domain"
	"servicehub/internal/realtime"
	"servicehub/internal/security"
)

// AuthService handles registration and login.
type AuthService struct {
	profiles domain.ProfileRepository
	tokens   *security.TokenService
	hash     *security.PasswordHasher
	pub      realtime.Publisher
}

func NewAuthService(profiles domain.ProfileRepository, tokens *security.TokenService, hash *security.PasswordHasher, pub realtime.Publisher) *AuthService {
	return &AuthService{
		profiles: profiles,
		tokens:   tokens,
		hash:     hash,
		pub:      publisherOrNop(pub),
	}
}

type RegisterInput struct {
	Email    string
	Password string
	FullName string
	UserType domain.Role
}

type LoginInput struct {
	Email    string
	Password string
}

type TokenResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	User        *domain.Profile `json:"user"`
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*TokenResponse, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, domain.Invalidf("email and password are required")
	}
	if utf8.RuneCountInString(in.Password) < security.MinPasswordLength {
		return nil, domain.Invalidf("password must be at least %d characters", security.MinPasswordLength)
	}
	if in.UserType == "" {
		in.UserType = domain.RoleCustomer
	}
	if !in.UserType.Valid() {
		return nil, domain.Invalidf("user_type must be customer or provider")
	}

	if existing, err := s.profiles.GetByEmail(ctx, email); err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	} else if existing != nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}

	hashed, err := s.hash.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	p := &domain.Profile{
		Email:        email,
		PasswordHash: hashed,
		FullName:     strings.TrimSpace(in.FullName),
		UserType:     in.UserType,
	}
	if err := s.profiles.Create(ctx, p); err != nil {
		return nil, err
	}
	s.pub.Publish(profileChange(realtime.EventInsert, p))

	return s.issue(p)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*TokenResponse, error) {
	p, err := s.profiles.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("incorrect email or password: %w", domain.ErrUnauthorized)
	}
	if err := s.hash.Verify(in.Password, p.PasswordHash); err != nil {
		return nil, fmt.Errorf("incorrect email or password: %w", domain.ErrUnauthorized)
	}
	return s.issue(p)
}

func (s *AuthService) issue(p *domain.Profile) (*TokenResponse, error) {
	token, err := s.tokens.CreateForProfile(p.ID)
	if err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}
	return &TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        p,
	}, nil
}
