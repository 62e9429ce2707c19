// Package auth issues and verifies bearer tokens and manages credential
// records.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/UkralStul/blogsphere/internal/domain"
	"github.com/UkralStul/blogsphere/internal/logger"
	"github.com/UkralStul/blogsphere/internal/storage"
)

const defaultRole = "user"

// Claims is the token payload. Subject carries the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Session is returned by Register and Login.
type Session struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

type Service struct {
	store  storage.Storage
	secret []byte
	ttl    time.Duration
	cost   int
	log    *logger.Logger
	now    func() time.Time
}

type Option func(*Service)

// WithHashCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store storage.Storage, secret string, ttl time.Duration, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
		log:    log.With("service", "AuthService"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" || email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", domain.ErrValidation)
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	user, err := s.store.CreateUser(ctx, &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         defaultRole,
		CreatedAt:    s.now().UTC().Truncate(time.Millisecond),
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("user registered", "user_id", user.ID)
	return s.session(user)
}

// Login fails with ErrNotFound for an unknown email and ErrUnauthenticated
// for a wrong password.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthenticated)
	}
	return s.session(user)
}

type ProfileUpdate struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	NewPassword string `json:"newPassword"`
}

// UpdateProfile renames the user and, when both passwords are given, changes
// the password after checking the current one.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*domain.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(upd.Username); name != "" {
		user.Username = name
	}
	if upd.Password != "" && upd.NewPassword != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(upd.Password)); err != nil {
			return nil, fmt.Errorf("%w: current password is incorrect", domain.ErrValidation)
		}
		if user.PasswordHash, err = s.hash(upd.NewPassword); err != nil {
			return nil, err
		}
	}
	return s.store.UpdateUser(ctx, user)
}

// DeleteAccount removes the identity with its follow edges and bookmarks.
// Content it authored stays and renders with the tombstone.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return err
	}
	s.log.Info("account deleted", "user_id", userID)
	return nil
}

func (s *Service) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func (s *Service) session(user *domain.User) (*Session, error) {
	token, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token}, nil
}

// IssueToken signs an HS256 token for user.
func (s *Service) IssueToken(user *domain.User) (string, error) {
	now := s.now()
	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseToken verifies signature and expiry and returns the caller.
func (s *Service) ParseToken(token string) (*Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", domain.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("%w: invalid token", domain.ErrUnauthenticated)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: invalid token", domain.ErrUnauthenticated)
	}
	return &Identity{UserID: claims.Subject, Role: claims.Role}, nil
}
