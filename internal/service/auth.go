package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"kbapi/internal/config"
	"kbapi/internal/model"
	"kbapi/internal/repository"
)

// ErrInvalidCredentials covers both unknown usernames and wrong passwords so
// login failures do not reveal which identities exist.
var ErrInvalidCredentials = errors.New("invalid credentials")

const bcryptCost = 12

// Claims are the JWT claims carried by issued tokens. Group rides along so
// the middleware can build a Principal without a user lookup, but the user
// row remains the source of truth on each request.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Group    string `json:"group,omitempty"`
}

// RegisterInput is the DTO for account creation.
type RegisterInput struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	FullName   string `json:"full_name"`
	Department string `json:"department"`
	Group      string `json:"group"`
}

// LoginResult carries the issued token and the authenticated account.
type LoginResult struct {
	Token     string      `json:"access_token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

// AuthService defines account and token use cases.
type AuthService interface {
	// Register creates a new account. Username and email must be unused.
	Register(ctx context.Context, in RegisterInput) (*model.User, error)

	// Login verifies credentials and issues a signed token.
	Login(ctx context.Context, username, password string) (*LoginResult, error)

	// ValidateToken parses and verifies a token string.
	ValidateToken(tokenString string) (*Claims, error)

	// CurrentUser loads the account behind validated claims.
	CurrentUser(ctx context.Context, claims *Claims) (*model.User, error)
}

type authService struct {
	users repository.UserRepository
	cfg   config.AuthConfig
}

// NewAuthService constructs an AuthService backed by the user repository.
func NewAuthService(users repository.UserRepository, cfg config.AuthConfig) AuthService {
	return &authService{users: users, cfg: cfg}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" {
		return nil, model.NewValidationError("username", "is required")
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, model.NewValidationError("email", "must be a valid address")
	}
	if len(in.Password) < 8 {
		return nil, model.NewValidationError("password", "must be at least 8 characters")
	}

	taken, err := s.users.ExistsByUsernameOrEmail(ctx, in.Username, in.Email)
	if err != nil {
		return nil, fmt.Errorf("check identity: %w", err)
	}
	if taken {
		return nil, model.NewValidationError("username", "username or email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		ID:           uuid.New().String(),
		Username:     in.Username,
		Email:        in.Email,
		FullName:     strings.TrimSpace(in.FullName),
		Department:   strings.TrimSpace(in.Department),
		Group:        strings.TrimSpace(in.Group),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	stored, err := s.users.Create(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return stored, nil
}

func (s *authService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	expiresAt := now.Add(s.cfg.TokenExpiry)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
		},
		Username: user.Username,
		Group:    user.Group,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &LoginResult{Token: signed, ExpiresAt: expiresAt, User: user}, nil
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func (s *authService) CurrentUser(ctx context.Context, claims *Claims) (*model.User, error) {
	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}
