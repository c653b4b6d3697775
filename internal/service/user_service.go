package service

import (
	"context"
	"errors"
	"os"
	"time"

	"sattva/internal/model"
	"sattva/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// refreshTokenTTL matches the refresh_token cookie lifetime (7 days).
const refreshTokenTTL = 7 * 24 * time.Hour

// DTOs for Request validation
type RegisterUserRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role"` // defaults to "user"
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type TokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// DTO for returning User without exposing sensitive data (e.g. password)
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	CreatedAt string    `json:"created_at"`
}

// UserService defines the interface for business logic related to User
type UserService interface {
	Register(ctx context.Context, req RegisterUserRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	RefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	GetUserByID(ctx context.Context, id string) (*UserResponse, error)
}

type userService struct {
	repo        repository.UserRepository
	refreshRepo repository.RefreshTokenRepository
}

// NewUserService returns a new instance of UserService
func NewUserService(repo repository.UserRepository, refreshRepo repository.RefreshTokenRepository) UserService {
	return &userService{repo: repo, refreshRepo: refreshRepo}
}

// Helper: parse model to standard json API response
func mapToUserResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Phone:     user.Phone,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (s *userService) Register(ctx context.Context, req RegisterUserRequest) (*UserResponse, error) {
	role := req.Role
	if role == "" {
		role = model.RoleUser.String()
	}
	if !model.ValidRoleName(role) {
		return nil, errors.New("invalid role: must be user, wellness_guide, or admin")
	}

	// Double check username/email uniqueness via repo directly
	if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
		return nil, errors.New("username already exists")
	}

	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, errors.New("email already exists")
	}

	// Hash password automatically
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New("failed to hash password")
	}

	user := &model.User{
		Username: req.Username,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: string(hashedPassword),
		Role:     role,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return mapToUserResponse(user), nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, errors.New("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, errors.New("invalid email or password")
	}

	return s.issueTokens(ctx, user)
}

// RefreshToken exchanges a valid refresh token for a new token pair. The
// presented token is rotated: deleted on use and replaced by a fresh one.
func (s *userService) RefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error) {
	stored, err := s.refreshRepo.GetByToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, errors.New("invalid refresh token")
	}

	if time.Now().After(stored.ExpiresAt) {
		// Expired tokens are unusable; remove the row so it cannot linger.
		_ = s.refreshRepo.Delete(ctx, stored.Token)
		return nil, errors.New("refresh token expired")
	}

	user, err := s.repo.GetByID(ctx, stored.UserID.String())
	if err != nil {
		return nil, errors.New("user not found")
	}

	if err := s.refreshRepo.Delete(ctx, stored.Token); err != nil {
		return nil, errors.New("failed to rotate refresh token")
	}

	return s.issueTokens(ctx, user)
}

// Logout revokes the presented refresh token. A missing or unknown token is
// not an error: logout is idempotent.
func (s *userService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.refreshRepo.Delete(ctx, refreshToken)
}

func (s *userService) GetUserByID(ctx context.Context, id string) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.New("user not found")
	}
	return mapToUserResponse(user), nil
}

// issueTokens signs a short-lived access JWT and persists a new opaque
// refresh token for the user.
func (s *userService) issueTokens(ctx context.Context, user *model.User) (*TokenResponse, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
	})

	// Use same fallback strategy as middleware for simplicity here or get from env centrally
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "default_super_secret_key"
	}

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	refresh := &model.RefreshToken{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(refreshTokenTTL),
	}
	if err := s.refreshRepo.Create(ctx, refresh); err != nil {
		return nil, errors.New("failed to store refresh token")
	}

	return &TokenResponse{Token: tokenString, RefreshToken: refresh.Token}, nil
}
