package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"distill/internal/database"
	"distill/internal/models"
	"distill/pkg/auth"
)

// UserService handles account registration and authentication
type UserService struct {
	db         *database.MongoDB
	collection *mongo.Collection
	jwtAuth    *auth.LocalJWTAuth
}

// NewUserService creates a new user service
func NewUserService(db *database.MongoDB, jwtAuth *auth.LocalJWTAuth) *UserService {
	return &UserService{
		db:         db,
		collection: db.Collection(database.CollectionUsers),
		jwtAuth:    jwtAuth,
	}
}

// Register creates a new account with an argon2id password hash
func (s *UserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	if s.jwtAuth == nil {
		return nil, fmt.Errorf("auth is not configured")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("valid email is required")
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	hash, err := s.jwtAuth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &models.User{
		UserID:       uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		WorkspaceID:  req.WorkspaceID,
		Role:         "user",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := s.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("email already registered")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Authenticate verifies credentials and returns the account
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	err := s.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("invalid credentials")
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	ok, err := s.jwtAuth.VerifyPassword(user.PasswordHash, password)
	if err != nil || !ok {
		return nil, fmt.Errorf("invalid credentials")
	}

	return &user, nil
}

// GetByID retrieves an account by user ID
func (s *UserService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.collection.FindOne(ctx, bson.M{"userId": userID}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// IssueTokens generates a token pair for an authenticated account
func (s *UserService) IssueTokens(user *models.User) (*models.AuthResponse, error) {
	if s.jwtAuth == nil {
		return nil, fmt.Errorf("auth is not configured")
	}
	access, refresh, err := s.jwtAuth.GenerateTokens(user.UserID, user.Email, user.WorkspaceID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}
	return &models.AuthResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user,
	}, nil
}

// Refresh validates a refresh token and issues a fresh pair
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error) {
	if s.jwtAuth == nil {
		return nil, fmt.Errorf("auth is not configured")
	}
	claims, err := s.jwtAuth.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token")
	}

	// Re-read the account so revoked or re-workspaced users get fresh claims.
	user, err := s.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token")
	}

	return s.IssueTokens(user)
}
