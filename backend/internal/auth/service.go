package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"markbook/backend/internal/shared"
	"markbook/backend/internal/storage"
)

const (
	MsgNoToken            = "Access denied. No token provided."
	MsgInvalidToken       = "Invalid token."
	MsgInvalidCredentials = "Invalid credentials"
	MsgForbidden          = "Access denied. Insufficient permissions."
)

// AuthService issues and verifies credentials for staff accounts
type AuthService struct {
	users   storage.UserStore
	revoker Revoker
	config  *shared.ServiceConfig
	logger  zerolog.Logger
	now     func() time.Time
}

// CustomClaims for JWT
type CustomClaims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// NewAuthService creates a new AuthService instance
func NewAuthService(users storage.UserStore, revoker Revoker, config *shared.ServiceConfig, logger zerolog.Logger) *AuthService {
	if revoker == nil {
		revoker = NoopRevoker{}
	}
	return &AuthService{
		users:   users,
		revoker: revoker,
		config:  config,
		logger:  logger.With().Str("component", "auth").Logger(),
		now:     time.Now,
	}
}

// Allows is the single authorization policy: a caller satisfies a required
// role when it holds that role or is an admin.
func Allows(required, caller string) bool {
	return caller == required || caller == shared.RoleAdmin
}

// Login authenticates a user and returns a signed token
func (s *AuthService) Login(ctx context.Context, in shared.LoginInput) (string, *shared.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if fields := shared.ValidateStruct(in); len(fields) > 0 {
		return "", nil, shared.ValidationStatus("Validation failed", fields)
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// 1. Find User
	user, err := s.users.FindUserByUsername(queryCtx, in.Username)
	if err != nil {
		if storage.IsNotFound(err) {
			return "", nil, status.Error(codes.Unauthenticated, MsgInvalidCredentials)
		}
		s.logger.Error().Err(err).Str("username", in.Username).Msg("login lookup failed")
		return "", nil, status.Error(codes.Internal, "Internal server error")
	}

	// 2. Check Password (BCrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return "", nil, status.Error(codes.Unauthenticated, MsgInvalidCredentials)
	}

	// 3. Generate JWT
	token, _, err := s.IssueToken(user)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to sign token")
		return "", nil, status.Error(codes.Internal, "failed to generate token")
	}

	s.logger.Info().Str("username", user.Username).Str("role", user.Role).Msg("login")
	return token, user, nil
}

// IssueToken signs a credential for the user valid for the configured lifetime
func (s *AuthService) IssueToken(user *shared.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.config.Security.TokenLifetime())

	claims := CustomClaims{
		UserID:   user.ID.Hex(),
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Security.JWTIssuer,
			Subject:   user.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Security.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *AuthService) parseToken(tokenString string) (*CustomClaims, error) {
	claims := &CustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Security.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	return claims, nil
}

// VerifyToken authenticates a credential. A missing credential is
// Unauthenticated; a malformed, expired or revoked one is InvalidArgument.
func (s *AuthService) VerifyToken(ctx context.Context, tokenString string) (*shared.Principal, error) {
	if tokenString == "" {
		return nil, status.Error(codes.Unauthenticated, MsgNoToken)
	}

	claims, err := s.parseToken(tokenString)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, MsgInvalidToken)
	}
	if claims.Role != shared.RoleAdmin && claims.Role != shared.RoleTeacher {
		return nil, status.Error(codes.InvalidArgument, MsgInvalidToken)
	}

	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		s.logger.Error().Err(err).Msg("revocation lookup failed")
		return nil, status.Error(codes.Internal, "Internal server error")
	}
	if revoked {
		return nil, status.Error(codes.InvalidArgument, MsgInvalidToken)
	}

	return &shared.Principal{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
	}, nil
}

// Logout revokes the credential until its natural expiry.
// Unknown or already invalid tokens are accepted silently.
func (s *AuthService) Logout(ctx context.Context, tokenString string) error {
	if tokenString == "" {
		return nil
	}

	claims, err := s.parseToken(tokenString)
	if err != nil || claims.ExpiresAt == nil {
		return nil
	}

	if err := s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		s.logger.Error().Err(err).Msg("failed to revoke token")
		return status.Error(codes.Internal, "failed to logout")
	}
	return nil
}

// ============================================================================
// Account bootstrap
// ============================================================================

type seedAccount struct {
	username string
	password string
	role     string
}

// EnsureDefaultAccounts provisions the admin and teacher accounts when they
// are missing. Safe to run on every start and from several processes.
func (s *AuthService) EnsureDefaultAccounts(ctx context.Context) error {
	seed := s.config.Seed
	accounts := []seedAccount{
		{seed.AdminUsername, seed.AdminPassword, shared.RoleAdmin},
		{seed.TeacherUsername, seed.TeacherPassword, shared.RoleTeacher},
	}

	for _, acc := range accounts {
		if acc.username == "" {
			continue
		}

		_, err := s.users.FindUserByUsername(ctx, acc.username)
		if err == nil {
			continue
		}
		if !storage.IsNotFound(err) {
			return fmt.Errorf("looking up %s: %w", acc.username, err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(acc.password), s.config.Security.BCryptCost)
		if err != nil {
			return fmt.Errorf("hashing password for %s: %w", acc.username, err)
		}

		now := s.now()
		user := &shared.User{
			Username:     acc.username,
			PasswordHash: string(hash),
			Role:         acc.role,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.users.InsertUser(ctx, user); err != nil {
			if storage.IsDuplicateKey(err) {
				continue
			}
			return fmt.Errorf("creating %s: %w", acc.username, err)
		}
		s.logger.Info().Str("username", acc.username).Str("role", acc.role).Msg("default account created")
	}
	return nil
}
