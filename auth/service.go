package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"serviceflow/sequence"
)

var (
	// ErrInvalidCredentials signals wrong phone number or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrWeakPassword signals password doesn't meet requirements.
	ErrWeakPassword = errors.New("auth: password must be at least 8 characters")
	// ErrInactiveAccount signals a disabled account attempted to log in.
	ErrInactiveAccount = errors.New("auth: account disabled")
)

// CodeAllocator mints human-readable account codes (USER-001).
type CodeAllocator interface {
	Next(ctx context.Context, entity sequence.Entity) (string, error)
}

// Service handles authentication business logic.
type Service struct {
	repo      Repository
	codes     CodeAllocator
	jwtSecret []byte
}

// Claims is the verified identity extracted from a token.
type Claims struct {
	UserID string
	Code   string
	Role   Role
}

// LoginResult bundles the token and domain user returned after a successful login.
type LoginResult struct {
	Token string
	User  User
}

// NewService creates a new authentication service.
func NewService(repo Repository, codes CodeAllocator, jwtSecret string) *Service {
	return &Service{
		repo:      repo,
		codes:     codes,
		jwtSecret: []byte(jwtSecret),
	}
}

// Register creates a new account. The human-readable account code is minted
// by the sequence allocator, never derived from existing rows.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if len(req.Password) < 8 {
		return nil, ErrWeakPassword
	}

	phone := strings.TrimSpace(req.Phone)
	if phone == "" || req.FullName == "" {
		return nil, fmt.Errorf("auth: phone and full_name are required")
	}

	role := Role(strings.TrimSpace(string(req.Role)))
	if role == "" {
		role = RoleCustomer
	}
	if !IsValidRole(role) {
		return nil, fmt.Errorf("auth: invalid role %q", role)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	code, err := s.codes.Next(ctx, sequence.EntityUser)
	if err != nil {
		return nil, fmt.Errorf("auth: allocate account code: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, CreateUserParams{
		Code:         code,
		Phone:        phone,
		FullName:     req.FullName,
		PasswordHash: string(passwordHash),
		Role:         role,
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// Login authenticates an account and returns a signed JWT token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	user, err := s.repo.GetUserByPhone(ctx, strings.TrimSpace(req.Phone))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	if !user.Active {
		return LoginResult{}, ErrInactiveAccount
	}

	token, err := s.generateToken(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: generate token: %w", err)
	}

	return LoginResult{
		Token: token,
		User:  user,
	}, nil
}

// Refresh re-issues a token for a still-valid session. The presented token
// must verify (expired tokens need a fresh login) and the account must still
// exist and be active at refresh time.
func (s *Service) Refresh(ctx context.Context, tokenString string) (LoginResult, error) {
	claims, err := s.VerifyToken(tokenString)
	if err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	user, err := s.repo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if !user.Active {
		return LoginResult{}, ErrInactiveAccount
	}

	token, err := s.generateToken(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: generate token: %w", err)
	}

	return LoginResult{Token: token, User: user}, nil
}

// GetUserByID retrieves account information by ID.
func (s *Service) GetUserByID(ctx context.Context, userID string) (*User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// VerifyToken validates a JWT token and returns the embedded identity.
func (s *Service) VerifyToken(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("auth: parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Claims{}, fmt.Errorf("auth: invalid token")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return Claims{}, fmt.Errorf("auth: invalid user_id in token")
	}
	code, _ := claims["uid"].(string)
	roleStr, ok := claims["role"].(string)
	if !ok {
		return Claims{}, fmt.Errorf("auth: invalid role in token")
	}
	role := Role(roleStr)
	if !IsValidRole(role) {
		return Claims{}, fmt.Errorf("auth: invalid role %q in token", roleStr)
	}

	return Claims{UserID: userID, Code: code, Role: role}, nil
}

func (s *Service) generateToken(user User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"uid":     user.Code,
		"role":    user.Role,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// IsValidRole reports whether role is one of the platform's closed role set.
func IsValidRole(role Role) bool {
	switch role {
	case RoleCustomer, RoleVendor, RoleStaff, RoleAdmin:
		return true
	default:
		return false
	}
}
