package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"serviceflow/sequence"
)

func TestService_RegisterAndLogin(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, fakeCodes(), "test-secret")

	req := RegisterRequest{
		Phone:    "9876500001",
		Password: "supersafe",
		FullName: "Asha Customer",
	}

	ctx := context.Background()
	user, err := svc.Register(ctx, req)
	if err != nil {
		t.Fatalf("register: unexpected error: %v", err)
	}

	if user.Phone != req.Phone {
		t.Fatalf("expected phone %q got %q", req.Phone, user.Phone)
	}
	if user.Role != RoleCustomer {
		t.Fatalf("register: expected default role %s got %s", RoleCustomer, user.Role)
	}
	if user.Code != "USER-001" {
		t.Fatalf("register: expected allocated code USER-001 got %s", user.Code)
	}

	resp, err := svc.Login(ctx, LoginRequest{Phone: req.Phone, Password: req.Password})
	if err != nil {
		t.Fatalf("login: unexpected error: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("login: expected token, got empty string")
	}

	claims, err := svc.VerifyToken(resp.Token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("verify token: expected %q got %q", user.ID, claims.UserID)
	}
	if claims.Role != RoleCustomer {
		t.Fatalf("verify token: expected role %s got %s", RoleCustomer, claims.Role)
	}
	if claims.Code != "USER-001" {
		t.Fatalf("verify token: expected uid USER-001 got %s", claims.Code)
	}
}

func TestService_RegisterValidation(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, fakeCodes(), "test-secret")

	_, err := svc.Register(context.Background(), RegisterRequest{
		Phone:    "9876500002",
		Password: "short",
		FullName: "Asha Customer",
	})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	if _, err := svc.Register(context.Background(), RegisterRequest{
		Phone:    "",
		Password: "strongpassword",
		FullName: "",
	}); err == nil {
		t.Fatal("expected validation error for missing fields")
	}

	if _, err := svc.Register(context.Background(), RegisterRequest{
		Phone:    "9876500003",
		Password: "strongpassword",
		FullName: "Asha Customer",
		Role:     Role("superuser"),
	}); err == nil {
		t.Fatal("expected validation error for unknown role")
	}
}

func TestService_DuplicatePhone(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, fakeCodes(), "test-secret")

	req := RegisterRequest{
		Phone:    "9876500004",
		Password: "strongpassword",
		FullName: "Asha Customer",
	}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	if _, err := svc.Register(context.Background(), req); !errors.Is(err, ErrDuplicatePhone) {
		t.Fatalf("expected ErrDuplicatePhone, got %v", err)
	}
}

func TestService_LoginInvalidCredentials(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, fakeCodes(), "test-secret")

	_, err := svc.Login(context.Background(), LoginRequest{
		Phone:    "0000000000",
		Password: "irrelevant",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestService_RefreshToken(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, fakeCodes(), "test-secret")

	req := RegisterRequest{
		Phone:    "9876500006",
		Password: "strongpassword",
		FullName: "Asha Customer",
	}
	ctx := context.Background()
	user, err := svc.Register(ctx, req)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	login, err := svc.Login(ctx, LoginRequest{Phone: req.Phone, Password: req.Password})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	refreshed, err := svc.Refresh(ctx, login.Token)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.Token == "" {
		t.Fatal("refresh: expected token, got empty string")
	}
	claims, err := svc.VerifyToken(refreshed.Token)
	if err != nil {
		t.Fatalf("verify refreshed token: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != RoleCustomer {
		t.Fatalf("refreshed token carries wrong identity: %+v", claims)
	}

	if _, err := svc.Refresh(ctx, "not-a-token"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for garbage token, got %v", err)
	}

	repo.deactivate(user.ID)
	if _, err := svc.Refresh(ctx, login.Token); !errors.Is(err, ErrInactiveAccount) {
		t.Fatalf("expected ErrInactiveAccount after deactivation, got %v", err)
	}
}

func TestService_LoginInactiveAccount(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, fakeCodes(), "test-secret")

	req := RegisterRequest{
		Phone:    "9876500005",
		Password: "strongpassword",
		FullName: "Vikram Vendor",
		Role:     RoleVendor,
	}
	user, err := svc.Register(context.Background(), req)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	repo.deactivate(user.ID)

	if _, err := svc.Login(context.Background(), LoginRequest{Phone: req.Phone, Password: req.Password}); !errors.Is(err, ErrInactiveAccount) {
		t.Fatalf("expected ErrInactiveAccount, got %v", err)
	}
}

func fakeCodes() CodeAllocator {
	return sequence.NewAllocator(sequence.NewMemoryCounterStore())
}

type fakeRepository struct {
	usersByPhone map[string]User
	usersByID    map[string]User
	nextID       int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		usersByPhone: make(map[string]User),
		usersByID:    make(map[string]User),
		nextID:       1,
	}
}

func (f *fakeRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	if _, exists := f.usersByPhone[strings.TrimSpace(params.Phone)]; exists {
		return User{}, ErrDuplicatePhone
	}

	id := fmt.Sprintf("user-%d", f.nextID)
	f.nextID++

	user := User{
		ID:           id,
		Code:         params.Code,
		Phone:        params.Phone,
		FullName:     params.FullName,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	f.usersByPhone[user.Phone] = user
	f.usersByID[user.ID] = user

	return user, nil
}

func (f *fakeRepository) GetUserByPhone(ctx context.Context, phone string) (User, error) {
	user, ok := f.usersByPhone[phone]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (f *fakeRepository) GetUserByID(ctx context.Context, userID string) (User, error) {
	user, ok := f.usersByID[userID]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (f *fakeRepository) deactivate(userID string) {
	user := f.usersByID[userID]
	user.Active = false
	f.usersByID[userID] = user
	f.usersByPhone[user.Phone] = user
}
