package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/primaruang/realty-crm-be/internal/core/auth"
	"github.com/primaruang/realty-crm-be/internal/models"
)

type stubUserRepo struct {
	users map[string]*models.User
}

func (r *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := r.users[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (r *stubUserRepo) List(_ context.Context) ([]models.User, error) {
	return nil, nil
}

func newAuthFixture(t *testing.T) (*AuthService, *auth.JWTService) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	repo := &stubUserRepo{users: map[string]*models.User{
		"dina@example.com": {
			ID:           uuid.New(),
			Name:         "Dina",
			Email:        "dina@example.com",
			PasswordHash: string(hash),
			Role:         models.RoleAgent,
		},
	}}
	jwtService := auth.NewJWTService("test-secret")
	return NewAuthService(repo, jwtService), jwtService
}

func TestLoginIssuesValidToken(t *testing.T) {
	service, jwtService := newAuthFixture(t)

	user, token, err := service.Login(context.Background(), "dina@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.Name != "Dina" {
		t.Fatalf("unexpected user: %+v", user)
	}

	claims, err := jwtService.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != user.ID.String() || claims.Role != models.RoleAgent {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	service, _ := newAuthFixture(t)

	_, _, err := service.Login(context.Background(), "dina@example.com", "wrong")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestLoginUnknownEmailIndistinguishable(t *testing.T) {
	service, _ := newAuthFixture(t)

	_, _, err := service.Login(context.Background(), "nobody@example.com", "s3cret")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestLoginRequiresCredentials(t *testing.T) {
	service, _ := newAuthFixture(t)

	if _, _, err := service.Login(context.Background(), "", "x"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
