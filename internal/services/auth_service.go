package services

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/primaruang/realty-crm-be/internal/core/auth"
	"github.com/primaruang/realty-crm-be/internal/models"
	"github.com/primaruang/realty-crm-be/internal/repositories"
)

type AuthService struct {
	userRepo repositories.UserRepo
	jwt      *auth.JWTService
}

func NewAuthService(userRepo repositories.UserRepo, jwt *auth.JWTService) *AuthService {
	return &AuthService{userRepo: userRepo, jwt: jwt}
}

// Login verifies credentials and issues a session token. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	if email == "" || password == "" {
		return nil, "", ErrInvalidInput
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrUnauthorized
		}
		return nil, "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrUnauthorized
	}

	token, err := s.jwt.GenerateToken(user)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}
