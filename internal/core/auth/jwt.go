package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/primaruang/realty-crm-be/internal/models"
)

// Claims is the decoded session: enough to identify the principal and render
// their name in broadcast payloads without another lookup.
type Claims struct {
	UserID string
	Name   string
	Email  string
	Role   string
}

type JWTService struct {
	secretKey     string
	tokenDuration time.Duration
}

func NewJWTService(secretKey string) *JWTService {
	return &JWTService{
		secretKey:     secretKey,
		tokenDuration: 24 * time.Hour,
	}
}

func (s *JWTService) GenerateToken(user *models.User) (string, error) {
	now := time.Now()

	jwtClaims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"name":    user.Name,
		"email":   user.Email,
		"role":    user.Role,
		"exp":     now.Add(s.tokenDuration).Unix(),
		"iat":     now.Unix(),
		"nbf":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims)
	signed, err := token.SignedString([]byte(s.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	userID, _ := mapClaims["user_id"].(string)
	name, _ := mapClaims["name"].(string)
	email, _ := mapClaims["email"].(string)
	role, _ := mapClaims["role"].(string)

	if userID == "" || role == "" {
		return nil, fmt.Errorf("token missing identity claims")
	}

	return &Claims{
		UserID: userID,
		Name:   name,
		Email:  email,
		Role:   role,
	}, nil
}
