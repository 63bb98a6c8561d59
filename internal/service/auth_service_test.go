package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/quizroom/quizroom-backend/internal/config"
	"github.com/quizroom/quizroom-backend/internal/model"
)

func testAuthService() *AuthService {
	return NewAuthService(&config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: 4,
	}, nil)
}

func TestTokenRoundTrip(t *testing.T) {
	s := testAuthService()

	token, err := s.GenerateToken(42, model.RoleTeacher)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := s.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != 42 || claims.Role != model.RoleTeacher || claims.Subject != "42" {
		t.Fatalf("claims = %+v", claims)
	}
	if len(claims.Permissions) != len(model.RolePermissions[model.RoleTeacher]) {
		t.Fatalf("permissions = %v", claims.Permissions)
	}
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	s := testAuthService()
	other := NewAuthService(&config.Config{JWTSecret: "other", JWTExpiry: time.Hour}, nil)

	token, err := other.GenerateToken(1, model.RoleAdmin)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := s.ValidateToken(token); err == nil {
		t.Fatal("token signed with another secret should be rejected")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	s := NewAuthService(&config.Config{JWTSecret: "test-secret", JWTExpiry: -time.Minute}, nil)
	token, err := s.GenerateToken(1, model.RoleStudent)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	_, err = s.ValidateToken(token)
	if !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	s := testAuthService()
	hash, err := s.HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := s.CheckPassword(hash, "s3cret-pass"); err != nil {
		t.Fatalf("CheckPassword(correct): %v", err)
	}
	if err := s.CheckPassword(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("CheckPassword(wrong) = %v, want ErrInvalidCredentials", err)
	}
}
