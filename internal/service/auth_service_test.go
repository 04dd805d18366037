package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stemsi/exstem-session/internal/config"
)

func TestAuthService_IssueAndValidate(t *testing.T) {
	auth := NewAuthService(&config.Config{JWTSecret: "s3cret", JWTExpiry: time.Hour}, nil)

	token, err := auth.IssueToken(TokenTypeStudent, 42)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != 42 || claims.TokenType != TokenTypeStudent || claims.ID == "" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestAuthService_RejectsBadTokens(t *testing.T) {
	auth := NewAuthService(&config.Config{JWTSecret: "s3cret", JWTExpiry: time.Hour}, nil)
	other := NewAuthService(&config.Config{JWTSecret: "other", JWTExpiry: time.Hour}, nil)
	expired := NewAuthService(&config.Config{JWTSecret: "s3cret", JWTExpiry: -time.Minute}, nil)

	foreign, _ := other.IssueToken(TokenTypeAdmin, 1)
	stale, _ := expired.IssueToken(TokenTypeStudent, 1)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	anonymous, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{TokenType: TokenTypeStudent}).SignedString([]byte("s3cret"))

	tests := map[string]string{
		"wrong secret": foreign,
		"expired":      stale,
		"alg none":     none,
		"garbage":      strings.Repeat("x", 20),
		"no user":      anonymous,
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := auth.ValidateToken(tok); err == nil {
				t.Fatalf("expected %s token to be rejected", name)
			}
		})
	}

	if _, err := auth.ValidateToken(anonymous); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
