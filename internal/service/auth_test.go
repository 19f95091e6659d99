package service

import (
	"errors"
	"testing"
	"time"

	"github.com/dandantas/tasyrunner/internal/model"
)

func newTestAuth() *AuthService {
	return NewAuthService(AuthConfig{
		Username:  "operador",
		Password:  "s3nha",
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
	})
}

func TestAuthService_LoginAndValidate(t *testing.T) {
	auth := newTestAuth()

	token, err := auth.Login("operador", "s3nha")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	subject, err := auth.ValidateToken(token.AccessToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "operador" {
		t.Errorf("expected subject operador, got %s", subject)
	}
}

func TestAuthService_BadCredentials(t *testing.T) {
	auth := newTestAuth()

	tests := []struct{ user, pass string }{
		{"operador", "wrong"},
		{"other", "s3nha"},
		{"", ""},
	}
	for _, tt := range tests {
		if _, err := auth.Login(tt.user, tt.pass); !errors.Is(err, model.ErrUnauthorized) {
			t.Errorf("login(%q, %q): expected ErrUnauthorized, got %v", tt.user, tt.pass, err)
		}
	}

	if _, err := NewAuthService(AuthConfig{JWTSecret: "x"}).Login("", ""); !errors.Is(err, model.ErrUnauthorized) {
		t.Errorf("expected login to be refused without a configured account")
	}
}

func TestAuthService_RejectsExpiredAndForeignTokens(t *testing.T) {
	auth := newTestAuth()
	token, _ := auth.Login("operador", "s3nha")

	auth.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := auth.ValidateToken(token.AccessToken); !errors.Is(err, model.ErrUnauthorized) {
		t.Errorf("expected expired token to fail, got %v", err)
	}

	other := NewAuthService(AuthConfig{Username: "operador", Password: "s3nha", JWTSecret: "another"})
	foreign, _ := other.Login("operador", "s3nha")
	if _, err := newTestAuth().ValidateToken(foreign.AccessToken); err == nil {
		t.Errorf("expected token signed with another secret to fail")
	}

	if _, err := auth.ValidateToken("garbage"); err == nil {
		t.Errorf("expected malformed token to fail")
	}
}
