package service

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/dandantas/tasyrunner/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

// AuthConfig holds the operator account and token settings
type AuthConfig struct {
	Username  string
	Password  string
	JWTSecret string
	TokenTTL  time.Duration
}

// AuthService issues and checks API tokens for the single operator account
type AuthService struct {
	username  []byte
	password  []byte
	jwtSecret []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(cfg AuthConfig) *AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	return &AuthService{
		username:  []byte(cfg.Username),
		password:  []byte(cfg.Password),
		jwtSecret: []byte(cfg.JWTSecret),
		ttl:       cfg.TokenTTL,
		now:       time.Now,
	}
}

// Token is a signed access token
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Login checks the credentials and returns a signed token
func (s *AuthService) Login(username, password string) (*Token, error) {
	if len(s.username) == 0 || len(s.password) == 0 {
		return nil, model.ErrUnauthorized
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), s.username) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), s.password) == 1
	if !userOK || !passOK {
		return nil, model.ErrUnauthorized
	}

	now := s.now()
	expires := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Token{AccessToken: signed, ExpiresAt: expires.UTC()}, nil
}

// ValidateToken checks a token and returns its subject
func (s *AuthService) ValidateToken(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrUnauthorized, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", model.ErrUnauthorized
	}
	return claims.Subject, nil
}
