// Package auth checks the administrator's credentials and issues the
// short-lived tokens that gate the admin API.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"life-reality/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const issuer = "life-reality"

// DefaultTTL is the lifetime of an admin token.
const DefaultTTL = 12 * time.Hour

var ErrInvalidToken = errors.New("invalid token")

// AdminSource hands out the stored administrator record.
type AdminSource interface {
	Admin(ctx context.Context) (model.Admin, error)
}

type Claims struct {
	jwt.RegisteredClaims
}

type Authenticator struct {
	source AdminSource
	secret []byte
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func New(source AdminSource, secret string, ttl time.Duration, logger *zap.Logger) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("auth: token secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Authenticator{
		source: source,
		secret: []byte(secret),
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Verify reports whether username and password match the stored admin. An
// incomplete admin record never matches.
func (a *Authenticator) Verify(ctx context.Context, username, password string) (bool, error) {
	if password == "" {
		return false, nil
	}
	admin, err := a.source.Admin(ctx)
	if err != nil {
		return false, fmt.Errorf("load admin: %w", err)
	}
	if !admin.Complete() {
		a.logger.Error("Admin credentials not found or incomplete")
		return false, nil
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(admin.Username)) == 1
	var passOK bool
	if admin.PasswordHash != "" {
		passOK = bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(admin.Password)) == 1
	}
	return userOK && passOK, nil
}

// IssueToken signs a token for username.
func (a *Authenticator) IssueToken(username string) (string, time.Time, error) {
	now := a.now()
	expires := now.Add(a.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// ParseToken validates signature, issuer and expiry.
func (a *Authenticator) ParseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// HashPassword returns a bcrypt hash suitable for Admin.PasswordHash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
