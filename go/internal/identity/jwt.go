// Package identity resolves bearer credentials to users.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/studybuddy/go/internal/models"
)

// ErrInvalidCredential is returned for missing, malformed, expired or
// badly signed tokens.
var ErrInvalidCredential = errors.New("invalid credential")

// Claims is the access token payload issued by the accounts service.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTResolver validates HS256 access tokens.
type JWTResolver struct {
	secret []byte
	clock  clockwork.Clock
}

// NewJWTResolver creates a resolver for tokens signed with secret.
func NewJWTResolver(secret string, clock clockwork.Clock) *JWTResolver {
	return &JWTResolver{secret: []byte(secret), clock: clock}
}

// Resolve returns the user a token was issued to.
func (r *JWTResolver) Resolve(_ context.Context, credential string) (*models.User, error) {
	if credential == "" {
		return nil, ErrInvalidCredential
	}

	token, err := jwt.ParseWithClaims(credential, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrSignatureInvalid
		}
		return r.secret, nil
	}, jwt.WithTimeFunc(r.clock.Now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UserID <= 0 {
		return nil, ErrInvalidCredential
	}
	return &models.User{ID: claims.UserID, Username: claims.Username}, nil
}

// Issue signs a token for user valid for ttl.
func (r *JWTResolver) Issue(user models.User, ttl time.Duration) (string, error) {
	now := r.clock.Now().UTC()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// CredentialFromRequest extracts a bearer token from the "token" query
// parameter, falling back to the Authorization header.
func CredentialFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
