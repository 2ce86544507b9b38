// Package auth issues and validates admin session tokens for the management
// API. End users never log in here, they are accounts on the media server;
// only the operator surface is authenticated.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"stream-access-guard/internal/config"
)

var (
	ErrNonValidToken    = errors.New("token did not pass validation")
	ErrInvalidClaimType = errors.New("invalid claim type")
	ErrBadCredentials   = errors.New("invalid credentials")
)

var tokenSignatureAlg = jwt.SigningMethodHS256

// AdminClaim is the session claim for an authenticated operator.
type AdminClaim struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func NewAdminClaim() AdminClaim {
	ttl := config.Cfg.AdminTokenTTL
	if ttl == 0 {
		ttl = 60
	}
	now := time.Now().UTC()
	return AdminClaim{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttl) * time.Minute)),
		},
	}
}

// GenerateJWT signs claims with the configured secret.
func GenerateJWT(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(tokenSignatureAlg, claims)
	return token.SignedString([]byte(config.Cfg.Secret))
}

func DecodeAdminJWT(tokenString string) (*AdminClaim, error) {
	return decodeJWT(tokenString, &AdminClaim{})
}

func decodeJWT[T jwt.Claims](tokenString string, claimsType T) (T, error) {
	var zero T

	parsedToken, err := jwt.ParseWithClaims(tokenString, claimsType, func(token *jwt.Token) (interface{}, error) {
		return []byte(config.Cfg.Secret), nil
	}, jwt.WithValidMethods([]string{tokenSignatureAlg.Alg()}))

	if err != nil {
		return zero, err
	} else if parsedToken == nil || !parsedToken.Valid {
		return zero, ErrNonValidToken
	} else if claims, ok := parsedToken.Claims.(T); ok {
		return claims, nil
	}

	return zero, ErrInvalidClaimType
}

// VerifyPassword compares a login attempt against the configured bcrypt hash.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrBadCredentials
	}
	return nil
}

// HashPassword produces a bcrypt hash for the admin password (used by the
// CLI when bootstrapping a config).
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
