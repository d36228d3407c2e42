// Package auth checks the admin tokens issued by the club's identity provider.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid access token")
	ErrNotAdmin     = errors.New("admin role required")
	ErrNoSecret     = errors.New("admin secret is not configured")
)

// Admin is the identity carried by a verified token.
type Admin struct {
	Subject string
	Expires time.Time
}

type Jwt struct {
	secretKey []byte
}

func New(secretKey string) *Jwt {
	return &Jwt{secretKey: []byte(secretKey)}
}

// NewToken signs an admin token for subject. Used by the dev token tool and tests.
func (j *Jwt) NewToken(subject string, ttl time.Duration) (string, error) {
	if len(j.secretKey) == 0 {
		return "", ErrNoSecret
	}
	claims := jwt.MapClaims{
		"sub":   subject,
		"admin": true,
		"exp":   time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// Verify parses jwtStr and requires a valid HMAC signature and a true admin claim.
func (j *Jwt) Verify(jwtStr string) (*Admin, error) {
	if len(j.secretKey) == 0 {
		return nil, ErrNoSecret
	}
	token, err := jwt.Parse(jwtStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if isAdmin, _ := claims["admin"].(bool); !isAdmin {
		return nil, ErrNotAdmin
	}

	admin := &Admin{}
	admin.Subject, _ = claims.GetSubject()
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		admin.Expires = exp.Time
	}
	return admin, nil
}
