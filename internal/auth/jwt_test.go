package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJwt_RoundTrip(t *testing.T) {
	j := New("secret")
	token, err := j.NewToken("moderator", time.Hour)
	require.NoError(t, err)

	admin, err := j.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "moderator", admin.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), admin.Expires, time.Minute)
}

func TestJwt_Rejections(t *testing.T) {
	j := New("secret")

	expired, err := j.NewToken("moderator", -time.Hour)
	require.NoError(t, err)

	other, err := New("other").NewToken("moderator", time.Hour)
	require.NoError(t, err)

	notAdmin, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "visitor",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "moderator",
		"admin": true,
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"garbage", "not-a-token", ErrInvalidToken},
		{"expired", expired, ErrInvalidToken},
		{"wrong secret", other, ErrInvalidToken},
		{"missing exp", noExp, ErrInvalidToken},
		{"no admin claim", notAdmin, ErrNotAdmin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := j.Verify(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestJwt_NoSecret(t *testing.T) {
	j := New("")
	_, err := j.NewToken("x", time.Hour)
	assert.ErrorIs(t, err, ErrNoSecret)
	_, err = j.Verify("whatever")
	assert.ErrorIs(t, err, ErrNoSecret)
}
