package infra

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTVerifierRoundTrip(t *testing.T) {
	raw, err := SignJWT("s3cret", "staff-1", "staff", time.Hour)
	require.NoError(t, err)

	tok, err := NewJWTVerifier("s3cret").VerifyIDToken(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "staff-1", tok.UID)
	assert.Equal(t, "staff", tok.Claims["role"])
}

func TestJWTVerifierWrongSecret(t *testing.T) {
	raw, err := SignJWT("s3cret", "staff-1", "staff", time.Hour)
	require.NoError(t, err)

	_, err = NewJWTVerifier("other").VerifyIDToken(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTVerifierExpired(t *testing.T) {
	raw, err := SignJWT("s3cret", "staff-1", "staff", -time.Minute)
	require.NoError(t, err)

	_, err = NewJWTVerifier("s3cret").VerifyIDToken(context.Background(), raw)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTVerifierRejectsNoneAlg(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "x"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTVerifier("s3cret").VerifyIDToken(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTVerifierMissingSubject(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "staff"}).
		SignedString([]byte("s3cret"))
	require.NoError(t, err)

	_, err = NewJWTVerifier("s3cret").VerifyIDToken(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
