package handlers

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessToken_RoundTrip(t *testing.T) {
	token, expiresIn, err := GenerateAccessToken(testJWT, "user-1", "reader")
	require.NoError(t, err)
	assert.Equal(t, int64(900), expiresIn)

	claims, err := ValidateAccessToken(testJWT, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "reader", claims.Username)
	assert.Equal(t, TokenIssuer, claims.Issuer)
}

func TestValidateAccessToken_Rejects(t *testing.T) {
	expired := JWTConfig{Secret: testJWT.Secret, AccessTokenTTL: -time.Minute}
	expiredToken, _, err := GenerateAccessToken(expired, "user-1", "reader")
	require.NoError(t, err)

	otherSecret := JWTConfig{Secret: []byte("another-secret-another-secret-xx"), AccessTokenTTL: time.Minute}
	foreignToken, _, err := GenerateAccessToken(otherSecret, "user-1", "reader")
	require.NoError(t, err)

	// none-алгоритм не принимается
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, CustomClaims{UserID: "user-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expiredToken,
		"wrong secret": foreignToken,
		"alg none":     unsigned,
		"garbage":      "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateAccessToken(testJWT, token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
