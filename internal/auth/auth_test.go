package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/habitline/internal/errors"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	i, err := NewIssuer(testSecret, time.Hour, 24*time.Hour)
	require.NoError(t, err)
	return i
}

func TestNewIssuerValidation(t *testing.T) {
	_, err := NewIssuer("short", time.Hour, time.Hour)
	assert.Error(t, err)

	_, err = NewIssuer(testSecret, 0, time.Hour)
	assert.Error(t, err)
}

func TestIssueAndVerify(t *testing.T) {
	i := newTestIssuer(t)

	pair, err := i.IssuePair("user-1")
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.True(t, pair.RefreshExpiresAt.After(pair.ExpiresAt))

	sub, err := i.Verify(pair.AccessToken, AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)

	sub, err = i.Verify(pair.RefreshToken, RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)
}

func TestVerifyRejectsWrongType(t *testing.T) {
	i := newTestIssuer(t)
	pair, err := i.IssuePair("user-1")
	require.NoError(t, err)

	_, err = i.Verify(pair.RefreshToken, AccessToken)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))

	_, err = i.Verify(pair.AccessToken, RefreshToken)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
}

func TestVerifyRejectsExpired(t *testing.T) {
	i := newTestIssuer(t)
	issuedAt := time.Now().Add(-2 * time.Hour)
	i.now = func() time.Time { return issuedAt }

	token, _, err := i.Issue("user-1", AccessToken)
	require.NoError(t, err)

	i.now = time.Now
	_, err = i.Verify(token, AccessToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
	assert.Contains(t, err.Error(), "expired")
}

func TestVerifyRejectsOtherSecret(t *testing.T) {
	i := newTestIssuer(t)
	other, err := NewIssuer(strings.Repeat("x", 32), time.Hour, time.Hour)
	require.NoError(t, err)

	token, _, err := other.Issue("user-1", AccessToken)
	require.NoError(t, err)

	_, err = i.Verify(token, AccessToken)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	i := newTestIssuer(t)
	claims := Claims{
		Type: AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = i.Verify(token, AccessToken)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
}

func TestVerifyRejectsGarbage(t *testing.T) {
	i := newTestIssuer(t)
	_, err := i.Verify("not.a.token", AccessToken)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)

	assert.NoError(t, CheckPassword(hash, "hunter22"))
	err = CheckPassword(hash, "hunter23")
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))

	_, err = HashPassword(strings.Repeat("a", 80))
	assert.True(t, errors.Is(err, errors.ErrValidation))
}
