package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolderTokenRoundTrip(t *testing.T) {
	ht, err := NewHolderToken("secret", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, ht.Holder)
	assert.True(t, ht.Exp.After(time.Now()))

	holder, err := ParseHolderToken("secret", ht.Token)
	require.NoError(t, err)
	assert.Equal(t, ht.Holder, holder)
}

func TestHolderTokenRejectsWrongSecret(t *testing.T) {
	ht, err := NewHolderToken("secret", time.Hour)
	require.NoError(t, err)

	_, err = ParseHolderToken("other", ht.Token)
	assert.ErrorIs(t, err, ErrInvalidHolderToken)
}

func TestHolderTokenRejectsExpired(t *testing.T) {
	ht, err := NewHolderToken("secret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseHolderToken("secret", ht.Token)
	assert.ErrorIs(t, err, ErrInvalidHolderToken)
}

func TestHolderTokenRejectsOtherTokenTypes(t *testing.T) {
	claims := jwt.MapClaims{
		"sub":  "42",
		"role": "customer",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = ParseHolderToken("secret", raw)
	assert.ErrorIs(t, err, ErrInvalidHolderToken)
}

func TestNewHolderTokenRequiresSecret(t *testing.T) {
	_, err := NewHolderToken("", time.Hour)
	assert.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("token-a")
	assert.Len(t, a, 12)
	assert.Equal(t, a, Fingerprint("token-a"))
	assert.NotEqual(t, a, Fingerprint("token-b"))
	assert.Empty(t, Fingerprint(""))
}
