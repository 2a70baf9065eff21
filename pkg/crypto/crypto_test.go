package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)

	require.True(t, VerifyPassword(hash, "secret1"))
	require.False(t, VerifyPassword(hash, "secret2"))
	require.False(t, VerifyPassword("", "secret1"))

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	require.Equal(t, 10, cost)
}

func TestHashWithCostClampsInvalidCost(t *testing.T) {
	hash, err := HashWithCost("123456", 99)
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	require.Equal(t, PasswordCost, cost)

	other, err := HashWithCost("123456", bcrypt.MinCost)
	require.NoError(t, err)
	require.NotEqual(t, hash, other)
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken(32)
	require.NoError(t, err)
	require.NotEmpty(t, token)
}

func TestRandomDigits(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code, err := RandomDigits(6)
		require.NoError(t, err)
		require.True(t, IsDigits(code, 6), code)
		seen[code] = struct{}{}
	}
	require.Greater(t, len(seen), 150)

	_, err := RandomDigits(0)
	require.Error(t, err)
}

func TestIsDigits(t *testing.T) {
	require.True(t, IsDigits("000123", 6))
	require.False(t, IsDigits("12345", 6))
	require.False(t, IsDigits("12a456", 6))
	require.False(t, IsDigits("１２３４５６", 6))
}

func TestHashWithCostRejectsOverlongSecrets(t *testing.T) {
	_, err := HashWithCost(strings.Repeat("x", MaxPasswordBytes+1), bcrypt.MinCost)
	require.ErrorIs(t, err, ErrPasswordTooLong)

	_, err = HashWithCost(strings.Repeat("x", MaxPasswordBytes), bcrypt.MinCost)
	require.NoError(t, err)
}
