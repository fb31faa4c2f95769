package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func withCost(t *testing.T, cost int) {
	t.Helper()
	prev := passwordCost
	require.NoError(t, SetPasswordCost(cost))
	t.Cleanup(func() { passwordCost = prev })
}

func TestHashAndVerify(t *testing.T) {
	withCost(t, bcrypt.MinCost)

	hash, err := HashPassword("将棋が好き123")
	require.NoError(t, err)
	assert.NotEqual(t, "将棋が好き123", hash)

	assert.NoError(t, VerifyPassword(hash, "将棋が好き123"))
	assert.ErrorIs(t, VerifyPassword(hash, "wrong"), ErrPasswordMismatch)
}

func TestHashPasswordRejects(t *testing.T) {
	_, err := HashPassword("   ")
	assert.ErrorIs(t, err, ErrEmptyPassword)
	_, err = HashPassword(strings.Repeat("a", 73))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
	assert.Error(t, VerifyPassword("", "anything"))
}

func TestNeedsRehash(t *testing.T) {
	withCost(t, bcrypt.MinCost)
	hash, err := HashPassword("password1")
	require.NoError(t, err)
	assert.False(t, NeedsRehash(hash))

	withCost(t, bcrypt.MinCost+1)
	assert.True(t, NeedsRehash(hash))
	assert.True(t, NeedsRehash("not-a-bcrypt-hash"))
}

func TestSetPasswordCostRange(t *testing.T) {
	assert.Error(t, SetPasswordCost(bcrypt.MinCost-1))
	assert.Error(t, SetPasswordCost(bcrypt.MaxCost+1))
}
