package auth

import (
	"testing"
	"time"

	"portal/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	mgr, err := NewManager("test-secret", "", 30*time.Minute)
	require.NoError(t, err)

	user := &entity.DbUser{ID: 42, Username: "taro", Role: entity.UserRoleAdmin}
	token, expiresAt, err := mgr.Issue(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), expiresAt, time.Minute)

	claims, err := mgr.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "taro", claims.Username)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "portal", claims.Issuer)
	assert.NotEmpty(t, claims.ID)

	other, _, err := mgr.Issue(user)
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestNewManagerRequiresSecret(t *testing.T) {
	_, err := NewManager("   ", "", time.Hour)
	assert.Error(t, err)

	mgr, err := NewManager("s", "", 0)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, mgr.TTL())
}

func TestIssueRequiresSavedUser(t *testing.T) {
	mgr, _ := NewManager("s", "", time.Hour)
	_, _, err := mgr.Issue(&entity.DbUser{Username: "new"})
	assert.Error(t, err)
}

func TestVerifyRejectsForeignToken(t *testing.T) {
	a, _ := NewManager("secret-a", "portal", time.Hour)
	b, _ := NewManager("secret-b", "portal", time.Hour)
	c, _ := NewManager("secret-a", "elsewhere", time.Hour)

	token, _, err := a.Issue(&entity.DbUser{ID: 1, Username: "a"})
	require.NoError(t, err)

	_, err = b.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = c.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = a.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsExpired(t *testing.T) {
	mgr, _ := NewManager("secret", "portal", time.Minute)
	issuedAt := time.Now()
	mgr.now = func() time.Time { return issuedAt }
	token, _, err := mgr.Issue(&entity.DbUser{ID: 7, Username: "b"})
	require.NoError(t, err)

	mgr.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	_, err = mgr.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}
