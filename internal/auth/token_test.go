package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/repair-desk/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	token, expiresAt, err := tm.GenerateToken("user-1", domain.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.SubjectID)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, _, err := NewTokenManager("secret-a", 60).GenerateToken("user-1", domain.RoleCustomer)
	require.NoError(t, err)

	_, err = NewTokenManager("secret-b", 60).ParseToken(token)
	assert.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := NewTokenManager("secret", 60).ParseToken("not.a.token")
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22", 4)
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)

	assert.NoError(t, ComparePassword(hash, "hunter22"))
	assert.Error(t, ComparePassword(hash, "wrong"))
}
