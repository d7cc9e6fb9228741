package auth

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodlink/backend/internal/apperr"
	"bloodlink/backend/internal/models"
)

func TestIssueAndVerify(t *testing.T) {
	m := NewManager("secret", "bloodlink", time.Hour)
	user := &models.User{ID: "9b2f7c1e-5d2a-4c7e-9a57-1f3c0e8d2b41", Roles: pq.StringArray{models.RoleAdmin}}

	token, err := m.Issue(user)
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestVerify_Expired(t *testing.T) {
	m := NewManager("secret", "bloodlink", time.Hour)
	issuedAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issuedAt }

	token, err := m.Issue(&models.User{ID: "u1"})
	require.NoError(t, err)

	m.now = func() time.Time { return issuedAt.Add(2 * time.Hour) }
	_, err = m.Verify(token)
	require.Error(t, err)
	assert.True(t, apperr.Unauthorized.Has(err))
	assert.Contains(t, err.Error(), "expired")
}

func TestVerify_Rejections(t *testing.T) {
	m := NewManager("secret", "bloodlink", time.Hour)
	other := NewManager("other-secret", "bloodlink", time.Hour)
	foreignIssuer := NewManager("secret", "someone-else", time.Hour)

	forged, err := other.Issue(&models.User{ID: "u1"})
	require.NoError(t, err)
	foreign, err := foreignIssuer.Issue(&models.User{ID: "u1"})
	require.NoError(t, err)
	anonymous, err := m.Issue(&models.User{})
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":          "",
		"garbage":        "not.a.token",
		"wrong secret":   forged,
		"wrong issuer":   foreign,
		"missing userID": anonymous,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.Verify(token)
			assert.True(t, apperr.Unauthorized.Has(err), "got %v", err)
		})
	}
}

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "battery staple"))
}
