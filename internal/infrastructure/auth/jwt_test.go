package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/evaluator-server/internal/domain/user"
)

func TestIssueAndParseRoundTrip(t *testing.T) {
	m := NewTokenManager("secret")
	guest := user.Principal{UserID: "guest_abc", IsGuest: true, Role: user.RoleGuest, Name: "Ada"}

	token, err := m.Issue(guest, time.Hour)
	require.NoError(t, err)

	got, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, guest, got)
}

func TestParseRejects(t *testing.T) {
	m := NewTokenManager("secret")
	valid, err := m.Issue(user.Principal{UserID: "u1", Role: user.RoleUser}, time.Hour)
	require.NoError(t, err)

	expired := NewTokenManager("secret")
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Issue(user.Principal{UserID: "u1"}, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name    string
		manager *TokenManager
		token   string
		want    error
	}{
		{"empty", m, "", ErrMissingToken},
		{"garbage", m, "not-a-jwt", ErrInvalidToken},
		{"wrong secret", NewTokenManager("other"), valid, ErrInvalidToken},
		{"expired", m, old, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.manager.Parse(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseDefaultsRole(t *testing.T) {
	m := NewTokenManager("secret")
	token, err := m.Issue(user.Principal{UserID: "guest_x", IsGuest: true}, time.Hour)
	require.NoError(t, err)

	p, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, user.RoleGuest, p.Role)
}

func TestIssueRequiresUserID(t *testing.T) {
	_, err := NewTokenManager("secret").Issue(user.Principal{}, time.Hour)
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer  abc "))
	assert.Empty(t, BearerToken("Basic abc"))
	assert.Empty(t, BearerToken(""))
}
