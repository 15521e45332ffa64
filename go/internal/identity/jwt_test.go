package identity

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/studybuddy/go/internal/models"
)

func TestResolveRoundTrip(t *testing.T) {
	r := NewJWTResolver("secret", clockwork.NewRealClock())
	token, err := r.Issue(models.User{ID: 7, Username: "ada"}, time.Hour)
	require.NoError(t, err)

	user, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, "ada", user.Username)
}

func TestResolveRejectsBadTokens(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	r := NewJWTResolver("secret", clock)
	other := NewJWTResolver("other", clock)

	expired, err := r.Issue(models.User{ID: 1}, time.Minute)
	require.NoError(t, err)
	forged, err := other.Issue(models.User{ID: 1}, time.Hour)
	require.NoError(t, err)
	noUser, err := r.Issue(models.User{}, time.Hour)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)

	for name, token := range map[string]string{
		"empty":   "",
		"garbage": "not-a-jwt",
		"expired": expired,
		"forged":  forged,
		"no user": noUser,
	} {
		_, err := r.Resolve(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidCredential, name)
	}
}

func TestCredentialFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws/pomodoro/1?token=abc", nil)
	req.Header.Set("Authorization", "Bearer header")
	assert.Equal(t, "abc", CredentialFromRequest(req))

	req = httptest.NewRequest("GET", "/ws/pomodoro/1", nil)
	req.Header.Set("Authorization", "Bearer header")
	assert.Equal(t, "header", CredentialFromRequest(req))

	req = httptest.NewRequest("GET", "/ws/pomodoro/1", nil)
	req.Header.Set("Authorization", "Basic xyz")
	assert.Equal(t, "", CredentialFromRequest(req))
}
