package bg

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// authBackend scripts the login endpoints on top of the refresh family, so
// orchestration tests can see which flow ran, and in which order.
type authBackend struct {
	*refreshBackend
}

func newAuthBackend() *authBackend {
	return &authBackend{refreshBackend: newRefreshBackend()}
}

func (b *authBackend) server(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	b.refreshBackend.install(t, mux)

	mux.HandleFunc(qrGeneratePath, func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits["generate"]++
		b.sequence = append(b.sequence, "generate")
		b.mu.Unlock()

		writeJSON(w, map[string]interface{}{
			"code":    0,
			"message": "0",
			"data": map[string]interface{}{
				"url":        "https://passport.bilibili.com/h5-app/passport/login/scan?qrcode_key=qr-key-1",
				"qrcode_key": "qr-key-1",
			},
		})
	})
	mux.HandleFunc(qrPollPath, func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits["poll"]++
		b.sequence = append(b.sequence, "poll")
		b.mu.Unlock()

		writeJSON(w, qrPollPayload(qrStatusConfirmed, testLoginRedirect, "refresh-new"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestEnsureValidSessionLogsInWhenAbsent(t *testing.T) {
	backend := newAuthBackend()
	backend.infoRefresh = false // cookies are fresh right after login
	client := newTestClient(t, backend.server(t))

	require.NoError(t, client.EnsureValidSession(context.Background()))

	assert.Equal(t, 1, backend.hitCount("generate"), "login must run exactly once")
	assert.Equal(t, []string{"generate", "poll", "info"}, backend.callSequence(),
		"refresh may only run once a credential exists")
	assert.True(t, client.store.IsLoggedIn())
}

func TestEnsureValidSessionRefreshesExisting(t *testing.T) {
	backend := newAuthBackend()
	backend.infoRefresh = false
	client := newTestClient(t, backend.server(t))
	seedStore(t, client, testCredential())

	require.NoError(t, client.EnsureValidSession(context.Background()))

	assert.Equal(t, []string{"info"}, backend.callSequence())
	assert.Zero(t, backend.hitCount("generate"))
}

func TestEnsureValidSessionReloginDeclined(t *testing.T) {
	backend := newAuthBackend()
	backend.pageMissing = true // makes the refresh exchange fail mid-way
	client := newTestClient(t, backend.server(t))
	old := testCredential()
	seedStore(t, client, old)

	client.confirm = func(string) bool { return false }

	err := client.EnsureValidSession(context.Background())
	assert.ErrorIs(t, err, ReloginDeclinedError)
	assert.Zero(t, backend.hitCount("generate"))

	// Declining keeps the stored credential exactly as it was.
	stored, loadErr := client.store.Load()
	require.NoError(t, loadErr)
	assert.Equal(t, old, stored)
}

func TestEnsureValidSessionReloginAccepted(t *testing.T) {
	backend := newAuthBackend()
	backend.pageMissing = true
	client := newTestClient(t, backend.server(t))
	seedStore(t, client, testCredential())

	prompted := ""
	client.confirm = func(prompt string) bool {
		prompted = prompt
		return true
	}

	require.NoError(t, client.EnsureValidSession(context.Background()))

	assert.NotEmpty(t, prompted)
	assert.Equal(t, []string{"info", "correspond", "generate", "poll"}, backend.callSequence())

	stored, err := client.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "sess,new", stored.SessionToken, "relogin must replace the old credential")
	assert.Equal(t, "refresh-new", stored.RefreshToken)
}

func TestPromptYesNo(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"Y\n", true},
		{"yes\n", true},
		{"YES\n", true},
		{" y \n", true},
		{"n\n", false},
		{"no\n", false},
		{"\n", false},
		{"", false},
		{"nonsense\n", false},
	}

	for _, tc := range cases {
		out := &bytes.Buffer{}
		got := promptYesNo(out, strings.NewReader(tc.input), "log in again?")
		assert.Equalf(t, tc.want, got, "input %q", tc.input)
		assert.Contains(t, out.String(), "log in again?")
	}
}
