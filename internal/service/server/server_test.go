package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backup_vault/internal/vault"
)

func newTestServer(cooldown time.Duration, minCodes, maxCodes int) *httptest.Server {
	s := NewHttpServer(":0", vault.NewMemoryStore(cooldown), minCodes, maxCodes)
	return httptest.NewServer(s.Router())
}

func postJSON(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func getJSON(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func testEnvelopes(n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fmt.Sprintf("env%d", i))
	}
	return out
}

func registerAlice(t *testing.T, ts *httptest.Server, codes int) {
	t.Helper()
	resp, _ := postJSON(t, ts.URL+"/api/register", map[string]any{
		"username":       "alice",
		"encryptedCodes": testEnvelopes(codes),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegister(t *testing.T) {
	ts := newTestServer(vault.DefaultCooldown, 1, 10)
	defer ts.Close()

	resp, body := postJSON(t, ts.URL+"/api/register", map[string]any{
		"username":       "alice",
		"encryptedCodes": testEnvelopes(10),
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 10, body["totalCodes"])

	// Same username again is a conflict.
	resp, body = postJSON(t, ts.URL+"/api/register", map[string]any{
		"username":       "alice",
		"encryptedCodes": testEnvelopes(10),
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Username already exists", body["error"])
}

func TestRegister_Validation(t *testing.T) {
	ts := newTestServer(vault.DefaultCooldown, 1, 10)
	defer ts.Close()

	cases := []struct {
		name string
		body any
		want string
	}{
		{"short username", map[string]any{"username": "al", "encryptedCodes": testEnvelopes(10)}, "Username must be at least 3 characters"},
		{"missing username", map[string]any{"encryptedCodes": testEnvelopes(10)}, "Username must be at least 3 characters"},
		{"no codes", map[string]any{"username": "alice", "encryptedCodes": []string{}}, "Must provide between 1 and 10 encrypted codes"},
		{"too many codes", map[string]any{"username": "alice", "encryptedCodes": testEnvelopes(11)}, "Must provide between 1 and 10 encrypted codes"},
		{"empty code entry", map[string]any{"username": "alice", "encryptedCodes": []string{"env0", ""}}, "Invalid encrypted code format"},
		{"non-string code entry", map[string]any{"username": "alice", "encryptedCodes": []any{"env0", 42}}, "Invalid request body"},
	}

	for _, tc := range cases {
		resp, body := postJSON(t, ts.URL+"/api/register", tc.body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, tc.name)
		assert.Equal(t, tc.want, body["error"], tc.name)
	}
}

func TestRegister_ExactCountPolicy(t *testing.T) {
	ts := newTestServer(vault.DefaultCooldown, 10, 10)
	defer ts.Close()

	resp, body := postJSON(t, ts.URL+"/api/register", map[string]any{
		"username":       "alice",
		"encryptedCodes": testEnvelopes(9),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Must provide exactly 10 encrypted codes", body["error"])
}

func TestRetrieve(t *testing.T) {
	ts := newTestServer(vault.DefaultCooldown, 1, 10)
	defer ts.Close()
	registerAlice(t, ts, 10)

	resp, body := postJSON(t, ts.URL+"/api/retrieve", map[string]any{"username": "alice"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "env0", body["encryptedCode"])
	assert.EqualValues(t, 9, body["codesRemaining"])
	assert.EqualValues(t, 10, body["totalCodes"])

	// Immediate second call lands in the cooldown.
	resp, body = postJSON(t, ts.URL+"/api/retrieve", map[string]any{"username": "alice"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "Please wait 5 minute(s) before requesting another code", body["error"])
}

func TestRetrieve_Errors(t *testing.T) {
	ts := newTestServer(vault.DefaultCooldown, 1, 10)
	defer ts.Close()

	resp, body := postJSON(t, ts.URL+"/api/retrieve", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Username is required", body["error"])

	resp, body = postJSON(t, ts.URL+"/api/retrieve", map[string]any{"username": "nobody"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "User not found", body["error"])
}

func TestRetrieve_Exhausted(t *testing.T) {
	// Zero cooldown so the account can be drained back to back.
	ts := newTestServer(0, 1, 10)
	defer ts.Close()
	registerAlice(t, ts, 3)

	for i := 0; i < 3; i++ {
		resp, body := postJSON(t, ts.URL+"/api/retrieve", map[string]any{"username": "alice"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, fmt.Sprintf("env%d", i), body["encryptedCode"])
		assert.EqualValues(t, 2-i, body["codesRemaining"])
	}

	resp, body := postJSON(t, ts.URL+"/api/retrieve", map[string]any{"username": "alice"})
	assert.Equal(t, http.StatusGone, resp.StatusCode)
	assert.Equal(t, "No backup codes remaining", body["error"])
}

func TestReset(t *testing.T) {
	ts := newTestServer(vault.DefaultCooldown, 1, 10)
	defer ts.Close()
	registerAlice(t, ts, 10)

	resp, body := postJSON(t, ts.URL+"/api/reset", map[string]any{"username": "alice"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	resp, body = postJSON(t, ts.URL+"/api/reset", map[string]any{"username": "alice"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "User not found", body["error"])

	// Username is free for a fresh registration.
	resp, _ = postJSON(t, ts.URL+"/api/register", map[string]any{
		"username":       "alice",
		"encryptedCodes": testEnvelopes(5),
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReset_MissingUsername(t *testing.T) {
	ts := newTestServer(vault.DefaultCooldown, 1, 10)
	defer ts.Close()

	resp, body := postJSON(t, ts.URL+"/api/reset", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Username is required", body["error"])
}

func TestStatus(t *testing.T) {
	ts := newTestServer(vault.DefaultCooldown, 1, 10)
	defer ts.Close()
	registerAlice(t, ts, 10)

	resp, body := getJSON(t, ts.URL+"/api/status")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", body["status"])
	assert.EqualValues(t, 1, body["totalUsers"])
	assert.NotNil(t, body["uptime"])
	assert.NotNil(t, body["time"])
}

func TestWelcome(t *testing.T) {
	ts := newTestServer(vault.DefaultCooldown, 1, 10)
	defer ts.Close()

	resp, body := getJSON(t, ts.URL+"/api")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Welcome to the 2FA Vault API", body["message"])
}

func TestNotFound(t *testing.T) {
	ts := newTestServer(vault.DefaultCooldown, 1, 10)
	defer ts.Close()

	resp, body := getJSON(t, ts.URL+"/api/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Not found", body["error"])
}
