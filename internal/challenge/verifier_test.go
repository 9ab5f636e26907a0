package challenge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"boardgate/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*Provider, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider := NewProvider(config.ChallengeProviderConfig{
		Name:      "turnstile",
		VerifyURL: server.URL,
		Secret:    "test-secret",
	}, &http.Client{Timeout: time.Second})
	return provider, server
}

func TestVerifySuccess(t *testing.T) {
	var gotSecret, gotResponse, gotRemoteIP string
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotSecret = r.PostFormValue("secret")
		gotResponse = r.PostFormValue("response")
		gotRemoteIP = r.PostFormValue("remoteip")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true}`))
	})

	result, err := provider.Verify(context.Background(), "tok-123", "203.0.113.9")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "turnstile", result.Provider)
	assert.Equal(t, "test-secret", gotSecret)
	assert.Equal(t, "tok-123", gotResponse)
	assert.Equal(t, "203.0.113.9", gotRemoteIP)
}

func TestVerifyRejected(t *testing.T) {
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	})

	result, err := provider.Verify(context.Background(), "bad", "")
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, []string{"invalid-input-response"}, result.ErrorCodes)
}

func TestVerifyServerError(t *testing.T) {
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := provider.Verify(context.Background(), "tok", "")
	assert.Error(t, err)
}

func TestVerifyUnreachable(t *testing.T) {
	provider, server := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {})
	server.Close()

	_, err := provider.Verify(context.Background(), "tok", "")
	assert.Error(t, err)
}

func TestVerifyMalformedBody(t *testing.T) {
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	_, err := provider.Verify(context.Background(), "tok", "")
	assert.Error(t, err)
}

func TestNewVerifierWiresBothProviders(t *testing.T) {
	v := NewVerifier(config.ChallengeConfig{
		Primary:   config.ChallengeProviderConfig{Name: "turnstile"},
		Secondary: config.ChallengeProviderConfig{Name: "hcaptcha"},
		Timeout:   time.Second,
	})

	assert.Equal(t, "turnstile", v.Primary.Name())
	assert.Equal(t, "hcaptcha", v.Secondary.Name())
}
