package reputation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"boardgate/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(config.ReputationConfig{
		APIURL:  server.URL,
		APIKey:  "test-key",
		Timeout: time.Second,
	})
}

func TestLookupModernFormat(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Write([]byte(`{
			"status": "ok",
			"node": "answering-node",
			"203.0.113.9": {
				"isocode": "JP",
				"detections": {"proxy": false, "vpn": true, "tor": false}
			}
		}`))
	})

	result, err := client.Lookup(context.Background(), "203.0.113.9")
	require.NoError(t, err)

	assert.Equal(t, "answering-node", result.Node)
	assert.Equal(t, "JP", result.Details.ISOCode)
	require.NotNil(t, result.Details.Detections)
	assert.True(t, bool(result.Details.Detections.VPN))
	assert.False(t, bool(result.Details.Detections.Proxy))
	assert.True(t, json.Valid(result.Raw))
}

func TestLookupLegacyFormat(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"status": "ok",
			"198.51.100.7": {"proxy": "yes", "vpn": "no", "type": "SOCKS", "isocode": "US"}
		}`))
	})

	result, err := client.Lookup(context.Background(), "198.51.100.7")
	require.NoError(t, err)

	assert.True(t, bool(result.Details.Proxy))
	assert.False(t, bool(result.Details.VPN))
	assert.Equal(t, "SOCKS", result.Details.Type)
}

func TestLookupServiceDenied(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "denied", "message": "invalid key"}`))
	})

	_, err := client.Lookup(context.Background(), "203.0.113.9")
	assert.Error(t, err)
}

func TestLookupServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Lookup(context.Background(), "203.0.113.9")
	assert.Error(t, err)
}

func TestDisallowed(t *testing.T) {
	tests := []struct {
		name      string
		result    Result
		blocked   []string
		reason    string
		rejected  bool
	}{
		{
			name:     "clean address",
			result:   Result{Details: Details{ISOCode: "JP"}},
			rejected: false,
		},
		{
			name:     "legacy proxy flag",
			result:   Result{Details: Details{Proxy: true}},
			reason:   "proxy",
			rejected: true,
		},
		{
			name:     "detections vpn",
			result:   Result{Details: Details{Detections: &Detections{VPN: true}}},
			reason:   "vpn",
			rejected: true,
		},
		{
			name:     "detections tor",
			result:   Result{Details: Details{Detections: &Detections{Tor: true}}},
			reason:   "tor",
			rejected: true,
		},
		{
			name:     "hosting provider",
			result:   Result{Details: Details{Detections: &Detections{Hosting: true}}},
			reason:   "hosting",
			rejected: true,
		},
		{
			name:     "scraper",
			result:   Result{Details: Details{Detections: &Detections{Scraper: true}}},
			reason:   "scraper",
			rejected: true,
		},
		{
			name:     "blocked country",
			result:   Result{Details: Details{ISOCode: "XX"}},
			blocked:  []string{"XX", "YY"},
			reason:   "blocked_country",
			rejected: true,
		},
		{
			name:     "unlisted country allowed",
			result:   Result{Details: Details{ISOCode: "JP"}},
			blocked:  []string{"XX"},
			rejected: false,
		},
		{
			name:     "category flag wins over country",
			result:   Result{Details: Details{Proxy: true, ISOCode: "XX"}},
			blocked:  []string{"XX"},
			reason:   "proxy",
			rejected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, rejected := Disallowed(tt.result, tt.blocked)
			assert.Equal(t, tt.rejected, rejected)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestFlagUnmarshal(t *testing.T) {
	var d Details
	require.NoError(t, json.Unmarshal([]byte(`{"proxy":"yes","vpn":false,"tor":true}`), &d))
	assert.True(t, bool(d.Proxy))
	assert.False(t, bool(d.VPN))
	assert.True(t, bool(d.Tor))
}
