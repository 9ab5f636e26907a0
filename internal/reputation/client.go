// Package reputation queries an external IP reputation service and evaluates
// its verdict against the local policy.
package reputation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"boardgate/internal/config"
)

// Flag accepts both the service's modern boolean detections and its legacy
// "yes"/"no" string fields.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler
func (f *Flag) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Flag(s == "yes")
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	*f = Flag(b)
	return nil
}

// Detections is the structured per-category verdict object
type Detections struct {
	Proxy       Flag `json:"proxy"`
	VPN         Flag `json:"vpn"`
	Tor         Flag `json:"tor"`
	Hosting     Flag `json:"hosting"`
	Compromised Flag `json:"compromised"`
	Scraper     Flag `json:"scraper"`
	Anonymous   Flag `json:"anonymous"`
}

// Details is the per-address entry of a lookup response. Legacy top-level
// flags and the nested detections object are both honored.
type Details struct {
	Proxy      Flag        `json:"proxy"`
	VPN        Flag        `json:"vpn"`
	Tor        Flag        `json:"tor"`
	Type       string      `json:"type"`
	Country    string      `json:"country"`
	ISOCode    string      `json:"isocode"`
	Detections *Detections `json:"detections"`
}

// Result is a completed lookup. Raw preserves the untouched response body for
// the attempt audit record; Node identifies the answering service node and
// doubles as the stored reputation reference.
type Result struct {
	Node    string
	Details Details
	Raw     json.RawMessage
}

type apiResponse struct {
	Status  string
	Message string
	Node    string
	Details *Details
}

// UnmarshalJSON implements json.Unmarshaler. The service keys the per-address
// entry by the queried address itself, so any key besides the fixed metadata
// fields is treated as that entry.
func (r *apiResponse) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for key, raw := range fields {
		switch key {
		case "status":
			if err := json.Unmarshal(raw, &r.Status); err != nil {
				return err
			}
		case "message":
			if err := json.Unmarshal(raw, &r.Message); err != nil {
				return err
			}
		case "node":
			if err := json.Unmarshal(raw, &r.Node); err != nil {
				return err
			}
		default:
			var d Details
			if err := json.Unmarshal(raw, &d); err != nil {
				return err
			}
			r.Details = &d
		}
	}
	return nil
}

// Client performs reputation lookups
type Client struct {
	apiURL string
	apiKey string
	client *http.Client
}

// NewClient creates a reputation client from configuration
func NewClient(cfg config.ReputationConfig) *Client {
	return &Client{
		apiURL: cfg.APIURL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Lookup queries the reputation of a single address. Any transport, status or
// service-level failure is an error; callers decide whether to fail closed.
func (c *Client) Lookup(ctx context.Context, ip string) (Result, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("vpn", "1")
	q.Set("asn", "1")
	endpoint := fmt.Sprintf("%s/%s?%s", c.apiURL, url.PathEscape(ip), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, fmt.Errorf("reputation: build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("reputation: lookup request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("reputation: lookup returned status %d", resp.StatusCode)
	}

	var buf bytes.Buffer
	var parsed apiResponse
	if err := json.NewDecoder(io.TeeReader(resp.Body, &buf)).Decode(&parsed); err != nil {
		return Result{}, fmt.Errorf("reputation: decode lookup response: %w", err)
	}
	if parsed.Status != "ok" {
		return Result{}, fmt.Errorf("reputation: service status %q: %s", parsed.Status, parsed.Message)
	}
	if parsed.Details == nil {
		return Result{}, fmt.Errorf("reputation: response missing address entry")
	}

	return Result{
		Node:    parsed.Node,
		Details: *parsed.Details,
		Raw:     json.RawMessage(buf.Bytes()),
	}, nil
}

// Disallowed evaluates a lookup against policy and returns the first matching
// rejection reason. Blocked countries are checked after the category flags.
func Disallowed(r Result, blockedCountries []string) (string, bool) {
	d := r.Details
	det := r.Details.Detections
	if det == nil {
		det = &Detections{}
	}

	checks := []struct {
		flagged bool
		reason  string
	}{
		{bool(d.Proxy) || bool(det.Proxy), "proxy"},
		{bool(d.VPN) || bool(det.VPN), "vpn"},
		{bool(d.Tor) || bool(det.Tor), "tor"},
		{bool(det.Hosting), "hosting"},
		{bool(det.Compromised), "compromised"},
		{bool(det.Scraper), "scraper"},
		{bool(det.Anonymous), "anonymous"},
	}
	for _, c := range checks {
		if c.flagged {
			return c.reason, true
		}
	}

	for _, code := range blockedCountries {
		if d.ISOCode == code {
			return "blocked_country", true
		}
	}
	return "", false
}
