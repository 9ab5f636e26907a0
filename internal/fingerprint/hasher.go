// Package fingerprint derives the hashes used for device reuse detection and
// pseudonymous identity display.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Component names recognized inside a fingerprint payload.
const (
	ComponentWebGL  = "webgl"
	ComponentCanvas = "canvas"
	ComponentAudio  = "audio"
)

// Hashes holds the four composite digests of a fingerprint payload. H3 covers
// all three components; the pairwise hashes survive a single spoofed
// component.
type Hashes struct {
	H3  string // webgl + canvas + audio
	HWC string // webgl + canvas
	HWA string // webgl + audio
	HCA string // canvas + audio
}

// Compute derives all four composite hashes from a raw fingerprint payload.
// The payload is a JSON object of component name to arbitrary component data.
// A missing component contributes an empty string, so partial payloads still
// hash deterministically.
func Compute(payload json.RawMessage) (Hashes, error) {
	var components map[string]json.RawMessage
	if err := json.Unmarshal(payload, &components); err != nil {
		return Hashes{}, fmt.Errorf("invalid fingerprint payload: %w", err)
	}

	webgl, err := canonicalize(components[ComponentWebGL])
	if err != nil {
		return Hashes{}, err
	}
	canvas, err := canonicalize(components[ComponentCanvas])
	if err != nil {
		return Hashes{}, err
	}
	audio, err := canonicalize(components[ComponentAudio])
	if err != nil {
		return Hashes{}, err
	}

	return Hashes{
		H3:  digest(webgl, canvas, audio),
		HWC: digest(webgl, canvas),
		HWA: digest(webgl, audio),
		HCA: digest(canvas, audio),
	}, nil
}

// digest joins the parts with a separator that cannot occur inside canonical
// JSON text, then hashes. Without the separator, ("ab","c") and ("a","bc")
// would collide.
func digest(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0x1f})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalize renders a JSON value into a byte-stable form: object keys
// sorted, no insignificant whitespace, numbers kept verbatim. Two payloads
// that differ only in key order or float formatting canonicalize identically.
func canonicalize(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("invalid fingerprint component: %w", err)
	}
	var sb strings.Builder
	writeCanonical(&sb, v)
	return sb.String(), nil
}

func writeCanonical(sb *strings.Builder, v interface{}) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeJSONString(sb, k)
			sb.WriteByte(':')
			writeCanonical(sb, val[k])
		}
		sb.WriteByte('}')
	case []interface{}:
		sb.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeCanonical(sb, item)
		}
		sb.WriteByte(']')
	case json.Number:
		sb.WriteString(val.String())
	case string:
		writeJSONString(sb, val)
	case bool:
		if val {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	default:
		sb.WriteString("null")
	}
}

func writeJSONString(sb *strings.Builder, s string) {
	encoded, _ := json.Marshal(s)
	sb.Write(encoded)
}
