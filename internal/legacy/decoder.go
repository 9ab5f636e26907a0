// Package legacy implements the wire format spoken by classic bulletin-board
// client software: Shift_JIS percent-encoded form submissions in, Shift_JIS
// HTML result pages out.
package legacy

import (
	"bytes"
	"html"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
)

// Form is an ordered mapping of decoded field names to decoded values.
// Duplicate keys keep their first position; the last value wins.
type Form struct {
	keys   []string
	values map[string]string
}

// Get returns the decoded value for name, or the empty string
func (f *Form) Get(name string) string {
	return f.values[name]
}

// Lookup returns the decoded value for name and whether it was present
func (f *Form) Lookup(name string) (string, bool) {
	v, ok := f.values[name]
	return v, ok
}

// Keys returns the field names in submission order
func (f *Form) Keys() []string {
	return f.keys
}

// Len returns the number of distinct fields
func (f *Form) Len() int {
	return len(f.keys)
}

func (f *Form) set(name, value string) {
	if _, ok := f.values[name]; !ok {
		f.keys = append(f.keys, name)
	}
	f.values[name] = value
}

// ParseForm decodes a raw application/x-www-form-urlencoded body from a
// legacy client. It never fails: malformed escapes, truncated multi-byte
// sequences and stray UTF-8 runs all degrade to best-effort text instead of
// an error. Absent required fields are the caller's problem, not the
// decoder's.
func ParseForm(raw []byte) *Form {
	form := &Form{values: make(map[string]string)}

	for _, segment := range bytes.Split(raw, []byte{'&'}) {
		if len(segment) == 0 {
			continue
		}
		name := segment
		var value []byte
		if idx := bytes.IndexByte(segment, '='); idx >= 0 {
			name = segment[:idx]
			value = segment[idx+1:]
		}
		form.set(DecodeField(name), DecodeField(value))
	}

	return form
}

// DecodeField runs the full field pipeline: percent-unescaping, best-effort
// Shift_JIS decoding, then HTML entity decoding.
func DecodeField(b []byte) string {
	return html.UnescapeString(decodeShiftJISBestEffort(percentDecode(b)))
}

// percentDecode resolves every valid %XX triplet to its byte value and maps
// '+' to space. A '%' that does not start a valid triplet passes through as
// a literal byte.
func percentDecode(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); {
		switch {
		case b[i] == '%' && i+2 < len(b) && isHex(b[i+1]) && isHex(b[i+2]):
			out = append(out, unhex(b[i+1])<<4|unhex(b[i+2]))
			i += 3
		case b[i] == '+':
			out = append(out, ' ')
			i++
		default:
			out = append(out, b[i])
			i++
		}
	}
	return out
}

func isHex(c byte) bool {
	switch {
	case '0' <= c && c <= '9':
		return true
	case 'a' <= c && c <= 'f':
		return true
	case 'A' <= c && c <= 'F':
		return true
	}
	return false
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// decodeShiftJISBestEffort walks the buffer decoding the longest valid
// Shift_JIS sequence at each position (two bytes, then one). When neither
// length decodes, the bytes at the cursor are interpreted as one UTF-8 rune
// and emitted as-is, so embedded emoji inside an otherwise Shift_JIS stream
// survive, then decoding resumes at the next position. Total: no input can
// make it fail.
func decodeShiftJISBestEffort(b []byte) string {
	var sb bytes.Buffer
	for i := 0; i < len(b); {
		max := 2
		if len(b)-i < max {
			max = len(b) - i
		}

		consumed := 0
		for n := max; n >= 1; n-- {
			if s, ok := decodeShiftJISWindow(b[i : i+n]); ok {
				sb.WriteString(s)
				consumed = n
				break
			}
		}
		if consumed > 0 {
			i += consumed
			continue
		}

		// Raw passthrough: one UTF-8 rune, or U+FFFD for a byte that is
		// valid in neither encoding.
		r, size := utf8.DecodeRune(b[i:])
		sb.WriteRune(r)
		i += size
	}
	return sb.String()
}

// decodeShiftJISWindow reports whether the window is a complete, valid
// Shift_JIS sequence and returns its decoded text. The x/text decoder
// substitutes U+FFFD for anything invalid rather than erroring, and U+FFFD
// itself is not Shift_JIS-encodable, so its presence is a reliable failure
// signal.
func decodeShiftJISWindow(window []byte) (string, bool) {
	decoded, err := japanese.ShiftJIS.NewDecoder().Bytes(window)
	if err != nil {
		return "", false
	}
	if bytes.ContainsRune(decoded, utf8.RuneError) {
		return "", false
	}
	return string(decoded), true
}
