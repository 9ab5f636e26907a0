package fingerprint

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPermanentHashes(t *testing.T) {
	h := NewHasher("identity-salt", "daily-salt")

	// Stable across calls.
	assert.Equal(t, h.UserHash("u1"), h.UserHash("u1"))
	assert.Len(t, h.UserHash("u1"), 64)

	// Different inputs, different hashes.
	assert.NotEqual(t, h.UserHash("u1"), h.UserHash("u2"))

	// Subjects are keyspace-separated: the same raw value hashes differently
	// as user, address and device.
	assert.NotEqual(t, h.UserHash("same"), h.IPHash("same"))
	assert.NotEqual(t, h.IPHash("same"), h.DeviceHash("same"))
}

func TestPermanentHashSaltDependence(t *testing.T) {
	a := NewHasher("salt-a", "daily")
	b := NewHasher("salt-b", "daily")

	assert.NotEqual(t, a.UserHash("u1"), b.UserHash("u1"))
}

func TestDisplayID(t *testing.T) {
	h := NewHasher("identity-salt", "daily-salt")
	day := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	id := h.DisplayID("userhash", day)
	assert.Regexp(t, regexp.MustCompile(`^[A-Za-z0-9_-]{8}-[A-Za-z0-9_-]{4}-[A-Za-z0-9_-]{4}$`), id)

	// Same user, same day: stable. Times within the day do not matter.
	assert.Equal(t, id, h.DisplayID("userhash", day.Add(13*time.Hour)))

	// Rotates at the UTC day boundary.
	assert.NotEqual(t, id, h.DisplayID("userhash", day.AddDate(0, 0, 1)))

	// Different users never share an ID on the same day.
	assert.NotEqual(t, id, h.DisplayID("otherhash", day))
}
