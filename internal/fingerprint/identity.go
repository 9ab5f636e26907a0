package fingerprint

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"
)

// Identity subject prefixes keep user, address and device hashes in disjoint
// keyspaces even when their raw inputs collide.
const (
	subjectUser   = "user"
	subjectIP     = "ip"
	subjectDevice = "device"
)

// Hasher produces the permanent identity hashes and the rotating display IDs.
// The identity salt never rotates; the daily salt feeds a date-scoped key so
// display IDs change at midnight UTC.
type Hasher struct {
	identitySalt []byte
	dailySalt    []byte
}

// NewHasher creates an identity hasher from the two configured salts
func NewHasher(identitySalt, dailySalt string) *Hasher {
	return &Hasher{
		identitySalt: []byte(identitySalt),
		dailySalt:    []byte(dailySalt),
	}
}

// UserHash returns the permanent hash for a user ID
func (h *Hasher) UserHash(userID string) string {
	return h.permanent(subjectUser, userID)
}

// IPHash returns the permanent hash for a client address
func (h *Hasher) IPHash(ip string) string {
	return h.permanent(subjectIP, ip)
}

// DeviceHash returns the permanent hash for a device fingerprint digest
func (h *Hasher) DeviceHash(deviceDigest string) string {
	return h.permanent(subjectDevice, deviceDigest)
}

func (h *Hasher) permanent(subject, value string) string {
	mac := hmac.New(sha256.New, h.identitySalt)
	fmt.Fprintf(mac, "%s:%s", subject, value)
	return hex.EncodeToString(mac.Sum(nil))
}

// DisplayID derives the public per-day poster ID shown next to a comment, in
// the classic 8-4-4 form. Same user, same day: same ID. The permanent hash
// never appears in the output.
func (h *Hasher) DisplayID(userHash string, day time.Time) string {
	mac := hmac.New(sha256.New, h.dailySalt)
	fmt.Fprintf(mac, "%s:%s", day.UTC().Format("2006-01-02"), userHash)
	sum := mac.Sum(nil)

	encoded := base64.RawURLEncoding.EncodeToString(sum)
	return fmt.Sprintf("%s-%s-%s", encoded[:8], encoded[8:12], encoded[12:16])
}
