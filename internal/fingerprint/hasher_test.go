package fingerprint

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDeterministic(t *testing.T) {
	payload := json.RawMessage(`{"webgl":{"vendor":"x","renderer":"y"},"canvas":"abc","audio":123.456}`)

	first, err := Compute(payload)
	require.NoError(t, err)
	second, err := Compute(payload)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first.H3, 64)
	assert.Len(t, first.HWC, 64)
	assert.Len(t, first.HWA, 64)
	assert.Len(t, first.HCA, 64)
}

func TestComputeKeyOrderInvariant(t *testing.T) {
	a, err := Compute(json.RawMessage(`{"webgl":{"a":1,"b":2},"canvas":"c","audio":1}`))
	require.NoError(t, err)
	b, err := Compute(json.RawMessage(`{"audio":1,"canvas":"c","webgl":{"b":2,"a":1}}`))
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestComputeSingleComponentChange(t *testing.T) {
	base, err := Compute(json.RawMessage(`{"webgl":"w","canvas":"c","audio":"a"}`))
	require.NoError(t, err)
	spoofedAudio, err := Compute(json.RawMessage(`{"webgl":"w","canvas":"c","audio":"different"}`))
	require.NoError(t, err)

	// Changing audio flips every hash that includes audio and preserves the
	// webgl+canvas pair.
	assert.NotEqual(t, base.H3, spoofedAudio.H3)
	assert.NotEqual(t, base.HWA, spoofedAudio.HWA)
	assert.NotEqual(t, base.HCA, spoofedAudio.HCA)
	assert.Equal(t, base.HWC, spoofedAudio.HWC)
}

func TestComputeMissingComponent(t *testing.T) {
	partial, err := Compute(json.RawMessage(`{"webgl":"w","canvas":"c"}`))
	require.NoError(t, err)
	explicit, err := Compute(json.RawMessage(`{"webgl":"w","canvas":"c","extra":"ignored"}`))
	require.NoError(t, err)

	// Unknown components are ignored; a missing one hashes as empty.
	assert.Equal(t, partial, explicit)
	assert.NotEmpty(t, partial.H3)
}

func TestComputeNumberFormatting(t *testing.T) {
	// Float precision must survive canonicalization verbatim.
	a, err := Compute(json.RawMessage(`{"audio":124.04347527516074}`))
	require.NoError(t, err)
	b, err := Compute(json.RawMessage(`{"audio":124.04347527516074}`))
	require.NoError(t, err)
	c, err := Compute(json.RawMessage(`{"audio":124.043475275161}`))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a.HCA, c.HCA)
}

func TestComputeInvalidPayload(t *testing.T) {
	_, err := Compute(json.RawMessage(`not json`))
	assert.Error(t, err)

	_, err = Compute(json.RawMessage(`[1,2,3]`))
	assert.Error(t, err)
}

func TestDigestSeparator(t *testing.T) {
	// ("ab","c") and ("a","bc") must not collide.
	assert.NotEqual(t, digest("ab", "c"), digest("a", "bc"))
}
