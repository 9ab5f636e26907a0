package legacy

import (
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteResponse(t *testing.T) {
	w := httptest.NewRecorder()
	WriteResponse(w, 200, SuccessPage("../../news/read.cgi/12345/"))

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, ContentType, w.Header().Get("Content-Type"))

	body := w.Body.Bytes()
	assert.Equal(t, strconv.Itoa(len(body)), w.Header().Get("Content-Length"))
	assert.Contains(t, string(body), "../../news/read.cgi/12345/")

	// 書きこみました in Shift_JIS, not UTF-8.
	assert.Contains(t, string(body), string([]byte{0x8F, 0x91}))
	assert.NotContains(t, string(body), "書")
}

func TestEncodeShiftJIS(t *testing.T) {
	encoded, err := EncodeShiftJIS("テスト")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x83, 0x65, 0x83, 0x58, 0x83, 0x67}, encoded)
}

func TestEncodeShiftJISUnsupportedRune(t *testing.T) {
	// Runes outside the charset become numeric character references.
	encoded, err := EncodeShiftJIS("ok🎉")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(encoded), "ok&#"))
}

func TestErrorPages(t *testing.T) {
	assert.Contains(t, ErrorPage("本文がありません。"), "本文がありません。")
	assert.Contains(t, NotVerifiedPage(), "認証")
}
