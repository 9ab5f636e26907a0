package legacy

import (
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
)

// ContentType is the response content type legacy clients expect
const ContentType = "text/html; charset=Shift_JIS"

const successPage = `<html>
<head>
<title>書きこみました。</title>
<meta http-equiv="refresh" content="2;URL=%s">
</head>
<body>書きこみが終わりました。<br><br>
画面を切り替えるまでしばらくお待ち下さい。
</body>
</html>
`

const errorPage = `<html>
<head>
<title>ＥＲＲＯＲ！</title>
</head>
<body>ERROR: %s
</body>
</html>
`

const notVerifiedPage = `<html>
<head>
<title>ＥＲＲＯＲ！</title>
</head>
<body>ERROR: 書き込みには認証が必要です。<br>
ブラウザで認証を完了してから、もう一度書き込んでください。
</body>
</html>
`

// SuccessPage renders the post-success page with a 2-second redirect to the
// canonical thread URL.
func SuccessPage(redirectURL string) string {
	return fmt.Sprintf(successPage, redirectURL)
}

// ErrorPage renders a failure page with a human-readable reason
func ErrorPage(reason string) string {
	return fmt.Sprintf(errorPage, reason)
}

// NotVerifiedPage renders the dedicated failure page shown to clients that
// have not completed verification.
func NotVerifiedPage() string {
	return notVerifiedPage
}

// EncodeShiftJIS converts text to Shift_JIS bytes. Runes outside the charset
// degrade to numeric character references instead of failing, so a body
// containing emoji still round-trips losslessly through an entity-aware
// client.
func EncodeShiftJIS(s string) ([]byte, error) {
	return encoding.HTMLEscapeUnsupported(japanese.ShiftJIS.NewEncoder()).Bytes([]byte(s))
}

// WriteResponse sends a legacy page: Shift_JIS body, explicit Content-Length,
// never chunked.
func WriteResponse(w http.ResponseWriter, status int, body string) {
	encoded, err := EncodeShiftJIS(body)
	if err != nil {
		// Encoding with entity fallback only fails on invalid UTF-8 input;
		// send the raw bytes rather than nothing.
		encoded = []byte(body)
	}
	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(encoded)))
	w.WriteHeader(status)
	w.Write(encoded)
}
