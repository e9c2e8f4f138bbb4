package ws

import (
	"crypto/sha1"
	"encoding/base64"
	"strings"

	"github.com/indigo-web/utils/strcomp"
	"github.com/weft-web/weft/http"
	"github.com/weft-web/weft/http/method"
	"github.com/weft-web/weft/http/proto"
	"github.com/weft-web/weft/http/status"
)

// the magic handshake GUID, RFC 6455 section 1.3
const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// Qualifies reports whether the request is a well-formed WebSocket upgrade:
// a GET over HTTP/1.1 carrying the upgrade headers, version 13 and a valid
// 16-byte nonce.
func Qualifies(request *http.Request) bool {
	if request.Method != method.GET || request.Protocol != proto.HTTP11 {
		return false
	}

	if !strcomp.EqualFold(request.Headers.Value("Upgrade"), "websocket") {
		return false
	}

	if !hasToken(request.Connection, "upgrade") {
		return false
	}

	if request.Headers.Value("Sec-WebSocket-Version") != "13" {
		return false
	}

	nonce, err := base64.StdEncoding.DecodeString(request.Headers.Value("Sec-WebSocket-Key"))

	return err == nil && len(nonce) == 16
}

// AcceptKey computes the Sec-WebSocket-Accept value for a client key.
func AcceptKey(key string) string {
	sum := sha1.Sum([]byte(key + acceptGUID))

	return base64.StdEncoding.EncodeToString(sum[:])
}

// Upgrade fills the builder with the 101 Switching Protocols handshake
// response for the request. The request must have passed Qualifies.
func Upgrade(request *http.Request, response *http.Response) *http.Response {
	return response.
		Code(status.SwitchingProtocols).
		Header("Upgrade", "websocket").
		Header("Connection", "Upgrade").
		Header("Sec-WebSocket-Accept", AcceptKey(request.Headers.Value("Sec-WebSocket-Key")))
}

// hasToken reports whether a comma-separated header value contains the token,
// case-insensitively.
func hasToken(value, token string) bool {
	for len(value) > 0 {
		var piece string

		if comma := strings.IndexByte(value, ','); comma != -1 {
			piece, value = value[:comma], value[comma+1:]
		} else {
			piece, value = value, ""
		}

		if strcomp.EqualFold(strings.TrimSpace(piece), token) {
			return true
		}
	}

	return false
}
