package ws

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/weft-web/weft/forwarded"
	"github.com/weft-web/weft/http"
	"github.com/weft-web/weft/http/method"
	"github.com/weft-web/weft/http/proto"
	"github.com/weft-web/weft/http/status"
)

func upgradeRequest() *http.Request {
	request := http.NewRequest(0, nil, false, forwarded.Policy{}, 5)
	request.Method = method.GET
	request.Protocol = proto.HTTP11
	request.Connection = "Upgrade"
	request.Headers.Add("Upgrade", "websocket")
	request.Headers.Add("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	request.Headers.Add("Sec-WebSocket-Version", "13")

	return request
}

func TestQualifies(t *testing.T) {
	require.True(t, Qualifies(upgradeRequest()))

	t.Run("wrong method", func(t *testing.T) {
		request := upgradeRequest()
		request.Method = method.POST
		require.False(t, Qualifies(request))
	})

	t.Run("wrong protocol", func(t *testing.T) {
		request := upgradeRequest()
		request.Protocol = proto.HTTP10
		require.False(t, Qualifies(request))
	})

	t.Run("connection without the upgrade token", func(t *testing.T) {
		request := upgradeRequest()
		request.Connection = "keep-alive"
		require.False(t, Qualifies(request))
	})

	t.Run("upgrade token among others", func(t *testing.T) {
		request := upgradeRequest()
		request.Connection = "keep-alive, Upgrade"
		require.True(t, Qualifies(request))
	})

	t.Run("unsupported version", func(t *testing.T) {
		request := http.NewRequest(0, nil, false, forwarded.Policy{}, 5)
		request.Method = method.GET
		request.Protocol = proto.HTTP11
		request.Connection = "Upgrade"
		request.Headers.Add("Upgrade", "websocket")
		request.Headers.Add("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
		request.Headers.Add("Sec-WebSocket-Version", "8")
		require.False(t, Qualifies(request))
	})

	t.Run("bad nonce", func(t *testing.T) {
		request := http.NewRequest(0, nil, false, forwarded.Policy{}, 5)
		request.Method = method.GET
		request.Protocol = proto.HTTP11
		request.Connection = "Upgrade"
		request.Headers.Add("Upgrade", "websocket")
		request.Headers.Add("Sec-WebSocket-Key", "tooshort")
		request.Headers.Add("Sec-WebSocket-Version", "13")
		require.False(t, Qualifies(request))
	})
}

func TestAcceptKey(t *testing.T) {
	// the example exchange from RFC 6455 section 1.3
	require.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", AcceptKey("dGhlIHNhbXBsZSBub25jZQ=="))
}

func TestUpgradeResponse(t *testing.T) {
	fields := Upgrade(upgradeRequest(), http.NewResponse()).Reveal()

	require.Equal(t, status.SwitchingProtocols, fields.Code)

	headers := map[string]string{}
	for _, header := range fields.Headers {
		headers[header.Key] = header.Value
	}

	require.Equal(t, "websocket", headers["Upgrade"])
	require.Equal(t, "Upgrade", headers["Connection"])
	require.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", headers["Sec-WebSocket-Accept"])
}
