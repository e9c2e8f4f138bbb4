package http1

import (
	"io"
	"testing"

	"github.com/indigo-web/chunkedbody"
	"github.com/stretchr/testify/require"
	"github.com/weft-web/weft/config"
	"github.com/weft-web/weft/http"
	"github.com/weft-web/weft/internal/server/tcp/dummy"
)

func newBodySource(cfg config.Body, client *dummy.CircularClient) *Body {
	settings := chunkedbody.DefaultSettings()
	settings.MaxChunkSize = cfg.MaxChunkSize

	return NewBody(client, chunkedbody.NewParser(settings), cfg)
}

func plainRequest(length int) *http.Request {
	request := http.NewRequest(0, nil, false, forwardedPolicy(), 5)
	request.ContentLength = length

	return request
}

func retrieveAll(t *testing.T, source *Body) string {
	var collected []byte

	for {
		piece, err := source.Retrieve()
		collected = append(collected, piece...)

		switch err {
		case nil:
		case io.EOF:
			return string(collected)
		default:
			t.Fatalf("unexpected body error: %s", err)
		}
	}
}

func TestPlainBody(t *testing.T) {
	t.Run("single piece", func(t *testing.T) {
		client := dummy.NewCircularClient([]byte("Hello, world!")).OneTime()
		source := newBodySource(config.Default().Body, client)
		source.Init(plainRequest(13))

		require.Equal(t, "Hello, world!", retrieveAll(t, source))
	})

	t.Run("dispersed", func(t *testing.T) {
		client := dummy.NewCircularClient([]byte("Hello"), []byte(", wor"), []byte("ld!")).OneTime()
		source := newBodySource(config.Default().Body, client)
		source.Init(plainRequest(13))

		require.Equal(t, "Hello, world!", retrieveAll(t, source))
	})

	t.Run("empty", func(t *testing.T) {
		client := dummy.NewCircularClient().OneTime()
		source := newBodySource(config.Default().Body, client)
		source.Init(plainRequest(0))

		_, err := source.Retrieve()
		require.ErrorIs(t, err, io.EOF)
	})

	t.Run("pipelined remainder is unread", func(t *testing.T) {
		client := dummy.NewCircularClient([]byte("bodyGET /next HTTP/1.1\r\n\r\n")).OneTime()
		source := newBodySource(config.Default().Body, client)
		source.Init(plainRequest(4))

		require.Equal(t, "body", retrieveAll(t, source))

		rest, err := client.Read()
		require.NoError(t, err)
		require.Equal(t, "GET /next HTTP/1.1\r\n\r\n", string(rest))
	})
}

func TestChunkedBody(t *testing.T) {
	request := http.NewRequest(0, nil, false, forwardedPolicy(), 5)
	request.Chunked = true

	client := dummy.NewCircularClient(
		[]byte("7\r\nMozilla\r\n9\r\nDeveloper\r\n7\r\nNetwork\r\n0\r\n\r\n"),
	).OneTime()
	source := newBodySource(config.Default().Body, client)
	source.Init(request)

	require.Equal(t, "MozillaDeveloperNetwork", retrieveAll(t, source))
}

func TestBodyReinit(t *testing.T) {
	client := dummy.NewCircularClient([]byte("firstsecond")).OneTime()
	source := newBodySource(config.Default().Body, client)

	source.Init(plainRequest(5))
	require.Equal(t, "first", retrieveAll(t, source))

	source.Init(plainRequest(6))
	require.Equal(t, "second", retrieveAll(t, source))
}

func TestPlainBodyOverLimit(t *testing.T) {
	cfg := config.Default().Body
	cfg.MaxSize = 8

	client := dummy.NewCircularClient([]byte("way too long to fit")).OneTime()
	source := newBodySource(cfg, client)
	source.Init(plainRequest(19))

	_, err := source.Retrieve()
	require.Error(t, err)
	require.NotErrorIs(t, err, io.EOF)
}
