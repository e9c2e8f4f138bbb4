package simple

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/weft-web/weft/forwarded"
	"github.com/weft-web/weft/http"
	"github.com/weft-web/weft/http/method"
	"github.com/weft-web/weft/http/status"
	"github.com/weft-web/weft/router"
	"github.com/weft-web/weft/ws"
)

func request(m method.Method, path string) *http.Request {
	r := http.NewRequest(0, nil, false, forwarded.Policy{}, 5)
	r.Method = m
	r.Path = path

	return r
}

func TestResolve(t *testing.T) {
	mux := New().
		Get("/users", func(request *http.Request) *http.Response {
			return http.NewResponse().String("users")
		}).
		Post("/users", func(request *http.Request) *http.Response {
			return http.NewResponse().Code(status.Created)
		})

	t.Run("exact match", func(t *testing.T) {
		resolution := mux.Resolve(request(method.GET, "/users"))
		require.Equal(t, router.KindAction, resolution.Kind)
		require.NotNil(t, resolution.Action)
	})

	t.Run("method picks the variant", func(t *testing.T) {
		resolution := mux.Resolve(request(method.POST, "/users"))
		require.Equal(t, router.KindAction, resolution.Kind)
		require.Equal(t, status.Created, resolution.Action(request(method.POST, "/users")).Reveal().Code)
	})

	t.Run("head falls back to get", func(t *testing.T) {
		resolution := mux.Resolve(request(method.HEAD, "/users"))
		require.Equal(t, router.KindAction, resolution.Kind)
	})

	t.Run("unknown path", func(t *testing.T) {
		resolution := mux.Resolve(request(method.GET, "/nothing"))
		require.Equal(t, router.KindDirect, resolution.Kind)
		require.Equal(t, status.NotFound, resolution.Direct.Reveal().Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		resolution := mux.Resolve(request(method.DELETE, "/users"))
		require.Equal(t, router.KindDirect, resolution.Kind)

		fields := resolution.Direct.Reveal()
		require.Equal(t, status.MethodNotAllowed, fields.Code)

		var allow string
		for _, header := range fields.Headers {
			if header.Key == "Allow" {
				allow = header.Value
			}
		}
		require.Contains(t, allow, "GET")
		require.Contains(t, allow, "POST")
	})
}

func TestDirectAndWebSocketRoutes(t *testing.T) {
	mux := New().
		Route(method.GET, "/static", router.Direct(http.NewResponse().String("fixed"))).
		WebSocket("/live", func(*http.Request, <-chan ws.Message, chan<- ws.Message) {})

	resolution := mux.Resolve(request(method.GET, "/static"))
	require.Equal(t, router.KindDirect, resolution.Kind)

	resolution = mux.Resolve(request(method.GET, "/live"))
	require.Equal(t, router.KindWebSocket, resolution.Kind)
	require.NotNil(t, resolution.Upgrade)
}
