// Package simple is a flat method+path table router. It covers exact-match
// routing; anything fancier is the application's business.
package simple

import (
	"github.com/weft-web/weft/http"
	"github.com/weft-web/weft/http/method"
	"github.com/weft-web/weft/http/status"
	"github.com/weft-web/weft/router"
	"github.com/weft-web/weft/ws"
)

type Mux struct {
	routes map[string]map[method.Method]router.Resolution
}

func New() *Mux {
	return &Mux{
		routes: make(map[string]map[method.Method]router.Resolution),
	}
}

// Route binds a resolution to an exact method and path.
func (m *Mux) Route(meth method.Method, path string, resolution router.Resolution) *Mux {
	methods, ok := m.routes[path]
	if !ok {
		methods = make(map[method.Method]router.Resolution)
		m.routes[path] = methods
	}

	methods[meth] = resolution

	return m
}

func (m *Mux) Get(path string, handler router.Handler) *Mux {
	return m.Route(method.GET, path, router.Action(handler))
}

func (m *Mux) Post(path string, handler router.Handler) *Mux {
	return m.Route(method.POST, path, router.Action(handler))
}

func (m *Mux) Put(path string, handler router.Handler) *Mux {
	return m.Route(method.PUT, path, router.Action(handler))
}

func (m *Mux) Delete(path string, handler router.Handler) *Mux {
	return m.Route(method.DELETE, path, router.Action(handler))
}

// WebSocket binds an upgrade endpoint at the path.
func (m *Mux) WebSocket(path string, handler ws.Handler) *Mux {
	return m.Route(method.GET, path, router.WebSocket(handler))
}

func (m *Mux) Resolve(request *http.Request) router.Resolution {
	methods, ok := m.routes[request.Path]
	if !ok {
		return router.Direct(http.NewResponse().Code(status.NotFound))
	}

	resolution, ok := methods[request.Method]
	if !ok {
		// HEAD falls back to the GET route, the serializer strips the body
		if request.Method == method.HEAD {
			if resolution, ok = methods[method.GET]; ok {
				return resolution
			}
		}

		return router.Direct(http.NewResponse().Code(status.MethodNotAllowed).Header("Allow", allowed(methods)))
	}

	return resolution
}

func allowed(methods map[method.Method]router.Resolution) string {
	var list string

	for meth := range methods {
		if list != "" {
			list += ", "
		}
		list += meth.String()
	}

	return list
}
