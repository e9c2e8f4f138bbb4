// Package router defines how decoded requests are dispatched: the application
// resolves every request into a direct response, an asynchronous action, or a
// WebSocket upgrade.
package router

import (
	"github.com/weft-web/weft/http"
	"github.com/weft-web/weft/ws"
)

// Handler produces the response for an action-resolved request. It runs in
// its own goroutine and may take as long as it needs; responses of pipelined
// requests are re-ordered back into arrival order before hitting the wire.
type Handler func(request *http.Request) *http.Response

// Kind discriminates the resolution variants.
type Kind uint8

const (
	// KindDirect responds immediately, without a handler goroutine. The body
	// is still consumed to keep the connection usable.
	KindDirect Kind = iota + 1
	// KindAction consumes the body, then runs the handler asynchronously.
	KindAction
	// KindWebSocket upgrades the connection and hands it to a ws.Handler.
	KindWebSocket
)

// Resolution is the routing decision for a single request. Exactly one
// variant is populated, per Kind.
type Resolution struct {
	Kind Kind

	// Direct is the prebuilt response for KindDirect.
	Direct *http.Response
	// Action is the handler for KindAction.
	Action Handler
	// Consumer optionally replaces the default buffering body consumer of an
	// action. A nil Consumer buffers the body up to the configured limit.
	Consumer http.BodyConsumer
	// Upgrade is the session handler for KindWebSocket.
	Upgrade ws.Handler
}

// Direct resolves into an immediate, handler-less response.
func Direct(response *http.Response) Resolution {
	return Resolution{Kind: KindDirect, Direct: response}
}

// Action resolves into an asynchronous handler with the default buffering
// body consumer.
func Action(handler Handler) Resolution {
	return Resolution{Kind: KindAction, Action: handler}
}

// ActionWith resolves into an asynchronous handler fed by a custom body
// consumer.
func ActionWith(handler Handler, consumer http.BodyConsumer) Resolution {
	return Resolution{Kind: KindAction, Action: handler, Consumer: consumer}
}

// WebSocket resolves into an upgrade attempt. Requests that do not qualify as
// an upgrade are rejected without invoking the handler.
func WebSocket(handler ws.Handler) Resolution {
	return Resolution{Kind: KindWebSocket, Upgrade: handler}
}

// Router resolves requests into their handling strategy. Resolve runs on the
// connection's reader flow and must not block on the request body.
type Router interface {
	Resolve(request *http.Request) Resolution
}
