package transport

import (
	"github.com/valyala/bytebufferpool"
	"github.com/weft-web/weft/http"
)

// RequestState represents the state of the request head's parsing.
type RequestState uint8

const (
	Pending RequestState = iota + 1
	HeadersCompleted
	Error
)

// Parser is a stream-based request head decoder. It fills the attached
// request object incrementally as data arrives.
//
// Parse may return HeadersCompleted together with a non-nil error: the head
// was framed well enough to keep the connection parseable, but the request is
// semantically malformed (e.g. undecodable path) and must be routed through
// the error-response path.
type Parser interface {
	Attach(request *http.Request)
	Parse(data []byte) (state RequestState, extra []byte, err error)
}

// Writer is where rendered response bytes ultimately go.
type Writer interface {
	Write(b []byte) error
}

// BodySource produces successive pieces of the current request's body,
// io.EOF signalling the end.
type BodySource interface {
	Init(request *http.Request)
	Retrieve() ([]byte, error)
}

// Serializer renders responses into caller-supplied buffers. Render reports
// whether the connection must close once the bytes are flushed; forceClose
// marks requests that left the byte stream unrecoverable.
type Serializer interface {
	Render(dst *bytebufferpool.ByteBuffer, request *http.Request, response *http.Response, forceClose bool) (closeAfter bool)
	RenderContinue(dst *bytebufferpool.ByteBuffer, request *http.Request)
}
