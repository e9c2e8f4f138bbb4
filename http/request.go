package http

import (
	"net"

	"github.com/weft-web/weft/forwarded"
	"github.com/weft-web/weft/http/method"
	"github.com/weft-web/weft/http/proto"
	"github.com/weft-web/weft/kv"
)

type (
	Headers = *kv.Storage
	Params  = *kv.Storage
)

// Request is the immutable per-request descriptor. It is created once per
// decoded request head and owned by the handling goroutine until its response
// is sequenced; nothing mutates it afterwards.
type Request struct {
	// ID is unique and monotonically increasing across a single connection. It
	// doubles as the response sequence number.
	ID uint64
	// Method is an enum representing the request method.
	Method method.Method
	// RawURI is the request target exactly as it appeared on the wire. Kept for
	// diagnostics, primarily when Path failed strict decoding.
	RawURI string
	// Path is the decoded path component. If strict decoding failed, it holds
	// the raw undecoded path and the request is routed through the error path.
	Path string
	// Params are decoded query parameters, multiple values per name preserved.
	Params Params
	// Protocol the request arrived with.
	Protocol proto.Protocol
	// Headers holds non-normalized header pairs; lookup is case-insensitive.
	Headers Headers
	// ContentLength is the value of the Content-Length header, 0 if absent.
	ContentLength int
	// Chunked is set when Transfer-Encoding includes chunked.
	Chunked bool
	// Connection holds the raw Connection header value, any case.
	Connection string
	// Expect100 is set when the request carries Expect: 100-continue.
	Expect100 bool
	// Upgrade is set when the request asks for a WebSocket upgrade. Whether it
	// actually qualifies is decided by the dispatcher.
	Upgrade bool
	// Body provides access to the settled request body.
	Body *Body

	policy forwarded.Policy
	conn   net.Addr

	remote         net.Addr
	remoteResolved bool
	secure         bool
	secureDirect   bool
	secureResolved bool
}

func NewRequest(id uint64, conn net.Addr, secure bool, policy forwarded.Policy, paramsPrealloc int) *Request {
	return &Request{
		ID:       id,
		Method:   method.Unknown,
		Protocol: proto.HTTP11,
		Params:   kv.NewPrealloc(paramsPrealloc),
		Headers:  kv.New(),
		Body:     new(Body),

		policy:       policy,
		conn:         conn,
		secureDirect: secure,
	}
}

// Remote returns the effective peer address. It is resolved lazily and exactly
// once, honoring the trusted-proxy policy; without trust configured the
// directly observed address is authoritative.
func (r *Request) Remote() net.Addr {
	if !r.remoteResolved {
		r.remote = r.policy.ResolveRemote(r.Headers, r.conn)
		r.remoteResolved = true
	}

	return r.remote
}

// Secure reports whether the request is considered to have arrived over TLS,
// subject to the same trusted-proxy policy as Remote.
func (r *Request) Secure() bool {
	if !r.secureResolved {
		r.secure = r.policy.ResolveSecure(r.Headers, r.conn, r.secureDirect)
		r.secureResolved = true
	}

	return r.secure
}
