// Package pipeline drives a single accepted connection: it decodes request
// heads, streams bodies through their consumers, dispatches handlers and
// funnels every response through the sequencer back into arrival order.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/weft-web/weft/config"
	"github.com/weft-web/weft/forwarded"
	"github.com/weft-web/weft/http"
	"github.com/weft-web/weft/http/status"
	"github.com/weft-web/weft/internal/body"
	"github.com/weft-web/weft/internal/sequencer"
	"github.com/weft-web/weft/internal/server/tcp"
	"github.com/weft-web/weft/internal/transport"
	"github.com/weft-web/weft/router"
	"github.com/weft-web/weft/ws"
)

var errNilResponse = errors.New("handler returned no response")

// Env carries everything a connection's pipeline is built from.
type Env struct {
	Config     *config.Config
	Client     tcp.Client
	Parser     transport.Parser
	Body       transport.BodySource
	Serializer transport.Serializer
	Sequencer  *sequencer.Sequencer
	Router     router.Router
	Errors     router.ErrorHandler
	Forwarded  forwarded.Policy
	Secure     bool
}

// Pipeline is the reader flow of one connection. It is the only goroutine
// that touches the transport's read side; handler goroutines it spawns only
// ever talk to the sequencer.
type Pipeline struct {
	env    Env
	nextID uint64
}

func New(env Env) *Pipeline {
	p := &Pipeline{env: env}
	env.Sequencer.NotifyClose(func() {
		_ = env.Client.Close()
	})

	return p
}

// Serve owns the connection until teardown. Pending responses are flushed
// before the transport is closed, whatever the reason for stopping.
func (p *Pipeline) Serve() {
	for p.serveOne() {
		if p.env.Sequencer.Closing() {
			break
		}
	}

	_ = p.env.Sequencer.Drain()
	_ = p.env.Client.Close()
}

// serveOne handles a single request start to dispatch and reports whether the
// connection may carry another one.
func (p *Pipeline) serveOne() bool {
	request := http.NewRequest(
		p.nextID, p.env.Client.Remote(), p.env.Secure, p.env.Forwarded, p.env.Config.URI.ParamsPrealloc,
	)
	p.nextID++
	p.env.Parser.Attach(request)

	state, headErr := p.nextHead()
	if state == 0 {
		// the transport died mid-head. A clean EOF between requests is the
		// ordinary end of a connection's life, anything else gets logged.
		if !errors.Is(headErr, io.EOF) {
			log.Printf("http: reading %s failed: %s", p.env.Client.Remote(), headErr)
		}

		return false
	}

	ticket := p.env.Sequencer.Reserve()

	if state == transport.Error {
		// limit or framing violation: the rest of the stream cannot be
		// trusted, reject and close
		p.respond(ticket, request, p.env.Errors.OnClientError(request, headErr), true)
		return false
	}

	p.env.Body.Init(request)

	if headErr != nil {
		// framed but semantically malformed (undecodable path and such). The
		// body length is still known, so the connection survives.
		forceClose, err := p.swallowBody(request)
		if err != nil {
			return p.dispose(ticket, request, err, false, false)
		}

		return p.respond(ticket, request, p.env.Errors.OnClientError(request, headErr), forceClose)
	}

	resolution := p.env.Router.Resolve(request)
	switch resolution.Kind {
	case router.KindDirect:
		forceClose, err := p.swallowBody(request)
		if err != nil {
			return p.dispose(ticket, request, err, false, false)
		}

		return p.respond(ticket, request, resolution.Direct, forceClose)
	case router.KindAction:
		return p.action(ticket, request, resolution)
	case router.KindWebSocket:
		return p.websocket(ticket, request, resolution.Upgrade)
	default:
		panic("BUG: router returned unknown resolution kind")
	}
}

// nextHead reads until the parser reaches a verdict on the current request's
// head. A zero state means the transport failed before one.
func (p *Pipeline) nextHead() (transport.RequestState, error) {
	for {
		data, err := p.env.Client.Read()
		if err != nil {
			return 0, err
		}

		state, extra, err := p.env.Parser.Parse(data)
		if state == transport.Pending {
			continue
		}

		p.env.Client.Unread(extra)

		return state, err
	}
}

// action streams the body through the consumer on the reader flow, then hands
// the settled request to the handler goroutine. The ticket travels with it.
func (p *Pipeline) action(ticket *sequencer.Ticket, request *http.Request, resolution router.Resolution) bool {
	consumer := resolution.Consumer
	var buffered *body.Buffered
	if consumer == nil {
		buffered = body.NewBuffered(p.env.Config.Body.MaxSize)
		consumer = buffered
	}

	acc := body.NewAccumulator(p.env.Body, consumer)

	beginState, beginErr := acc.Begin()
	switch beginState {
	case http.BodyAwaitingMore:
		if request.Expect100 {
			interim := ticket.Buffer()
			p.env.Serializer.RenderContinue(interim, request)

			if err := ticket.Write(interim); err != nil {
				_ = ticket.Finalize(nil, true)
				return false
			}
		}

		if err := acc.Run(); err != nil {
			return p.dispose(ticket, request, err, acc.Recovered(), acc.ConsumerFailed())
		}
	case http.BodyDone:
	case http.BodyFailed:
		// a failure at Begin left any present body unread
		return p.dispose(ticket, request, beginErr, !hasBody(request), true)
	}

	// a consumer that settled without soliciting the body left it on the
	// wire: such a connection cannot be read further
	forceClose := acc.EarlySettled() ||
		(beginState == http.BodyDone && hasBody(request))

	contentType := request.Headers.Value("Content-Type")
	if buffered != nil {
		request.Body.Settle(buffered.Bytes(), contentType, nil)
	} else {
		// custom consumers hold their parsed outcome themselves
		request.Body.Settle(nil, contentType, nil)
	}

	go p.invoke(ticket, request, resolution.Action, forceClose)

	return !forceClose
}

// invoke runs in the handler goroutine: call, render, sequence.
func (p *Pipeline) invoke(ticket *sequencer.Ticket, request *http.Request, handler router.Handler, forceClose bool) {
	response := p.safeCall(request, handler)

	buf := ticket.Buffer()
	closeAfter := p.env.Serializer.Render(buf, request, response, forceClose)
	_ = ticket.Finalize(buf, closeAfter)
}

func (p *Pipeline) safeCall(request *http.Request, handler router.Handler) (response *http.Response) {
	defer func() {
		if v := recover(); v != nil {
			log.Printf("http: handler of %s %s panicked: %v", request.Method, request.Path, v)
			response = p.env.Errors.OnServerError(request, fmt.Errorf("%v", v))
		}
	}()

	response = handler(request)
	if response == nil {
		response = p.env.Errors.OnServerError(request, errNilResponse)
	}

	return response
}

func (p *Pipeline) websocket(ticket *sequencer.Ticket, request *http.Request, handler ws.Handler) bool {
	if !ws.Qualifies(request) {
		return p.respond(ticket, request, p.env.Errors.OnClientError(request, status.ErrBadUpgrade), false)
	}

	if !p.respond(ticket, request, ws.Upgrade(request, http.NewResponse()), false) {
		return false
	}

	// every earlier response and the handshake itself must be on the wire
	// before the session takes the transport over
	if err := p.env.Sequencer.Drain(); err != nil {
		return false
	}

	ws.NewSession(p.env.Client, p.env.Config.WS, handler).Run(request)

	return false
}

// swallowBody discards a body nobody asked for. An Expect: 100-continue body
// was never solicited and thus never sent, so there is nothing to read, but
// the connection cannot be reused either.
func (p *Pipeline) swallowBody(request *http.Request) (forceClose bool, err error) {
	if !hasBody(request) {
		return false, nil
	}

	if request.Expect100 {
		return true, nil
	}

	for {
		_, err = p.env.Body.Retrieve()
		switch err {
		case nil:
		case io.EOF:
			return false, nil
		default:
			return false, err
		}
	}
}

// respond renders and sequences a response produced on the reader flow,
// reporting whether the connection may carry on.
func (p *Pipeline) respond(ticket *sequencer.Ticket, request *http.Request, response *http.Response, forceClose bool) bool {
	buf := ticket.Buffer()
	closeAfter := p.env.Serializer.Render(buf, request, response, forceClose)
	_ = ticket.Finalize(buf, closeAfter)

	return !closeAfter
}

// dispose handles a body failure. Client-attributable errors travel through
// OnClientError, consumer faults through OnServerError, transport ones just
// release the ticket; the connection survives when the stream was drained
// through its end.
func (p *Pipeline) dispose(ticket *sequencer.Ticket, request *http.Request, err error, recovered, consumerFault bool) bool {
	var (
		httpErr  status.HTTPError
		response *http.Response
	)

	switch {
	case errors.As(err, &httpErr):
		response = p.env.Errors.OnClientError(request, err)
	case consumerFault:
		response = p.env.Errors.OnServerError(request, err)
	default:
		_ = ticket.Finalize(nil, true)
		return false
	}

	return p.respond(ticket, request, response, !recovered)
}

func hasBody(request *http.Request) bool {
	return request.ContentLength > 0 || request.Chunked
}
