// Package weft is a pipelining-aware HTTP/1.1 web server: responses of
// concurrently handled requests leave in strict arrival order, request bodies
// are streamed with backpressure, and connections can be upgraded into
// WebSocket sessions.
package weft

import (
	"log"
	"net"
	"sync/atomic"

	"github.com/indigo-web/chunkedbody"
	"github.com/weft-web/weft/config"
	"github.com/weft-web/weft/forwarded"
	"github.com/weft-web/weft/http/status"
	"github.com/weft-web/weft/internal/pipeline"
	"github.com/weft-web/weft/internal/sequencer"
	"github.com/weft-web/weft/internal/server/tcp"
	"github.com/weft-web/weft/internal/transport/http1"
	"github.com/weft-web/weft/router"
	"github.com/weft-web/weft/router/simple"
)

type listenerFactory func(network, addr string) (net.Listener, error)

type binding struct {
	addr    string
	factory listenerFactory
	secure  bool
}

type hooks struct {
	OnStart, OnStop func()
}

// App wires listeners, configuration and the router together.
type App struct {
	addr     string
	cfg      *config.Config
	policy   forwarded.Policy
	errs     router.ErrorHandler
	hooks    hooks
	bindings []binding
	errCh    chan error
}

// New returns an application serving plaintext HTTP on addr.
func New(addr string) *App {
	return &App{
		addr:  addr,
		cfg:   config.Default(),
		errs:  router.DefaultErrorHandler(),
		errCh: make(chan error),
	}
}

// Tune replaces the default config.
func (a *App) Tune(cfg *config.Config) *App {
	a.cfg = cfg
	return a
}

// Forwarded sets the trusted-proxy policy used to resolve the effective
// client address and scheme behind reverse proxies.
func (a *App) Forwarded(policy forwarded.Policy) *App {
	a.policy = policy
	return a
}

// OnError replaces the default error handler.
func (a *App) OnError(handler router.ErrorHandler) *App {
	a.errs = handler
	return a
}

// NotifyOnStart calls the callback once all the listeners are started.
func (a *App) NotifyOnStart(cb func()) *App {
	a.hooks.OnStart = cb
	return a
}

// NotifyOnStop calls the callback once all the listeners are down and all
// the clients are disconnected.
func (a *App) NotifyOnStop(cb func()) *App {
	a.hooks.OnStop = cb
	return a
}

// TLS adds a TLS listener on addr with a custom listener factory.
func (a *App) TLS(addr string, factory listenerFactory) *App {
	a.bindings = append(a.bindings, binding{addr: addr, factory: factory, secure: true})
	return a
}

// HTTPS adds a TLS listener on addr using the certificate and key files.
func (a *App) HTTPS(addr, cert, key string) *App {
	return a.TLS(addr, tlsListener(cert, key))
}

// AutoHTTPS adds a TLS listener with automatically managed certificates:
// ACME-issued ones for the given domains, or a self-signed one when addr is
// a local host.
func (a *App) AutoHTTPS(addr string, domains ...string) *App {
	if isLocalhost(addr) {
		cert, key, err := generateSelfSignedCert()
		if err != nil {
			log.Printf("WARNING: AutoHTTPS: cannot generate a self-signed certificate: %s. Disabling TLS", err)
			return a
		}

		return a.HTTPS(addr, cert, key)
	}

	return a.TLS(addr, autoTLSListener(domains...))
}

// Serve runs the application until Stop, GracefulStop or a listener failure.
// A nil router serves 404s.
func (a *App) Serve(r router.Router) error {
	if r == nil {
		r = simple.New()
	}

	bindings := append([]binding{{addr: a.addr, factory: net.Listen}}, a.bindings...)
	servers := make([]*tcp.Server, len(bindings))

	for i, b := range bindings {
		sock, err := b.factory("tcp", b.addr)
		if err != nil {
			return err
		}

		servers[i] = tcp.NewServer(sock, a.newConnCallback(r, b.secure))
	}

	return a.run(servers)
}

func (a *App) run(servers []*tcp.Server) error {
	var failSilently atomic.Bool

	for _, server := range servers {
		go func(server *tcp.Server) {
			err := server.Start()

			// only the first verdict matters, the rest are echoes of the
			// teardown it causes
			if failSilently.Swap(true) {
				return
			}

			a.errCh <- err
		}(server)
	}

	callIfNotNil(a.hooks.OnStart)
	err := <-a.errCh
	if err == status.ErrGracefulShutdown {
		// stop accepting new clients and serve the old ones till the end
		tcp.PauseAll(servers)
	}

	tcp.StopAll(servers)
	callIfNotNil(a.hooks.OnStop)

	return err
}

// GracefulStop stops accepting new connections, but keeps serving the
// existing ones. The call is non-blocking.
func (a *App) GracefulStop() {
	a.errCh <- status.ErrGracefulShutdown
}

// Stop tears the whole application down immediately. The call is
// non-blocking.
func (a *App) Stop() {
	a.errCh <- status.ErrShutdown
}

// newConnCallback assembles a fresh pipeline for each accepted connection.
func (a *App) newConnCallback(r router.Router, secure bool) tcp.OnConn {
	return func(conn net.Conn) {
		client := tcp.NewClient(conn, a.cfg.NET.ReadTimeout, make([]byte, a.cfg.NET.ReadBufferSize))

		chunkedSettings := chunkedbody.DefaultSettings()
		chunkedSettings.MaxChunkSize = a.cfg.Body.MaxChunkSize

		pipeline.New(pipeline.Env{
			Config:     a.cfg,
			Client:     client,
			Parser:     http1.NewParser(a.cfg),
			Body:       http1.NewBody(client, chunkedbody.NewParser(chunkedSettings), a.cfg.Body),
			Serializer: http1.NewSerializer(a.cfg.Headers.Default),
			Sequencer:  sequencer.New(client, a.cfg.NET.MaxPipelinedResponses),
			Router:     r,
			Errors:     a.errs,
			Forwarded:  a.policy,
			Secure:     secure,
		}).Serve()
	}
}

func isLocalhost(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}

	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}

func callIfNotNil(f func()) {
	if f != nil {
		f()
	}
}
