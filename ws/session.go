package ws

import (
	"context"
	"errors"
	"log"

	"github.com/weft-web/weft/config"
	"github.com/weft-web/weft/http"
	"github.com/weft-web/weft/internal/server/tcp"
	"golang.org/x/sync/errgroup"
)

var (
	errPeerClosed  = errors.New("peer closed the session")
	errLocalClosed = errors.New("handler closed the session")
)

// controlSignal is an internally generated frame (pong, close echo, protocol
// failure) routed through the write flow, so that the transport has a single
// writer. A non-nil err makes the write flow exit with it after the write.
type controlSignal struct {
	msg Message
	err error
}

// Session pumps messages between the transport and the application handler
// after a completed upgrade. It assumes exclusive ownership of the
// connection.
type Session struct {
	client  tcp.Client
	cfg     config.WS
	handler Handler
}

func NewSession(client tcp.Client, cfg config.WS, handler Handler) *Session {
	return &Session{
		client:  client,
		cfg:     cfg,
		handler: handler,
	}
}

// Run serves the session until either side closes it or the transport dies.
// The connection is always closed by the time it returns.
func (s *Session) Run(request *http.Request) {
	var (
		inbound  = make(chan Message)
		outbound = make(chan Message)
		control  = make(chan controlSignal, 4)
	)

	g, ctx := errgroup.WithContext(context.Background())

	go s.handler(request, inbound, outbound)

	g.Go(func() error {
		return s.readFlow(ctx, inbound, control)
	})
	g.Go(func() error {
		return s.writeFlow(ctx, outbound, control)
	})

	// every exit path cancels ctx, and closing the client is the only way to
	// unblock a flow stuck in a socket read
	go func() {
		<-ctx.Done()
		_ = s.client.Close()
	}()

	err := g.Wait()
	if !errors.Is(err, errPeerClosed) && !errors.Is(err, errLocalClosed) {
		log.Printf("ws: session with %s ended: %s", s.client.Remote(), err)
	}

	// the read flow is gone by now, so closing inbound is safe. It tells the
	// handler the session is over; whatever it still sends is drained until
	// it closes its side.
	close(inbound)
	go func() {
		for range outbound {
		}
	}()
}

// readFlow decodes inbound messages and delivers them to the handler. Pings
// are answered automatically and not delivered; a Close is delivered, echoed
// and ends the flow. Framing violations are reported to the peer via the
// control channel, and the error surfaces through the write flow.
func (s *Session) readFlow(ctx context.Context, inbound chan<- Message, control chan<- controlSignal) error {
	framer := newFrameReader(s.client, s.cfg)

	for {
		msg, err := framer.Next()
		if err != nil {
			var ce closeError
			if errors.As(err, &ce) {
				s.signal(ctx, control, controlSignal{msg: NewClose(ce.code, ce.reason), err: ce})
				return nil
			}

			return err
		}

		switch msg.Type {
		case Ping:
			s.signal(ctx, control, controlSignal{msg: Message{Type: Pong, Payload: msg.Payload}})
		case Close:
			// delivery comes first: once the echo leaves, the write flow exits
			// and cancels ctx, which would rob the handler of the Close
			s.deliver(ctx, inbound, msg)
			s.signal(ctx, control, controlSignal{msg: closeEcho(msg), err: errPeerClosed})

			return nil
		default:
			s.deliver(ctx, inbound, msg)
		}
	}
}

// closeEcho mirrors the peer's Close frame. A payloadless Close is echoed
// payloadless: 1005 is synthesized for the application and must never go on
// the wire.
func closeEcho(msg Message) Message {
	if len(msg.Payload) < 2 {
		return Message{Type: Close}
	}

	return NewClose(msg.CloseCode(), "")
}

// writeFlow is the transport's sole writer: it serializes handler messages
// and internal control frames. The handler closing its channel, or sending a
// Close, ends the session gracefully.
func (s *Session) writeFlow(ctx context.Context, outbound <-chan Message, control <-chan controlSignal) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-control:
			if err := writeFrame(s.client, sig.msg); err != nil {
				return err
			}

			if sig.err != nil {
				return sig.err
			}
		case msg, ok := <-outbound:
			if !ok {
				_ = writeFrame(s.client, NewClose(StatusNormalClosure, ""))
				return errLocalClosed
			}

			if err := writeFrame(s.client, msg); err != nil {
				return err
			}

			if msg.Type == Close {
				return errLocalClosed
			}
		}
	}
}

func (s *Session) deliver(ctx context.Context, inbound chan<- Message, msg Message) {
	select {
	case inbound <- msg:
	case <-ctx.Done():
	}
}

func (s *Session) signal(ctx context.Context, control chan<- controlSignal, sig controlSignal) {
	select {
	case control <- sig:
	case <-ctx.Done():
	}
}
