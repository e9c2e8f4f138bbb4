package ws

import (
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/weft-web/weft/config"
	"github.com/weft-web/weft/forwarded"
	"github.com/weft-web/weft/http"
)

// pipeClient feeds frames to the session and blocks once they run out,
// the way a quiet socket would, instead of reporting EOF.
type pipeClient struct {
	pieces chan []byte
	done   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	written []byte
}

func newPipeClient(pieces ...[]byte) *pipeClient {
	c := &pipeClient{
		pieces: make(chan []byte, len(pieces)),
		done:   make(chan struct{}),
	}

	for _, piece := range pieces {
		c.pieces <- piece
	}

	return c
}

func (c *pipeClient) Read() ([]byte, error) {
	select {
	case piece := <-c.pieces:
		return piece, nil
	case <-c.done:
		return nil, io.EOF
	}
}

func (c *pipeClient) Unread([]byte) {}

func (c *pipeClient) Write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.written = append(c.written, b...)

	return nil
}

func (c *pipeClient) Written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]byte, len(c.written))
	copy(out, c.written)

	return out
}

func (c *pipeClient) Remote() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 54321}
}

func (c *pipeClient) Close() error {
	c.once.Do(func() {
		close(c.done)
	})

	return nil
}

// masked builds a client-side frame. Payloads must stay under 126 bytes.
func masked(opcode byte, fin bool, payload []byte) []byte {
	key := [4]byte{0x12, 0x34, 0x56, 0x78}

	b0 := opcode
	if fin {
		b0 |= finBit
	}

	frame := []byte{b0, maskBit | byte(len(payload))}
	frame = append(frame, key[:]...)
	for i, b := range payload {
		frame = append(frame, b^key[i&3])
	}

	return frame
}

func unmaskedFrame(opcode byte, payload []byte) []byte {
	return append([]byte{finBit | opcode, byte(len(payload))}, payload...)
}

func closeFrame(code uint16, reason string) []byte {
	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload, code)
	copy(payload[2:], reason)

	return unmaskedFrame(byte(Close), payload)
}

func sessionRequest() *http.Request {
	return http.NewRequest(0, nil, false, forwarded.Policy{}, 5)
}

// echoOnce replies to the first message and hangs up.
func echoOnce(_ *http.Request, inbound <-chan Message, outbound chan<- Message) {
	defer close(outbound)

	for msg := range inbound {
		if msg.Type == Close {
			return
		}

		outbound <- msg

		return
	}
}

// drainAll consumes everything until the session ends.
func drainAll(_ *http.Request, inbound <-chan Message, outbound chan<- Message) {
	defer close(outbound)

	for range inbound {
	}
}

func TestSessionEcho(t *testing.T) {
	client := newPipeClient(masked(byte(Text), true, []byte("hello")))

	NewSession(client, config.Default().WS, echoOnce).Run(sessionRequest())

	written := client.Written()
	require.Equal(t,
		append(unmaskedFrame(byte(Text), []byte("hello")), closeFrame(StatusNormalClosure, "")...),
		written,
		"the echo must precede the closing frame",
	)
}

func TestSessionFragmentedMessage(t *testing.T) {
	client := newPipeClient(
		masked(byte(Text), false, []byte("hel")),
		masked(opContinuation, true, []byte("lo")),
	)

	NewSession(client, config.Default().WS, echoOnce).Run(sessionRequest())

	require.Equal(t,
		append(unmaskedFrame(byte(Text), []byte("hello")), closeFrame(StatusNormalClosure, "")...),
		client.Written(),
		"fragments must be reassembled into a single message",
	)
}

func TestSessionPeerClose(t *testing.T) {
	client := newPipeClient(masked(byte(Close), true, []byte{0x03, 0xE8}))

	received := make(chan Message, 1)
	NewSession(client, config.Default().WS, func(_ *http.Request, inbound <-chan Message, outbound chan<- Message) {
		defer close(outbound)

		for msg := range inbound {
			received <- msg
			return
		}
	}).Run(sessionRequest())

	msg := <-received
	require.Equal(t, Close, msg.Type)
	require.Equal(t, StatusNormalClosure, msg.CloseCode())

	// whoever wins the race (the echo or the handler hanging up), exactly one
	// normal-closure frame goes out
	require.Equal(t, closeFrame(StatusNormalClosure, ""), client.Written())
}

func TestSessionCloseReachesBusyHandler(t *testing.T) {
	client := newPipeClient(masked(byte(Close), true, []byte{0x03, 0xE8}))

	received := make(chan Message, 1)
	NewSession(client, config.Default().WS, func(_ *http.Request, inbound <-chan Message, outbound chan<- Message) {
		defer close(outbound)

		// the handler is busy elsewhere when the peer hangs up
		time.Sleep(5 * time.Millisecond)

		for msg := range inbound {
			received <- msg
			return
		}
	}).Run(sessionRequest())

	select {
	case msg := <-received:
		require.Equal(t, Close, msg.Type)
		require.Equal(t, StatusNormalClosure, msg.CloseCode())
	case <-time.After(time.Second):
		t.Fatal("the peer's Close must reach a handler that wasn't receiving yet")
	}
}

func TestSessionPayloadlessCloseEcho(t *testing.T) {
	client := newPipeClient(masked(byte(Close), true, nil))

	NewSession(client, config.Default().WS, drainAll).Run(sessionRequest())

	// 1005 is synthesized for the application; the echo stays payloadless
	require.Equal(t, unmaskedFrame(byte(Close), nil), client.Written())
}

func TestSessionAutoPong(t *testing.T) {
	client := newPipeClient(
		masked(byte(Ping), true, []byte("hb")),
		masked(byte(Close), true, []byte{0x03, 0xE8}),
	)

	NewSession(client, config.Default().WS, drainAll).Run(sessionRequest())

	written := client.Written()
	require.Equal(t, unmaskedFrame(byte(Pong), []byte("hb")), written[:4], "pings are answered without the handler")
	require.Equal(t, closeFrame(StatusNormalClosure, ""), written[4:])
}

func TestSessionRejectsUnmaskedFrames(t *testing.T) {
	client := newPipeClient(unmaskedFrame(byte(Text), []byte("bare")))

	NewSession(client, config.Default().WS, drainAll).Run(sessionRequest())

	written := client.Written()
	require.GreaterOrEqual(t, len(written), 4)
	require.Equal(t, byte(finBit|byte(Close)), written[0])
	require.Equal(t, StatusProtocolError, binary.BigEndian.Uint16(written[2:4]))
}

func TestSessionMessageSizeLimit(t *testing.T) {
	cfg := config.Default().WS
	cfg.MaxMessageSize = 4

	client := newPipeClient(
		masked(byte(Text), false, []byte("abc")),
		masked(opContinuation, true, []byte("def")),
	)

	NewSession(client, cfg, drainAll).Run(sessionRequest())

	written := client.Written()
	require.GreaterOrEqual(t, len(written), 4)
	require.Equal(t, StatusMessageTooBig, binary.BigEndian.Uint16(written[2:4]))
}

func TestSessionHandlerInitiatedClose(t *testing.T) {
	client := newPipeClient()

	NewSession(client, config.Default().WS, func(_ *http.Request, inbound <-chan Message, outbound chan<- Message) {
		outbound <- NewClose(StatusGoingAway, "maintenance")
		close(outbound)
	}).Run(sessionRequest())

	require.Equal(t, closeFrame(StatusGoingAway, "maintenance"), client.Written())
}

func TestFrameReaderInterleavedControl(t *testing.T) {
	client := newPipeClient(
		masked(byte(Text), false, []byte("par")),
		masked(byte(Ping), true, nil),
		masked(opContinuation, true, []byte("tial")),
	)
	defer client.Close()

	framer := newFrameReader(client, config.Default().WS)

	msg, err := framer.Next()
	require.NoError(t, err)
	require.Equal(t, Ping, msg.Type, "control frames pass through mid-fragmentation")

	msg, err = framer.Next()
	require.NoError(t, err)
	require.Equal(t, Text, msg.Type)
	require.Equal(t, "partial", string(msg.Payload))
}
