// Package ws implements the WebSocket upgrade and the post-upgrade framed
// message channel (RFC 6455).
package ws

import (
	"encoding/binary"

	"github.com/weft-web/weft/http"
)

// MessageType enumerates the message kinds an application can exchange. The
// values match the wire opcodes.
type MessageType uint8

const (
	Text   MessageType = 0x1
	Binary MessageType = 0x2
	Close  MessageType = 0x8
	Ping   MessageType = 0x9
	Pong   MessageType = 0xA
)

func (t MessageType) String() string {
	switch t {
	case Text:
		return "text"
	case Binary:
		return "binary"
	case Close:
		return "close"
	case Ping:
		return "ping"
	case Pong:
		return "pong"
	default:
		return "unknown"
	}
}

// Message is a single framed message. For Close messages the payload holds
// the status code and reason in wire form; use CloseCode/CloseReason.
type Message struct {
	Type    MessageType
	Payload []byte
}

func NewText(payload string) Message {
	return Message{Type: Text, Payload: []byte(payload)}
}

func NewBinary(payload []byte) Message {
	return Message{Type: Binary, Payload: payload}
}

// NewClose builds a Close message carrying the status code and reason.
func NewClose(code uint16, reason string) Message {
	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload, code)
	copy(payload[2:], reason)

	return Message{Type: Close, Payload: payload}
}

// CloseCode extracts the status code off a Close message, defaulting to 1005
// (no status received) when the payload carries none.
func (m Message) CloseCode() uint16 {
	if m.Type != Close || len(m.Payload) < 2 {
		return StatusNoStatusReceived
	}

	return binary.BigEndian.Uint16(m.Payload)
}

// CloseReason extracts the reason text off a Close message.
func (m Message) CloseReason() string {
	if m.Type != Close || len(m.Payload) <= 2 {
		return ""
	}

	return string(m.Payload[2:])
}

// Close status codes, RFC 6455 section 7.4.1.
const (
	StatusNormalClosure    uint16 = 1000
	StatusGoingAway        uint16 = 1001
	StatusProtocolError    uint16 = 1002
	StatusUnsupportedData  uint16 = 1003
	StatusNoStatusReceived uint16 = 1005
	StatusMessageTooBig    uint16 = 1009
	StatusInternalError    uint16 = 1011
)

// Handler is the application side of an upgraded connection. It runs in its
// own goroutine; inbound delivers peer messages in arrival order and is
// closed when the session ends, outbound is owned by the handler and must be
// closed by it (closing it sends a normal-closure Close frame).
type Handler func(request *http.Request, inbound <-chan Message, outbound chan<- Message)
