package ws

import (
	"encoding/binary"
	"math"

	"github.com/valyala/bytebufferpool"
	"github.com/weft-web/weft/config"
	"github.com/weft-web/weft/internal/server/tcp"
)

const (
	opContinuation = 0x0

	finBit  = 0x80
	rsvMask = 0x70
	maskBit = 0x80
)

// closeError is a framing-level violation that must be reported to the peer
// with a Close frame before the connection goes down.
type closeError struct {
	code   uint16
	reason string
}

func (c closeError) Error() string {
	return c.reason
}

// frameReader decodes inbound frames and reassembles fragmented data
// messages. Interleaved control frames are returned in between fragments, as
// the protocol permits; the partial assembly survives across Next calls.
type frameReader struct {
	client      tcp.Client
	cfg         config.WS
	buff        []byte
	partial     []byte
	partialType MessageType
}

func newFrameReader(client tcp.Client, cfg config.WS) *frameReader {
	return &frameReader{client: client, cfg: cfg}
}

// Next returns the next complete message off the wire.
func (r *frameReader) Next() (Message, error) {
	for {
		fin, opcode, piece, err := r.frame()
		if err != nil {
			return Message{}, err
		}

		if opcode >= 0x8 {
			if !fin || len(piece) > 125 {
				return Message{}, closeError{StatusProtocolError, "malformed control frame"}
			}

			switch MessageType(opcode) {
			case Close, Ping, Pong:
				return Message{Type: MessageType(opcode), Payload: piece}, nil
			default:
				return Message{}, closeError{StatusProtocolError, "unrecognized control opcode"}
			}
		}

		switch opcode {
		case opContinuation:
			if r.partialType == 0 {
				return Message{}, closeError{StatusProtocolError, "continuation without a message"}
			}
		case byte(Text), byte(Binary):
			if r.partialType != 0 {
				return Message{}, closeError{StatusProtocolError, "interleaved data message"}
			}

			r.partialType = MessageType(opcode)
		default:
			return Message{}, closeError{StatusProtocolError, "unrecognized opcode"}
		}

		if int64(len(r.partial))+int64(len(piece)) > r.cfg.MaxMessageSize {
			return Message{}, closeError{StatusMessageTooBig, "message exceeds the limit"}
		}

		r.partial = append(r.partial, piece...)

		if fin {
			msg := Message{Type: r.partialType, Payload: r.partial}
			r.partial, r.partialType = nil, 0

			return msg, nil
		}
	}
}

// frame decodes a single raw frame, unmasking the payload. The returned
// payload is an owned copy.
func (r *frameReader) frame() (fin bool, opcode byte, payload []byte, err error) {
	hdr, err := r.peek(2)
	if err != nil {
		return false, 0, nil, err
	}

	b0, b1 := hdr[0], hdr[1]
	if b0&rsvMask != 0 {
		return false, 0, nil, closeError{StatusProtocolError, "reserved bits set"}
	}

	// the server side MUST drop unmasked client frames
	if b1&maskBit == 0 {
		return false, 0, nil, closeError{StatusProtocolError, "unmasked client frame"}
	}

	length := int64(b1 & 0x7f)
	offset := 2

	switch length {
	case 126:
		if hdr, err = r.peek(4); err != nil {
			return false, 0, nil, err
		}

		length, offset = int64(binary.BigEndian.Uint16(hdr[2:4])), 4
	case 127:
		if hdr, err = r.peek(10); err != nil {
			return false, 0, nil, err
		}

		wide := binary.BigEndian.Uint64(hdr[2:10])
		if wide > math.MaxInt64 {
			return false, 0, nil, closeError{StatusProtocolError, "frame length overflow"}
		}

		length, offset = int64(wide), 10
	}

	if length > r.cfg.MaxFrameSize {
		return false, 0, nil, closeError{StatusMessageTooBig, "frame exceeds the limit"}
	}

	total := offset + 4 + int(length)
	if _, err = r.peek(total); err != nil {
		return false, 0, nil, err
	}

	mask := r.buff[offset : offset+4]
	payload = make([]byte, length)
	copy(payload, r.buff[offset+4:total])

	for i := range payload {
		payload[i] ^= mask[i&3]
	}

	r.buff = r.buff[total:]

	return b0&finBit != 0, b0 & 0x0f, payload, nil
}

// peek grows the internal buffer until it holds at least n bytes and returns
// it. Reads return transport-owned slices, so incoming pieces are copied in.
func (r *frameReader) peek(n int) ([]byte, error) {
	for len(r.buff) < n {
		data, err := r.client.Read()
		if err != nil {
			return nil, err
		}

		r.buff = append(r.buff, data...)
	}

	return r.buff, nil
}

// writeFrame serializes a single unfragmented, unmasked frame. Server frames
// are never masked.
func writeFrame(client tcp.Client, msg Message) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_ = buf.WriteByte(finBit | byte(msg.Type))

	switch n := len(msg.Payload); {
	case n <= 125:
		_ = buf.WriteByte(byte(n))
	case n <= math.MaxUint16:
		_ = buf.WriteByte(126)
		buf.B = binary.BigEndian.AppendUint16(buf.B, uint16(n))
	default:
		_ = buf.WriteByte(127)
		buf.B = binary.BigEndian.AppendUint64(buf.B, uint64(n))
	}

	_, _ = buf.Write(msg.Payload)

	return client.Write(buf.B)
}
