package proto

import "github.com/indigo-web/utils/uf"

type Protocol uint8

const (
	Unknown Protocol = iota
	HTTP10
	HTTP11
)

// String returns the protocol token as it appears on the wire.
func (p Protocol) String() string {
	switch p {
	case HTTP10:
		return "HTTP/1.0"
	case HTTP11:
		return "HTTP/1.1"
	default:
		return ""
	}
}

const protoTokenLength = len("HTTP/x.x")

// FromBytes parses a protocol token, e.g. "HTTP/1.1". Anything but the two
// supported HTTP/1 versions results in Unknown.
func FromBytes(raw []byte) Protocol {
	if len(raw) != protoTokenLength || uf.B2S(raw[:len("HTTP/")]) != "HTTP/" {
		return Unknown
	}

	major, minor := raw[len("HTTP/")], raw[len("HTTP/x.")]
	if raw[len("HTTP/x")] != '.' {
		return Unknown
	}

	switch {
	case major == '1' && minor == '0':
		return HTTP10
	case major == '1' && minor == '1':
		return HTTP11
	default:
		return Unknown
	}
}
