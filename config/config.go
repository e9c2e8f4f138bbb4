package config

import "time"

type (
	URIRequestLineSize struct {
		Default, Maximal int
	}

	HeadersNumber struct {
		Default, Maximal int
	}

	HeadersSpace struct {
		Default, Maximal int
	}
)

type (
	URI struct {
		// RequestLineSize is a buffer storing the request line when it arrives split
		// across reads. Requests whose line outgrows the maximal boundary are rejected
		// with 414.
		RequestLineSize URIRequestLineSize
		// ParamsPrealloc is the initial capacity of the query params storage.
		ParamsPrealloc int
	}

	Headers struct {
		// Number is responsible for the headers storage size. Default is the initial
		// capacity, Maximal is the number of headers allowed before the request is
		// rejected with 431.
		Number HeadersNumber
		// Space limits the amount of memory occupied by request header keys and values.
		// Overflowing the maximal boundary rejects the request with 431.
		Space HeadersSpace
		// Default headers are included into every response implicitly, unless
		// explicitly overridden.
		Default map[string]string
	}

	Body struct {
		// MaxSize bounds the total size of a request body accepted off the wire,
		// whatever consumer is attached. The default buffering consumer rejects
		// bodies overflowing it with 413.
		MaxSize uint64
		// MaxChunkSize limits a single chunk of a chunked-encoded body.
		MaxChunkSize int64
	}

	NET struct {
		// ReadBufferSize is the size of the buffer used for reads from the socket.
		ReadBufferSize int
		// ReadTimeout bounds the lifetime of idle connections. If no data arrived in
		// this period of time, the connection is closed.
		ReadTimeout time.Duration
		// MaxPipelinedResponses bounds how many completed out-of-order responses the
		// sequencer is willing to hold before it stops accepting new requests.
		MaxPipelinedResponses int
	}

	WS struct {
		// MaxFrameSize limits the payload of a single inbound frame.
		MaxFrameSize int64
		// MaxMessageSize limits a whole reassembled inbound message.
		MaxMessageSize int64
	}
)

// Config holds limits, preallocations and tunables used across the pipeline.
//
// Always modify defaults (returned via Default()) instead of constructing the
// struct manually, otherwise zero-valued limits will reject everything.
type Config struct {
	URI     URI
	Headers Headers
	Body    Body
	NET     NET
	WS      WS
}

// Default returns a well-balanced default config.
func Default() *Config {
	return &Config{
		URI: URI{
			RequestLineSize: URIRequestLineSize{
				Default: 2 * 1024,
				// most web entities limit the request line to 4-8kb, so 16kb is
				// fairly tolerant
				Maximal: 16 * 1024,
			},
			ParamsPrealloc: 5,
		},
		Headers: Headers{
			Number: HeadersNumber{
				Default: 10,
				Maximal: 50,
			},
			Space: HeadersSpace{
				Default: 1 * 1024,
				Maximal: 16 * 1024, // there might be extremely long cookies
			},
			Default: make(map[string]string),
		},
		Body: Body{
			MaxSize:      512 * 1024 * 1024, // 512 megabytes
			MaxChunkSize: 16 * 1024 * 1024,
		},
		NET: NET{
			ReadBufferSize:        4 * 1024,
			ReadTimeout:           90 * time.Second,
			MaxPipelinedResponses: 64,
		},
		WS: WS{
			MaxFrameSize:   1 * 1024 * 1024,
			MaxMessageSize: 4 * 1024 * 1024,
		},
	}
}
