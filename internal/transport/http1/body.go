package http1

import (
	"io"
	"math"

	"github.com/indigo-web/chunkedbody"
	"github.com/weft-web/weft/config"
	"github.com/weft-web/weft/http"
	"github.com/weft-web/weft/http/status"
	"github.com/weft-web/weft/internal/server/tcp"
	"github.com/weft-web/weft/internal/transport"
)

var _ transport.BodySource = new(Body)

// Body produces the current request's body pieces straight off the transport,
// demultiplexing fixed-length and chunked framing. It never buffers more than
// a single read.
type Body struct {
	plain     plainBodyReader
	chunked   chunkedBodyReader
	isChunked bool
	eof       bool
}

func NewBody(client tcp.Client, chunkedParser *chunkedbody.Parser, cfg config.Body) *Body {
	return &Body{
		plain:   newPlainBodyReader(client, uint(cfg.MaxSize)),
		chunked: newChunkedBodyReader(client, uint(cfg.MaxSize), chunkedParser),
	}
}

func (b *Body) Init(request *http.Request) {
	b.isChunked = request.Chunked
	if b.isChunked {
		b.chunked.init()
	} else {
		b.plain.init(request)
	}

	b.eof = false
}

// Retrieve returns the next body piece; io.EOF (possibly with the final
// piece) ends the stream. An absent length/encoding header means an empty
// body, so the very first call returns io.EOF.
func (b *Body) Retrieve() ([]byte, error) {
	if b.eof {
		return nil, io.EOF
	}

	var (
		piece []byte
		err   error
	)

	if b.isChunked {
		piece, err = b.chunked.read()
	} else {
		piece, err = b.plain.read()
	}

	if err == io.EOF {
		b.eof = true
	}

	return piece, err
}

type plainBodyReader struct {
	client                tcp.Client
	maxBodyLen, bytesLeft uint
}

func newPlainBodyReader(client tcp.Client, maxBodyLen uint) plainBodyReader {
	return plainBodyReader{
		client:     client,
		maxBodyLen: maxBodyLen,
	}
}

func (p *plainBodyReader) init(request *http.Request) {
	p.bytesLeft = uint(request.ContentLength)
}

func (p *plainBodyReader) read() (body []byte, err error) {
	if p.bytesLeft == 0 {
		return nil, io.EOF
	}

	if p.bytesLeft > p.maxBodyLen {
		return nil, status.ErrBodyTooLarge
	}

	data, err := p.client.Read()
	if err != nil {
		return nil, err
	}

	if dataLen := uint(len(data)); dataLen >= p.bytesLeft {
		body, data = data[:p.bytesLeft], data[p.bytesLeft:]
		p.client.Unread(data)
		p.bytesLeft = 0
		err = io.EOF
	} else {
		p.bytesLeft -= dataLen
		body = data
	}

	return body, err
}

type chunkedBodyReader struct {
	client               tcp.Client
	maxBodyLen, received uint
	parser               *chunkedbody.Parser
}

func newChunkedBodyReader(client tcp.Client, maxBodyLen uint, parser *chunkedbody.Parser) chunkedBodyReader {
	return chunkedBodyReader{
		client:     client,
		maxBodyLen: maxBodyLen,
		parser:     parser,
	}
}

func (c *chunkedBodyReader) init() {
	c.received = 0
}

func (c *chunkedBodyReader) read() (body []byte, err error) {
	data, err := c.client.Read()
	if err != nil {
		return nil, err
	}

	chunk, extra, err := c.parser.Parse(data, false)
	switch err {
	case nil, io.EOF:
	default:
		return nil, status.ErrBadChunk
	}

	received, overflows := adduint(c.received, uint(len(chunk)))
	if overflows || received > c.maxBodyLen {
		return nil, status.ErrBodyTooLarge
	}

	c.received = received
	c.client.Unread(extra)

	return chunk, err
}

func adduint(x, y uint) (uint, bool) {
	return x + y, math.MaxUint-x < y
}
