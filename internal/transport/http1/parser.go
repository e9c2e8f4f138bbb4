package http1

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/indigo-web/utils/buffer"
	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
	"github.com/weft-web/weft/config"
	"github.com/weft-web/weft/http"
	"github.com/weft-web/weft/http/method"
	"github.com/weft-web/weft/http/proto"
	"github.com/weft-web/weft/http/status"
	"github.com/weft-web/weft/internal/transport"
	"github.com/weft-web/weft/internal/uridecode"
	"github.com/weft-web/weft/kv"
)

type parserState uint8

const (
	eRequestLine parserState = iota + 1
	eHeaders
	eDone
)

// Parser is a stream-based HTTP/1.x request head decoder. Unlike the body,
// the head is accumulated across reads in bounded buffers; overflowing them
// yields the distinct too-large errors, syntax violations yield bad request,
// and neither is ever confused with an I/O failure.
//
// Parsed strings are copied out of the buffers, as the descriptor may outlive
// the parsing of subsequent pipelined requests.
type Parser struct {
	request       *http.Request
	requestLine   *buffer.Buffer
	headerBuff    *buffer.Buffer
	cfg           *config.Config
	headersNumber int
	state         parserState
	pathErr       error
}

func NewParser(cfg *config.Config) *Parser {
	return &Parser{
		requestLine: buffer.New(
			cfg.URI.RequestLineSize.Default,
			cfg.URI.RequestLineSize.Maximal,
		),
		headerBuff: buffer.New(
			cfg.Headers.Space.Default,
			cfg.Headers.Space.Maximal,
		),
		cfg: cfg,
	}
}

// Attach points the parser at the descriptor the next head is decoded into
// and resets all the per-request state.
func (p *Parser) Attach(request *http.Request) {
	p.request = request
	p.state = eRequestLine
	p.headersNumber = 0
	p.pathErr = nil
	p.requestLine.Clear()
	p.headerBuff.Clear()
}

func (p *Parser) Parse(data []byte) (state transport.RequestState, extra []byte, err error) {
	if p.request == nil || p.state == eDone {
		panic("BUG: parser used without an attached request")
	}

	for {
		switch p.state {
		case eRequestLine:
			line, rest, ok, err := takeLine(data, p.requestLine, p.cfg.URI.RequestLineSize.Maximal, status.ErrTooLongRequestLine)
			if err != nil {
				return transport.Error, nil, err
			}
			if !ok {
				return transport.Pending, nil, nil
			}

			if err = p.parseRequestLine(line); err != nil {
				return transport.Error, nil, err
			}

			data = rest
			p.state = eHeaders
		case eHeaders:
			line, rest, ok, err := takeLine(data, p.headerBuff, p.cfg.Headers.Space.Maximal, status.ErrHeaderFieldsTooLarge)
			if err != nil {
				return transport.Error, nil, err
			}
			if !ok {
				return transport.Pending, nil, nil
			}

			data = rest

			if len(line) == 0 {
				p.state = eDone
				p.finalize()

				return transport.HeadersCompleted, data, p.pathErr
			}

			if err = p.parseHeaderLine(line); err != nil {
				return transport.Error, nil, err
			}
		default:
			panic("BUG: got unexpected parser state")
		}
	}
}

func (p *Parser) parseRequestLine(line []byte) error {
	sp := bytes.IndexByte(line, ' ')
	if sp == -1 {
		return status.ErrBadRequest
	}

	p.request.Method = method.Parse(uf.B2S(line[:sp]))
	if p.request.Method == method.Unknown {
		return status.ErrMethodNotImplemented
	}

	line = line[sp+1:]
	sp = bytes.LastIndexByte(line, ' ')
	if sp == -1 || sp == 0 {
		return status.ErrBadRequest
	}

	p.request.Protocol = proto.FromBytes(line[sp+1:])
	if p.request.Protocol == proto.Unknown {
		return status.ErrUnsupportedProtocol
	}

	target := line[:sp]
	p.request.RawURI = string(target)

	rawPath := target
	if q := bytes.IndexByte(target, '?'); q != -1 {
		rawPath = target[:q]
		// query decoding failures are deferred just like path ones
		if err := parseQuery(p.request.Params, target[q+1:]); err != nil && p.pathErr == nil {
			p.pathErr = err
		}
	}

	decoded, err := uridecode.Decode(rawPath, nil)
	if err != nil {
		// strict decoding failed: keep the unparsed path for diagnostics and
		// let the request travel the ordinary error-response path
		p.request.Path = string(rawPath)
		p.pathErr = err

		return nil
	}

	p.request.Path = string(decoded)

	return nil
}

func (p *Parser) parseHeaderLine(line []byte) error {
	p.headersNumber++
	if p.headersNumber > p.cfg.Headers.Number.Maximal {
		return status.ErrTooManyHeaders
	}

	colon := bytes.IndexByte(line, ':')
	if colon <= 0 {
		return status.ErrBadRequest
	}

	key := line[:colon]
	if !validHeaderKey(key) {
		return status.ErrBadRequest
	}

	value := trimSpaces(line[colon+1:])

	p.request.Headers.Add(string(key), string(value))

	return nil
}

// finalize derives the framing and dispatch hints off the collected headers.
func (p *Parser) finalize() {
	request := p.request

	for key, value := range request.Headers.Iter() {
		switch {
		case strcomp.EqualFold(key, "content-length"):
			if length, err := strconv.Atoi(value); err == nil && length >= 0 {
				request.ContentLength = length
			} else if p.pathErr == nil {
				p.pathErr = status.ErrBadRequest
			}
		case strcomp.EqualFold(key, "transfer-encoding"):
			request.Chunked = request.Chunked || hasToken(value, "chunked")
		case strcomp.EqualFold(key, "connection"):
			request.Connection = value
		case strcomp.EqualFold(key, "expect"):
			request.Expect100 = strcomp.EqualFold(value, "100-continue")
		case strcomp.EqualFold(key, "upgrade"):
			request.Upgrade = strcomp.EqualFold(value, "websocket")
		}
	}
}

// takeLine accumulates data into buff until a LF is seen, returning the
// complete line without its line break. When the line fits into a single read
// and nothing was previously buffered, no copying happens; the limit is
// enforced on that path explicitly, as the buffer never sees the bytes.
func takeLine(data []byte, buff *buffer.Buffer, limit int, limitErr error) (line, rest []byte, ok bool, err error) {
	lf := bytes.IndexByte(data, '\n')
	if lf == -1 {
		if !buff.Append(data) {
			return nil, nil, false, limitErr
		}

		return nil, nil, false, nil
	}

	if buff.SegmentLength() == 0 {
		if lf > limit {
			return nil, nil, false, limitErr
		}

		line = data[:lf]
	} else {
		if !buff.Append(data[:lf]) {
			return nil, nil, false, limitErr
		}

		line = buff.Finish()
	}

	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}

	return line, data[lf+1:], true, nil
}

func parseQuery(params *kv.Storage, rawQuery []byte) error {
	for len(rawQuery) > 0 {
		pair := rawQuery
		if amp := bytes.IndexByte(rawQuery, '&'); amp != -1 {
			pair, rawQuery = rawQuery[:amp], rawQuery[amp+1:]
		} else {
			rawQuery = nil
		}

		if len(pair) == 0 {
			continue
		}

		rawKey := pair
		var rawValue []byte
		if eq := bytes.IndexByte(pair, '='); eq != -1 {
			rawKey, rawValue = pair[:eq], pair[eq+1:]
		}

		key, err := decodeQueryComponent(rawKey)
		if err != nil {
			return status.ErrBadQuery
		}

		value, err := decodeQueryComponent(rawValue)
		if err != nil {
			return status.ErrBadQuery
		}

		params.Add(key, value)
	}

	return nil
}

func decodeQueryComponent(raw []byte) (string, error) {
	if plus := bytes.IndexByte(raw, '+'); plus != -1 {
		raw = bytes.ReplaceAll(raw, []byte{'+'}, []byte{' '})
	}

	decoded, err := uridecode.Decode(raw, nil)
	if err != nil {
		return "", err
	}

	return string(decoded), nil
}

func validHeaderKey(key []byte) bool {
	for _, c := range key {
		if c <= ' ' || c >= 0x7f {
			return false
		}
	}

	return true
}

func trimSpaces(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}

	return b
}

func hasToken(value, token string) bool {
	for _, part := range strings.Split(value, ",") {
		if strcomp.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}

	return false
}
