package http1

import (
	"strconv"

	"github.com/indigo-web/utils/strcomp"
	"github.com/valyala/bytebufferpool"
	"github.com/weft-web/weft/http"
	"github.com/weft-web/weft/http/method"
	"github.com/weft-web/weft/http/proto"
	"github.com/weft-web/weft/http/status"
	"github.com/weft-web/weft/kv"
)

// Serializer renders responses into caller-supplied pooled buffers, so any
// number of handler goroutines may render concurrently. It never writes to
// the transport itself.
type Serializer struct {
	defaultHeaders []kv.Pair
}

func NewSerializer(defHdrs map[string]string) *Serializer {
	s := &Serializer{
		defaultHeaders: make([]kv.Pair, 0, len(defHdrs)),
	}

	for key, value := range defHdrs {
		s.defaultHeaders = append(s.defaultHeaders, kv.Pair{Key: key, Value: value})
	}

	return s
}

// Render serializes the response for the given request into dst and reports
// whether the connection must be closed once the bytes are flushed.
//
// forceClose marks responses whose request left the byte stream unrecoverable
// (e.g. a body parser that settled before consuming its input).
func (s *Serializer) Render(
	dst *bytebufferpool.ByteBuffer, request *http.Request, response *http.Response, forceClose bool,
) (closeAfter bool) {
	fields := response.Reveal()

	closeAfter = forceClose || !isKeepAlive(request)
	if hasConnectionHeader(fields.Headers, "close") {
		closeAfter = true
	}
	if fields.Code == status.SwitchingProtocols {
		closeAfter = false
	}

	s.renderStatusLine(dst, request.Protocol, fields)

	for _, header := range fields.Headers {
		renderHeader(dst, header.Key, header.Value)
	}

	for _, header := range s.defaultHeaders {
		if !hasHeader(fields.Headers, header.Key) {
			renderHeader(dst, header.Key, header.Value)
		}
	}

	bodyAllowed := !status.Bodyless(fields.Code)

	if bodyAllowed && fields.ContentType != "" {
		renderHeader(dst, "Content-Type", fields.ContentType)
	}

	if bodyAllowed {
		_, _ = dst.WriteString("Content-Length: ")
		dst.B = strconv.AppendInt(dst.B, int64(len(fields.Body)), 10)
		_, _ = dst.WriteString("\r\n")
	}

	if closeAfter && !hasHeader(fields.Headers, "Connection") {
		renderHeader(dst, "Connection", "close")
	} else if !closeAfter && request.Protocol == proto.HTTP10 {
		renderHeader(dst, "Connection", "keep-alive")
	}

	_, _ = dst.WriteString("\r\n")

	// HEAD responses mirror GET ones, except for the forced lack of body
	if bodyAllowed && request.Method != method.HEAD {
		_, _ = dst.Write(fields.Body)
	}

	return closeAfter
}

// RenderContinue serializes the 100 Continue interim response.
func (s *Serializer) RenderContinue(dst *bytebufferpool.ByteBuffer, request *http.Request) {
	_, _ = dst.WriteString(request.Protocol.String())
	_, _ = dst.WriteString(" 100 Continue\r\n\r\n")
}

func (s *Serializer) renderStatusLine(
	dst *bytebufferpool.ByteBuffer, protocol proto.Protocol, fields *http.Fields,
) {
	_, _ = dst.WriteString(protocol.String())
	_ = dst.WriteByte(' ')

	if line := status.Line(fields.Code); fields.Status == "" && line != "" {
		_, _ = dst.WriteString(line)
		return
	}

	// custom reason phrase or an unknown code, fall back to the slow path
	dst.B = strconv.AppendInt(dst.B, int64(fields.Code), 10)
	_ = dst.WriteByte(' ')

	reason := fields.Status
	if reason == "" {
		reason = status.Text(fields.Code)
	}
	if reason == "" {
		reason = "Unknown Status Code"
	}

	_, _ = dst.WriteString(string(reason))
	_, _ = dst.WriteString("\r\n")
}

func renderHeader(dst *bytebufferpool.ByteBuffer, key, value string) {
	_, _ = dst.WriteString(key)
	_, _ = dst.WriteString(": ")
	_, _ = dst.WriteString(value)
	_, _ = dst.WriteString("\r\n")
}

func hasHeader(headers []kv.Pair, key string) bool {
	for _, header := range headers {
		if strcomp.EqualFold(header.Key, key) {
			return true
		}
	}

	return false
}

func hasConnectionHeader(headers []kv.Pair, value string) bool {
	for _, header := range headers {
		if strcomp.EqualFold(header.Key, "Connection") && strcomp.EqualFold(header.Value, value) {
			return true
		}
	}

	return false
}

func isKeepAlive(request *http.Request) bool {
	switch request.Protocol {
	case proto.HTTP10:
		return strcomp.EqualFold(request.Connection, "keep-alive")
	case proto.HTTP11:
		// in case of HTTP/1.1, keep-alive is the implied default
		return !strcomp.EqualFold(request.Connection, "close")
	default:
		return false
	}
}
