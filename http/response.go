package http

import (
	json "github.com/json-iterator/go"
	"github.com/weft-web/weft/http/status"
	"github.com/weft-web/weft/kv"
)

// why 7? inherited gut feeling: most responses carry a handful of headers.
const preallocRespHeaders = 7

const defaultContentType = "text/html"

// Fields is the read-only view the serializer renders from.
type Fields struct {
	Code        status.Code
	Status      status.Status
	ContentType string
	Headers     []kv.Pair
	Body        []byte
}

// Response is a builder produced by handlers. It never touches the transport
// itself; the sequencer decides when its rendered bytes hit the wire.
type Response struct {
	fields Fields
}

// NewResponse returns a response builder with code 200 OK and text/html
// content-type.
func NewResponse() *Response {
	return &Response{
		fields: Fields{
			Code:        status.OK,
			ContentType: defaultContentType,
			Headers:     make([]kv.Pair, 0, preallocRespHeaders),
		},
	}
}

// Code sets the status code. The standard reason phrase is used unless
// Status is called explicitly.
func (r *Response) Code(code status.Code) *Response {
	r.fields.Code = code
	return r
}

// Status overrides the reason phrase. Clients generally ignore it.
func (r *Response) Status(s status.Status) *Response {
	r.fields.Status = s
	return r
}

// ContentType sets the Content-Type header value.
func (r *Response) ContentType(value string) *Response {
	r.fields.ContentType = value
	return r
}

// Header appends a header. Passing multiple values results in multiple
// header entries under the same key.
func (r *Response) Header(key string, values ...string) *Response {
	for _, value := range values {
		r.fields.Headers = append(r.fields.Headers, kv.Pair{Key: key, Value: value})
	}

	return r
}

// String sets the body to a string.
func (r *Response) String(body string) *Response {
	return r.Bytes([]byte(body))
}

// Bytes sets the body to raw bytes. The slice is not copied and must not be
// mutated until the response is written.
func (r *Response) Bytes(body []byte) *Response {
	r.fields.Body = body
	return r
}

// JSON marshals the model into the body and sets the content-type.
func (r *Response) JSON(model any) (*Response, error) {
	stream := json.ConfigDefault.BorrowStream(nil)
	defer json.ConfigDefault.ReturnStream(stream)

	stream.WriteVal(model)
	if stream.Error != nil {
		return r, stream.Error
	}

	body := make([]byte, len(stream.Buffer()))
	copy(body, stream.Buffer())

	return r.ContentType("application/json").Bytes(body), nil
}

// Error renders an error into the response: HTTPErrors keep their code and
// message, everything else turns into an opaque 500.
func (r *Response) Error(err error) *Response {
	code := status.CodeOf(err)
	if code == status.InternalServerError {
		return r.Code(code).String("internal server error")
	}

	return r.Code(code).String(err.Error())
}

// Reveal exposes the built fields for rendering.
func (r *Response) Reveal() *Fields {
	return &r.fields
}

// Clear resets the builder for re-use.
func (r *Response) Clear() *Response {
	r.fields = Fields{
		Code:        status.OK,
		ContentType: defaultContentType,
		Headers:     r.fields.Headers[:0],
	}

	return r
}

// Respond returns a fresh 200 OK response.
func Respond() *Response {
	return NewResponse()
}
