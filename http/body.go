package http

import (
	"io"
	"strings"

	"github.com/indigo-web/utils/uf"
	json "github.com/json-iterator/go"
	"github.com/weft-web/weft/http/status"
	"github.com/weft-web/weft/internal/uridecode"
	"github.com/weft-web/weft/kv"
)

// Body is the settled request body. By the time a handler runs, the body has
// already been streamed through its consumer; for the default buffering
// consumer the collected bytes live here.
type Body struct {
	data        []byte
	contentType string
	err         error
	pending     []byte
	form        *kv.Storage
}

// Settle stores the body outcome. Called once by the core before the handler
// is invoked; handlers never call it.
func (b *Body) Settle(data []byte, contentType string, err error) {
	b.data = data
	b.contentType = contentType
	b.err = err
	b.pending = data
}

// Bytes returns the whole body, or the error the body settled with.
func (b *Body) Bytes() ([]byte, error) {
	return b.data, b.err
}

// String returns the whole body in a string representation.
func (b *Body) String() (string, error) {
	return uf.B2S(b.data), b.err
}

// Read implements the io.Reader interface over the settled body.
func (b *Body) Read(into []byte) (n int, err error) {
	if b.err != nil {
		return 0, b.err
	}

	if len(b.pending) == 0 {
		return 0, io.EOF
	}

	n = copy(into, b.pending)
	b.pending = b.pending[n:]

	return n, nil
}

// JSON unmarshalls the body into the model. Requests whose Content-Type
// isn't JSON-compatible are rejected with 415.
func (b *Body) JSON(model any) error {
	if b.err != nil {
		return b.err
	}

	if !mimeComplies("application/json", b.contentType) {
		return status.ErrUnsupportedMediaType
	}

	iterator := json.ConfigDefault.BorrowIterator(b.data)
	iterator.ReadVal(model)
	err := iterator.Error
	json.ConfigDefault.ReturnIterator(iterator)

	return err
}

// Form interprets the body as application/x-www-form-urlencoded pairs.
func (b *Body) Form() (*kv.Storage, error) {
	if b.err != nil {
		return nil, b.err
	}

	if !mimeComplies("application/x-www-form-urlencoded", b.contentType) {
		return nil, status.ErrUnsupportedMediaType
	}

	if b.form == nil {
		b.form = kv.New()
	}

	b.form.Clear()
	for _, pair := range strings.Split(uf.B2S(b.data), "&") {
		if pair == "" {
			continue
		}

		key, value, _ := strings.Cut(pair, "=")
		decodedKey, err := decodeFormComponent(key)
		if err != nil {
			return nil, status.ErrBadQuery
		}

		decodedValue, err := decodeFormComponent(value)
		if err != nil {
			return nil, status.ErrBadQuery
		}

		b.form.Add(decodedKey, decodedValue)
	}

	return b.form, nil
}

// Error returns the error the body settled with, otherwise nil.
func (b *Body) Error() error {
	return b.err
}

func decodeFormComponent(s string) (string, error) {
	s = strings.ReplaceAll(s, "+", " ")
	decoded, err := uridecode.Decode(uf.S2B(s), nil)
	if err != nil {
		return "", err
	}

	return string(decoded), nil
}

// mimeComplies reports whether the actual content-type matches the wanted
// one, ignoring parameters such as charset.
func mimeComplies(want, actual string) bool {
	if actual == "" {
		return true
	}

	if semicolon := strings.IndexByte(actual, ';'); semicolon != -1 {
		actual = actual[:semicolon]
	}

	return strings.EqualFold(strings.TrimSpace(actual), want)
}
