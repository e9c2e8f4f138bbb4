package body

import (
	"github.com/weft-web/weft/http"
	"github.com/weft-web/weft/http/status"
)

// Buffered is the default consumer: it collects the whole body into memory,
// bounded by the configured limit.
type Buffered struct {
	buff  []byte
	limit uint64
}

func NewBuffered(limit uint64) *Buffered {
	return &Buffered{limit: limit}
}

func (b *Buffered) Begin() (http.BodyState, error) {
	return http.BodyAwaitingMore, nil
}

func (b *Buffered) Feed(chunk []byte, last bool) (http.BodyState, error) {
	if uint64(len(b.buff))+uint64(len(chunk)) > b.limit {
		return http.BodyFailed, status.ErrBodyTooLarge
	}

	b.buff = append(b.buff, chunk...)

	if last {
		return http.BodyDone, nil
	}

	return http.BodyAwaitingMore, nil
}

// Bytes returns the collected body.
func (b *Buffered) Bytes() []byte {
	return b.buff
}
