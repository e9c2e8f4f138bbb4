package body

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/weft-web/weft/http"
	"github.com/weft-web/weft/http/status"
)

// scriptedSource plays back body pieces, io.EOF arriving together with the
// last one, the way the transport delivers them.
type scriptedSource struct {
	pieces [][]byte
	pos    int
	reads  int
}

func newScriptedSource(pieces ...[]byte) *scriptedSource {
	return &scriptedSource{pieces: pieces}
}

func (s *scriptedSource) Init(*http.Request) {}

func (s *scriptedSource) Retrieve() ([]byte, error) {
	s.reads++

	if s.pos >= len(s.pieces) {
		return nil, io.EOF
	}

	piece := s.pieces[s.pos]
	s.pos++

	if s.pos == len(s.pieces) {
		return piece, io.EOF
	}

	return piece, nil
}

func (s *scriptedSource) Drained() bool {
	return s.pos >= len(s.pieces)
}

// scriptedConsumer settles with the given state after seeing n chunks.
type scriptedConsumer struct {
	settleAfter int
	settleWith  http.BodyState
	settleErr   error
	fed         [][]byte
}

func (c *scriptedConsumer) Begin() (http.BodyState, error) {
	if c.settleAfter == 0 {
		return c.settleWith, c.settleErr
	}

	return http.BodyAwaitingMore, nil
}

func (c *scriptedConsumer) Feed(chunk []byte, last bool) (http.BodyState, error) {
	c.fed = append(c.fed, chunk)

	if len(c.fed) >= c.settleAfter {
		return c.settleWith, c.settleErr
	}

	return http.BodyAwaitingMore, nil
}

func TestBufferedCollectsWholeBody(t *testing.T) {
	source := newScriptedSource([]byte("Hello, "), []byte("world"), []byte("!"))
	buffered := NewBuffered(1024)
	acc := NewAccumulator(source, buffered)

	state, err := acc.Begin()
	require.NoError(t, err)
	require.Equal(t, http.BodyAwaitingMore, state)

	require.NoError(t, acc.Run())
	require.Equal(t, "Hello, world!", string(buffered.Bytes()))
	require.False(t, acc.EarlySettled())
}

func TestBufferedEmptyBody(t *testing.T) {
	buffered := NewBuffered(1024)
	acc := NewAccumulator(newScriptedSource(), buffered)

	_, err := acc.Begin()
	require.NoError(t, err)
	require.NoError(t, acc.Run())
	require.Empty(t, buffered.Bytes())
}

func TestBufferedOverLimit(t *testing.T) {
	source := newScriptedSource([]byte("0123456789"), []byte("0123456789"))
	acc := NewAccumulator(source, NewBuffered(15))

	_, err := acc.Begin()
	require.NoError(t, err)

	require.ErrorIs(t, acc.Run(), status.ErrBodyTooLarge)
	require.True(t, source.Drained(), "a failed consumer must not leave the stream suspended")
	require.True(t, acc.ConsumerFailed())
	require.True(t, acc.Recovered())
}

func TestEarlySettlementDiscardsTheRest(t *testing.T) {
	source := newScriptedSource([]byte("enough"), []byte("ignored"), []byte("ignored too"))
	consumer := &scriptedConsumer{settleAfter: 1, settleWith: http.BodyDone}
	acc := NewAccumulator(source, consumer)

	_, err := acc.Begin()
	require.NoError(t, err)

	require.NoError(t, acc.Run())
	require.True(t, acc.EarlySettled())
	require.True(t, source.Drained())
	require.Len(t, consumer.fed, 1, "no chunks may be fed past the settlement")
}

func TestSettlementAtBegin(t *testing.T) {
	source := newScriptedSource([]byte("never read"))
	consumer := &scriptedConsumer{settleAfter: 0, settleWith: http.BodyDone}
	acc := NewAccumulator(source, consumer)

	state, err := acc.Begin()
	require.NoError(t, err)
	require.Equal(t, http.BodyDone, state)

	require.NoError(t, acc.Run())
	require.Zero(t, source.reads, "a consumer settled at Begin must not trigger transport reads")
	require.False(t, acc.EarlySettled())
}

func TestFailureAtBegin(t *testing.T) {
	errDenied := status.NewError(status.UnprocessableEntity, "not today")
	consumer := &scriptedConsumer{settleAfter: 0, settleWith: http.BodyFailed, settleErr: errDenied}
	acc := NewAccumulator(newScriptedSource([]byte("payload")), consumer)

	state, err := acc.Begin()
	require.Equal(t, http.BodyFailed, state)
	require.ErrorIs(t, err, errDenied)
	require.ErrorIs(t, acc.Run(), errDenied)
	require.True(t, acc.ConsumerFailed())
}

func TestConsumerFailureMidBody(t *testing.T) {
	errRejected := status.NewError(status.UnprocessableEntity, "rejected")
	source := newScriptedSource([]byte("a"), []byte("b"), []byte("c"))
	consumer := &scriptedConsumer{settleAfter: 2, settleWith: http.BodyFailed, settleErr: errRejected}
	acc := NewAccumulator(source, consumer)

	_, err := acc.Begin()
	require.NoError(t, err)

	require.ErrorIs(t, acc.Run(), errRejected)
	require.True(t, source.Drained(), "the read side must be force-resumed after a failure")
	require.True(t, acc.ConsumerFailed())
	require.True(t, acc.Recovered(), "a drained stream leaves the connection reusable")
}

func TestStarvedConsumer(t *testing.T) {
	// the stream ends while the consumer still awaits more
	source := newScriptedSource([]byte("partial"))
	consumer := &scriptedConsumer{settleAfter: 10, settleWith: http.BodyDone}
	acc := NewAccumulator(source, consumer)

	_, err := acc.Begin()
	require.NoError(t, err)
	require.ErrorIs(t, acc.Run(), status.ErrBadRequest)
	require.False(t, acc.ConsumerFailed())
	require.True(t, acc.Recovered())
}

func TestTransportFailureSurfacesAsIs(t *testing.T) {
	errReset := errors.New("connection reset by peer")
	source := &failingSource{err: errReset}
	acc := NewAccumulator(source, NewBuffered(1024))

	_, err := acc.Begin()
	require.NoError(t, err)
	require.ErrorIs(t, acc.Run(), errReset)
	require.False(t, acc.ConsumerFailed())
	require.False(t, acc.Recovered())
}

type failingSource struct {
	err error
}

func (f *failingSource) Init(*http.Request) {}

func (f *failingSource) Retrieve() ([]byte, error) {
	return nil, f.err
}
