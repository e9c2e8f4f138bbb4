// Package body drives a single request's body from the transport into the
// application's body-parsing contract. The transport is only touched between
// Feed calls, so a consumer that hasn't returned yet is exactly a suspended
// read side - that is the whole backpressure mechanism.
package body

import (
	"io"

	"github.com/weft-web/weft/http"
	"github.com/weft-web/weft/http/status"
	"github.com/weft-web/weft/internal/transport"
)

type accState uint8

const (
	sStart accState = iota + 1
	sStreaming
	sSettledDone
	sSettledErrored
)

// Accumulator owns the Start -> Streaming -> {Settled, Errored} state machine
// of one request's body.
type Accumulator struct {
	source        transport.BodySource
	consumer      http.BodyConsumer
	state         accState
	early         bool
	consumerFault bool
	recovered     bool
	err           error
}

func NewAccumulator(source transport.BodySource, consumer http.BodyConsumer) *Accumulator {
	return &Accumulator{
		source:   source,
		consumer: consumer,
		state:    sStart,
	}
}

// Begin asks the consumer for its initial disposition without touching the
// transport. A consumer that settles right away never sees a single chunk.
func (a *Accumulator) Begin() (http.BodyState, error) {
	if a.state != sStart {
		panic("BUG: accumulator began twice")
	}

	st, err := a.consumer.Begin()
	switch st {
	case http.BodyAwaitingMore:
		a.state = sStreaming
	case http.BodyDone:
		a.state = sSettledDone
	case http.BodyFailed:
		a.state = sSettledErrored
		a.consumerFault = true
		a.err = coalesce(err, status.ErrInternalServerError)
	default:
		panic("BUG: consumer returned unknown state")
	}

	return st, a.err
}

// Run streams the body into the consumer until either side settles. The
// returned error is the consumer's failure or a transport failure; an early
// Done settlement discards the remaining input and is not an error.
func (a *Accumulator) Run() error {
	switch a.state {
	case sStreaming:
	case sSettledDone:
		return nil
	case sSettledErrored:
		return a.err
	default:
		panic("BUG: accumulator run before begin")
	}

	for {
		piece, err := a.source.Retrieve()
		last := err == io.EOF

		if err != nil && !last {
			// transport failure: nothing to recover, surface as-is
			a.state = sSettledErrored
			a.err = err

			return err
		}

		if len(piece) == 0 && !last {
			continue
		}

		st, ferr := a.consumer.Feed(piece, last)
		switch st {
		case http.BodyAwaitingMore:
			if last {
				// the stream ended but the consumer still wants input: the
				// request promised more body than it delivered
				a.state = sSettledErrored
				a.err = status.ErrBadRequest
				a.recovered = true

				return a.err
			}
		case http.BodyDone:
			a.state = sSettledDone
			if !last {
				a.early = true
				return a.discard()
			}

			return nil
		case http.BodyFailed:
			a.state = sSettledErrored
			a.consumerFault = true
			a.err = coalesce(ferr, status.ErrInternalServerError)
			// force-resume the read side so the transport is not left
			// suspended mid-body
			a.recovered = a.discard() == nil

			return a.err
		default:
			panic("BUG: consumer returned unknown state")
		}
	}
}

// EarlySettled reports whether the consumer reached Done before the body was
// fully consumed. Such responses must carry Connection: close.
func (a *Accumulator) EarlySettled() bool {
	return a.early
}

// ConsumerFailed reports whether the settled error originated in the consumer
// rather than in the transport.
func (a *Accumulator) ConsumerFailed() bool {
	return a.consumerFault
}

// Recovered reports whether the stream was still consumed through its end
// despite the failure, leaving the connection positioned at the next request.
func (a *Accumulator) Recovered() bool {
	return a.recovered
}

// discard drains the remaining input without feeding it anywhere.
func (a *Accumulator) discard() error {
	for {
		_, err := a.source.Retrieve()
		switch err {
		case nil:
		case io.EOF:
			return nil
		default:
			return err
		}
	}
}

func coalesce(err, fallback error) error {
	if err != nil {
		return err
	}

	return fallback
}
