// Package sequencer guarantees that response bytes hit the wire in strict
// request-arrival order, no matter in which order the asynchronous work
// producing them completes. Nothing else in the pipeline is allowed to write
// to the transport: every component submits tagged writes here instead.
package sequencer

import (
	"sync"

	"github.com/valyala/bytebufferpool"
	"github.com/weft-web/weft/http/status"
	"github.com/weft-web/weft/internal/transport"
)

// Sequencer releases writes in ascending order of (sequence, submission
// order within the sequence). Out-of-order completions are buffered in pooled
// buffers until all lower-ordered writes have been released.
type Sequencer struct {
	mu       sync.Mutex
	cond     *sync.Cond
	w        transport.Writer
	pending  map[uint64]*entry
	next     uint64
	reserved uint64
	limit    int
	err      error
	closing  bool
	onClose  func()
}

type entry struct {
	bufs  []*bytebufferpool.ByteBuffer
	done  bool
	close bool
}

// New returns a sequencer over the writer. limit bounds how many requests may
// be in flight at once; Reserve blocks once it is reached. limit <= 0 means
// no bound.
func New(w transport.Writer, limit int) *Sequencer {
	s := &Sequencer{
		w:       w,
		pending: make(map[uint64]*entry),
		limit:   limit,
	}
	s.cond = sync.NewCond(&s.mu)

	return s
}

// NotifyClose registers a callback invoked once, when the sequencer turns
// terminal (a close-flagged response flushed or a write failed). Its job is
// to unblock a reader stuck in a transport read. Must be set before use.
func (s *Sequencer) NotifyClose(fn func()) {
	s.onClose = fn
}

// Ticket is the completion handle of a single request: its sequence number
// was fixed at arrival, and however late the response shows up, it is written
// after all earlier tickets and before all later ones.
type Ticket struct {
	s   *Sequencer
	seq uint64
}

// Reserve allocates the next sequence number, in request-arrival order. It
// blocks while the in-flight limit is reached.
func (s *Sequencer) Reserve() *Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.limit > 0 && int(s.reserved-s.next) >= s.limit && s.err == nil {
		s.cond.Wait()
	}

	seq := s.reserved
	s.reserved++
	s.pending[seq] = new(entry)

	return &Ticket{s: s, seq: seq}
}

// Buffer leases a pooled buffer to render a payload into. Ownership passes
// back to the sequencer on Write/Finalize.
func (t *Ticket) Buffer() *bytebufferpool.ByteBuffer {
	return bytebufferpool.Get()
}

// Write submits an interim payload (e.g. a 100 Continue reply). It must
// happen strictly before Finalize on the same ticket.
func (t *Ticket) Write(buf *bytebufferpool.ByteBuffer) error {
	return t.s.submit(t.seq, buf, false, false)
}

// Finalize submits the final payload and completes the ticket. Exactly one
// Finalize per ticket; a nil buffer completes the ticket without bytes (used
// when the connection is being torn down).
func (t *Ticket) Finalize(buf *bytebufferpool.ByteBuffer, closeAfter bool) error {
	return t.s.submit(t.seq, buf, true, closeAfter)
}

func (s *Sequencer) submit(seq uint64, buf *bytebufferpool.ByteBuffer, final, closeAfter bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.pending[seq]
	if !ok || e.done && final {
		panic("BUG: submission on a completed ticket")
	}

	if s.err != nil {
		if buf != nil {
			bytebufferpool.Put(buf)
		}
		if final {
			e.done = true
		}

		return s.err
	}

	if buf != nil && buf.Len() > 0 {
		e.bufs = append(e.bufs, buf)
	} else if buf != nil {
		bytebufferpool.Put(buf)
	}

	if final {
		e.done = true
		e.close = closeAfter
	}

	s.advance()

	if final && closeAfter && s.err == status.ErrCloseConnection {
		// the poison is this very submission's close flag taking effect, not
		// a failure its caller needs to hear about
		return nil
	}

	return s.err
}

// advance flushes everything releasable: the head entry's accumulated writes,
// and, once the head completes, all the buffered completed successors.
// Callers must hold mu.
func (s *Sequencer) advance() {
	defer s.cond.Broadcast()

	for s.err == nil {
		e, ok := s.pending[s.next]
		if !ok {
			return
		}

		for _, buf := range e.bufs {
			if err := s.w.Write(buf.B); err != nil {
				s.failLocked(err)
				return
			}

			bytebufferpool.Put(buf)
		}
		e.bufs = nil

		if !e.done {
			// the head is still in flight; only its interim writes could go
			return
		}

		delete(s.pending, s.next)
		s.next++

		if e.close {
			s.closing = true
			s.failLocked(status.ErrCloseConnection)
			return
		}
	}
}

// failLocked poisons the sequencer and releases the buffered payloads. The
// entries themselves stay so that late submissions still find their ticket.
func (s *Sequencer) failLocked(err error) {
	if s.err == nil {
		s.err = err

		if s.onClose != nil {
			// off the lock: the callback typically closes the transport, which
			// wakes a reader that may immediately call back in
			go s.onClose()
		}
	}

	for _, e := range s.pending {
		for _, buf := range e.bufs {
			bytebufferpool.Put(buf)
		}
		e.bufs = nil
	}
}

// Abort poisons the sequencer, releasing every pending suspension. Used when
// the connection dies underneath us.
func (s *Sequencer) Abort(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failLocked(err)
	s.cond.Broadcast()
}

// Drain blocks until every reserved ticket has been flushed (or the sequencer
// failed). It is the pre-teardown and pre-upgrade barrier.
func (s *Sequencer) Drain() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.err == nil && s.next != s.reserved {
		s.cond.Wait()
	}

	if s.next != s.reserved {
		return s.err
	}

	return nil
}

// Closing reports whether a flushed response demanded the connection be
// closed, or the sequencer failed.
func (s *Sequencer) Closing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closing || s.err != nil
}

// Err returns the sticky failure, if any.
func (s *Sequencer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}
