package http

// BodyState is a body consumer's disposition towards further input.
type BodyState uint8

const (
	// BodyAwaitingMore means the consumer wants the next chunk.
	BodyAwaitingMore BodyState = iota + 1
	// BodyDone means the consumer settled successfully and needs no more
	// input. Settling before the body ends discards the rest of it and forces
	// the response to carry Connection: close.
	BodyDone
	// BodyFailed means the consumer settled with an error, which is routed
	// through the application's error handler.
	BodyFailed
)

// BodyConsumer is the application-level body parsing contract. Begin is
// invoked before any transport reads happen, so a consumer may settle without
// soliciting the body at all (relevant for Expect: 100-continue). Feed is
// invoked once per chunk, with last marking the end of the stream, and never
// again after a settled state was returned.
//
// The transport is read strictly between Feed invocations: a Feed that
// hasn't returned suspends the connection's read side.
type BodyConsumer interface {
	Begin() (BodyState, error)
	Feed(chunk []byte, last bool) (BodyState, error)
}
