package router

import (
	"github.com/weft-web/weft/http"
	"github.com/weft-web/weft/http/status"
)

// ErrorHandler renders failures the application did not produce itself:
// malformed or oversized requests on the client side, panics and body
// consumer failures on the server side. Returned responses are sequenced like
// any other.
type ErrorHandler interface {
	OnClientError(request *http.Request, err error) *http.Response
	OnServerError(request *http.Request, err error) *http.Response
}

type defaultErrorHandler struct{}

// DefaultErrorHandler renders client errors with their code and message, and
// hides server errors behind an opaque 500.
func DefaultErrorHandler() ErrorHandler {
	return defaultErrorHandler{}
}

func (defaultErrorHandler) OnClientError(_ *http.Request, err error) *http.Response {
	return http.NewResponse().Error(err)
}

func (defaultErrorHandler) OnServerError(_ *http.Request, _ error) *http.Response {
	return http.NewResponse().
		Code(status.InternalServerError).
		String("internal server error")
}
