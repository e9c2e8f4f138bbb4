package status

// HTTPError is an error with a corresponding status code attached. The core
// recognizes these and turns them into well-formed responses via the
// application's error handler; any other error is treated as a server fault.
type HTTPError struct {
	Message string
	Code    Code
}

func NewError(code Code, message string) error {
	return HTTPError{
		Code:    code,
		Message: message,
	}
}

func (h HTTPError) Error() string {
	return h.Message
}

var (
	// ErrCloseConnection is returned by handlers that want the connection to be
	// actively closed without any response sent.
	ErrCloseConnection = NewError(CloseConnection, "actively closing the connection")

	ErrShutdown         = NewError(ServiceUnavailable, "graceful shutdown")
	ErrGracefulShutdown = NewError(ServiceUnavailable, "graceful shutdown in progress")

	ErrBadRequest           = NewError(BadRequest, "bad request")
	ErrMalformedPath        = NewError(BadRequest, "malformed request path")
	ErrBadQuery             = NewError(BadRequest, "malformed URI query")
	ErrBadChunk             = NewError(BadRequest, "malformed chunk-encoded data")
	ErrBadUpgrade           = NewError(BadRequest, "malformed upgrade request")
	ErrMethodNotImplemented = NewError(NotImplemented, "request method is not supported")
	ErrMethodNotAllowed     = NewError(MethodNotAllowed, "method not allowed")
	ErrNotFound             = NewError(NotFound, "not found")
	ErrInternalServerError  = NewError(InternalServerError, "internal server error")
	ErrBodyTooLarge         = NewError(RequestEntityTooLarge, "request body is too large")
	ErrTooLongRequestLine   = NewError(RequestURITooLong, "request line is too long")
	ErrHeaderFieldsTooLarge = NewError(RequestHeaderFieldsTooLarge, "too large headers section")
	ErrTooManyHeaders       = NewError(RequestHeaderFieldsTooLarge, "too many headers")
	ErrUnsupportedProtocol  = NewError(HTTPVersionNotSupported, "HTTP version not supported")
	ErrUnsupportedMediaType = NewError(UnsupportedMediaType, "unsupported media type")
)

// Is reports whether err is an HTTPError carrying the given code.
func Is(err error, code Code) bool {
	http, ok := err.(HTTPError)
	return ok && http.Code == code
}

// CodeOf extracts the status code off an error, falling back to 500 for
// non-HTTP errors.
func CodeOf(err error) Code {
	if http, ok := err.(HTTPError); ok {
		return http.Code
	}

	return InternalServerError
}

// Oversized reports whether the error signals input the decoder refused to
// buffer. Such failures always close the connection after the response.
func Oversized(err error) bool {
	code := CodeOf(err)
	return code == RequestURITooLong || code == RequestHeaderFieldsTooLarge
}
