package status

type (
	Code   uint16
	Status string
)

// HTTP status codes as registered with IANA.
// See: https://www.iana.org/assignments/http-status-codes/http-status-codes.xhtml
const (
	Continue           Code = 100
	SwitchingProtocols Code = 101

	OK             Code = 200
	Created        Code = 201
	Accepted       Code = 202
	NoContent      Code = 204
	PartialContent Code = 206

	MovedPermanently  Code = 301
	Found             Code = 302
	SeeOther          Code = 303
	NotModified       Code = 304
	TemporaryRedirect Code = 307
	PermanentRedirect Code = 308

	BadRequest                  Code = 400
	Unauthorized                Code = 401
	Forbidden                   Code = 403
	NotFound                    Code = 404
	MethodNotAllowed            Code = 405
	NotAcceptable               Code = 406
	RequestTimeout              Code = 408
	Conflict                    Code = 409
	Gone                        Code = 410
	LengthRequired              Code = 411
	PreconditionFailed          Code = 412
	RequestEntityTooLarge       Code = 413
	RequestURITooLong           Code = 414
	UnsupportedMediaType        Code = 415
	ExpectationFailed           Code = 417
	Teapot                      Code = 418
	UnprocessableEntity         Code = 422
	UpgradeRequired             Code = 426
	TooManyRequests             Code = 429
	RequestHeaderFieldsTooLarge Code = 431

	InternalServerError     Code = 500
	NotImplemented          Code = 501
	BadGateway              Code = 502
	ServiceUnavailable      Code = 503
	GatewayTimeout          Code = 504
	HTTPVersionNotSupported Code = 505

	// CloseConnection is a special internal code telling the core to close
	// the connection without producing any response at all.
	CloseConnection Code = 0
)

// Text returns the standard reason phrase of the code, or an empty string
// for codes it doesn't know.
func Text(code Code) Status {
	switch code {
	case Continue:
		return "Continue"
	case SwitchingProtocols:
		return "Switching Protocols"
	case OK:
		return "OK"
	case Created:
		return "Created"
	case Accepted:
		return "Accepted"
	case NoContent:
		return "No Content"
	case PartialContent:
		return "Partial Content"
	case MovedPermanently:
		return "Moved Permanently"
	case Found:
		return "Found"
	case SeeOther:
		return "See Other"
	case NotModified:
		return "Not Modified"
	case TemporaryRedirect:
		return "Temporary Redirect"
	case PermanentRedirect:
		return "Permanent Redirect"
	case BadRequest:
		return "Bad Request"
	case Unauthorized:
		return "Unauthorized"
	case Forbidden:
		return "Forbidden"
	case NotFound:
		return "Not Found"
	case MethodNotAllowed:
		return "Method Not Allowed"
	case NotAcceptable:
		return "Not Acceptable"
	case RequestTimeout:
		return "Request Timeout"
	case Conflict:
		return "Conflict"
	case Gone:
		return "Gone"
	case LengthRequired:
		return "Length Required"
	case PreconditionFailed:
		return "Precondition Failed"
	case RequestEntityTooLarge:
		return "Request Entity Too Large"
	case RequestURITooLong:
		return "Request URI Too Long"
	case UnsupportedMediaType:
		return "Unsupported Media Type"
	case ExpectationFailed:
		return "Expectation Failed"
	case Teapot:
		return "I'm a teapot"
	case UnprocessableEntity:
		return "Unprocessable Entity"
	case UpgradeRequired:
		return "Upgrade Required"
	case TooManyRequests:
		return "Too Many Requests"
	case RequestHeaderFieldsTooLarge:
		return "Request Header Fields Too Large"
	case InternalServerError:
		return "Internal Server Error"
	case NotImplemented:
		return "Not Implemented"
	case BadGateway:
		return "Bad Gateway"
	case ServiceUnavailable:
		return "Service Unavailable"
	case GatewayTimeout:
		return "Gateway Timeout"
	case HTTPVersionNotSupported:
		return "HTTP Version Not Supported"
	default:
		return ""
	}
}

// Line returns the whole pre-rendered status line (without the protocol) of
// well-known codes, e.g. "200 OK\r\n". Returns an empty string for the rest.
func Line(code Code) string {
	switch code {
	case Continue:
		return "100 Continue\r\n"
	case SwitchingProtocols:
		return "101 Switching Protocols\r\n"
	case OK:
		return "200 OK\r\n"
	case NoContent:
		return "204 No Content\r\n"
	case NotModified:
		return "304 Not Modified\r\n"
	case BadRequest:
		return "400 Bad Request\r\n"
	case NotFound:
		return "404 Not Found\r\n"
	case MethodNotAllowed:
		return "405 Method Not Allowed\r\n"
	case RequestEntityTooLarge:
		return "413 Request Entity Too Large\r\n"
	case RequestURITooLong:
		return "414 Request URI Too Long\r\n"
	case RequestHeaderFieldsTooLarge:
		return "431 Request Header Fields Too Large\r\n"
	case InternalServerError:
		return "500 Internal Server Error\r\n"
	case NotImplemented:
		return "501 Not Implemented\r\n"
	default:
		return ""
	}
}

// Bodyless reports whether a response with the code must not carry a body
// per HTTP semantics.
func Bodyless(code Code) bool {
	return code < 200 || code == NoContent || code == NotModified
}
