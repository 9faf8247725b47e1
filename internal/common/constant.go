package common

const (
	// AuthorizationHeaderName carries "Bearer <token>" on HTTP requests and
	// gRPC metadata alike.
	AuthorizationHeaderName = "authorization"

	// RequestIDHeaderName is echoed back on every HTTP response.
	RequestIDHeaderName = "X-Request-ID"
)
