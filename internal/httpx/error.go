package httpx

import (
	"fmt"
	"net/http"
)

// HTTPError is a non-2xx response from the gateway. Body holds the raw
// response so callers can decode the error envelope.
type HTTPError struct {
	StatusCode  int
	Body        []byte
	Header      http.Header
	ContentType string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.ContentType == ContentTypeMsgpack {
		return fmt.Sprintf("http error: status=%d (%d byte msgpack body)", e.StatusCode, len(e.Body))
	}
	return fmt.Sprintf("http error: status=%d body=%s", e.StatusCode, string(e.Body))
}

// Retryable reports whether the error should be considered transient.
func (e *HTTPError) Retryable() bool {
	if e == nil {
		return false
	}
	return retryableStatus(e.StatusCode)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusRequestTimeout ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusBadGateway
}
