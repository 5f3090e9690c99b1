// Package transport defines the wire contract between opflow clients and
// services. Each transport implementation (http, loopback) lives in its
// own sub-package; clients take a Transport instance at construction.
package transport

import (
	"context"
	"time"
)

// Response is the transport-level reply to a posted call. Status and
// Reason mirror their HTTP counterparts; transports that do not speak
// HTTP synthesize them. Body carries the serialized response payload,
// fault bodies included.
type Response struct {
	Status int
	Reason string
	Body   []byte
}

// Transport delivers one serialized request to a service endpoint and
// returns the raw reply. An error is reserved for delivery failures;
// replies with non-2xx statuses are returned as Responses so the caller
// decides how to surface them.
type Transport interface {
	Post(ctx context.Context, uri string, body []byte, timeout time.Duration) (Response, error)
}

// StatusOK reports whether status is in the 2xx success range.
func StatusOK(status int) bool {
	return status >= 200 && status <= 299
}
