// Package loopback provides an in-memory transport that dispatches calls
// straight into a service in the same process, useful for testing and
// local development.
package loopback

import (
	"context"
	"errors"
	nethttp "net/http"
	"net/url"
	"time"

	descriptionpkg "github.com/drblury/opflow/internal/runtime/description"
	errspkg "github.com/drblury/opflow/internal/runtime/errors"
	transportpkg "github.com/drblury/opflow/transport"
)

// Service is the part of an rpc service the loopback drives.
type Service interface {
	Matcher() (*descriptionpkg.Matcher, error)
	Process(ctx context.Context, operation string, body []byte) ([]byte, error)
}

// Transport hands posted calls straight to a service. Unmatched uris and
// undeclared operations come back as 404 replies, so clients observe the
// same behaviour as over HTTP.
type Transport struct {
	svc     Service
	matcher *descriptionpkg.Matcher
}

// New wraps svc in a loopback transport. It fails when the service's
// endpoint pattern cannot be compiled into a path matcher.
func New(svc Service) (*Transport, error) {
	matcher, err := svc.Matcher()
	if err != nil {
		return nil, err
	}
	return &Transport{svc: svc, matcher: matcher}, nil
}

// Post matches uri against the service's endpoint pattern and runs the
// call in place. A positive timeout bounds the call through the context.
func (t *Transport) Post(ctx context.Context, uri string, body []byte, timeout time.Duration) (transportpkg.Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	operation, ok := t.matcher.Operation(pathOf(uri))
	if !ok {
		return reply(nethttp.StatusNotFound, nil), nil
	}

	body, err := t.svc.Process(ctx, operation, body)
	if err != nil {
		if errors.Is(err, errspkg.ErrUnknownOperation) {
			return reply(nethttp.StatusNotFound, nil), nil
		}
		return transportpkg.Response{}, err
	}
	return reply(nethttp.StatusOK, body), nil
}

func reply(status int, body []byte) transportpkg.Response {
	return transportpkg.Response{
		Status: status,
		Reason: nethttp.StatusText(status),
		Body:   body,
	}
}

func pathOf(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	return u.Path
}
