// Package http carries opflow calls over HTTP: a client-side Transport
// that posts serialized requests, and a server-side Handler that hosts a
// service behind net/http.
package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	nethttp "net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	runtimepkg "github.com/drblury/opflow/internal/runtime"
	descriptionpkg "github.com/drblury/opflow/internal/runtime/description"
	errspkg "github.com/drblury/opflow/internal/runtime/errors"
	transportpkg "github.com/drblury/opflow/transport"
)

// MaxRequestBytes caps the request bodies the handler is willing to read.
const MaxRequestBytes = 102400

// CallIDHeader names the header that carries a call's id across the wire.
const CallIDHeader = "X-Call-Id"

type callIDKey struct{}

// WithCallID returns a context that carries id into the call id header of
// outbound requests made through Transport.
func WithCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callIDKey{}, id)
}

// CallIDFrom returns the call id carried by ctx, or "" when there is
// none. On the service side the handler seeds it from the inbound header.
func CallIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(callIDKey{}).(string)
	return id
}

// PropagateCallID returns a request-scope plugin that copies the call id
// from the call's fields into the call context, so Transport forwards it
// as a header. Register it after CallIDPlugin.
func PropagateCallID() runtimepkg.PluginRegistration {
	return runtimepkg.PluginRegistration{
		Name:  "call_id_header",
		Scope: runtimepkg.ScopeRequest,
		Request: func(c *runtimepkg.Context) error {
			if id, ok := c.Fields().Get(runtimepkg.CallIDField).(string); ok {
				c.SetContext(WithCallID(c.Context(), id))
			}
			return c.Continue()
		},
	}
}

var defaultClient = &nethttp.Client{}

// Transport posts calls over HTTP. The zero value is ready to use: it
// shares a default client and sends JSON payloads.
type Transport struct {
	// Client overrides the underlying HTTP client.
	Client *nethttp.Client
	// ContentType overrides the payload MIME type sent with each request.
	ContentType string
}

// Post sends body to uri and returns the reply. A positive timeout bounds
// the whole exchange through the context. Trace context and the call id,
// when present, travel as headers.
func (t *Transport) Post(ctx context.Context, uri string, body []byte, timeout time.Duration) (transportpkg.Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodPost, uri, bytes.NewReader(body))
	if err != nil {
		return transportpkg.Response{}, err
	}
	req.Header.Set("Content-Type", t.contentType())
	if id := CallIDFrom(ctx); id != "" {
		req.Header.Set(CallIDHeader, id)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := t.client().Do(req)
	if err != nil {
		return transportpkg.Response{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportpkg.Response{}, err
	}

	return transportpkg.Response{
		Status: resp.StatusCode,
		Reason: reasonPhrase(resp),
		Body:   payload,
	}, nil
}

func (t *Transport) client() *nethttp.Client {
	if t.Client != nil {
		return t.Client
	}
	return defaultClient
}

func (t *Transport) contentType() string {
	if t.ContentType != "" {
		return t.ContentType
	}
	return "application/json"
}

func reasonPhrase(resp *nethttp.Response) string {
	reason := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))
	return strings.TrimSpace(reason)
}

// Service is the part of an rpc service the handler drives.
type Service interface {
	Matcher() (*descriptionpkg.Matcher, error)
	Process(ctx context.Context, operation string, body []byte) ([]byte, error)
	ContentType() string
}

// Handler hosts a service over HTTP. Calls are POSTs against the paths
// the service's endpoint pattern describes; pipeline faults come back as
// 200 replies carrying the fault body, so only host-level failures map to
// bare status codes.
type Handler struct {
	svc     Service
	matcher *descriptionpkg.Matcher
}

// NewHandler wraps svc for serving. It fails when the service's endpoint
// pattern cannot be compiled into a path matcher.
func NewHandler(svc Service) (*Handler, error) {
	matcher, err := svc.Matcher()
	if err != nil {
		return nil, err
	}
	return &Handler{svc: svc, matcher: matcher}, nil
}

func (h *Handler) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.Method != nethttp.MethodPost {
		w.Header().Set("Allow", nethttp.MethodPost)
		nethttp.Error(w, nethttp.StatusText(nethttp.StatusMethodNotAllowed), nethttp.StatusMethodNotAllowed)
		return
	}

	operation, ok := h.matcher.Operation(r.URL.Path)
	if !ok {
		nethttp.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(nethttp.MaxBytesReader(w, r.Body, MaxRequestBytes))
	if err != nil {
		var tooLarge *nethttp.MaxBytesError
		if errors.As(err, &tooLarge) {
			nethttp.Error(w, nethttp.StatusText(nethttp.StatusRequestEntityTooLarge), nethttp.StatusRequestEntityTooLarge)
			return
		}
		nethttp.Error(w, nethttp.StatusText(nethttp.StatusBadRequest), nethttp.StatusBadRequest)
		return
	}

	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	if id := r.Header.Get(CallIDHeader); id != "" {
		ctx = WithCallID(ctx, id)
	}

	response, err := h.svc.Process(ctx, operation, body)
	if err != nil {
		if errors.Is(err, errspkg.ErrUnknownOperation) {
			nethttp.NotFound(w, r)
			return
		}
		nethttp.Error(w, nethttp.StatusText(nethttp.StatusInternalServerError), nethttp.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", h.svc.ContentType())
	w.Write(response)
}
