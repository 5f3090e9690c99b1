package runtime

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	containerpkg "github.com/drblury/opflow/internal/runtime/container"
	faultpkg "github.com/drblury/opflow/internal/runtime/fault"
	idspkg "github.com/drblury/opflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/opflow/internal/runtime/logging"
)

// Context field keys used by the builtin plugins.
const (
	// CallIDField holds the ULID that correlates one call across plugins
	// and log lines.
	CallIDField = "call_id"
	// AuthKeyField holds the identifier of the api key that authorized
	// the call.
	AuthKeyField = "auth_key"
)

// KeyAuthField is the reserved request field the key auth plugin reads
// the caller's secret from. It is scrubbed before the handler runs.
const KeyAuthField = "api_key"

// DefaultPlugins returns the standard plugin chain: call ids, access
// logging, tracing, metrics, and panic recovery. Fresh services and
// clients start with no plugins at all; register these explicitly where
// wanted.
func DefaultPlugins(log loggingpkg.ServiceLogger) []PluginRegistration {
	return []PluginRegistration{
		CallIDPlugin(),
		AccessLogPlugin(log),
		TracerPlugin(),
		MetricsPlugin(nil),
		RecovererPlugin(),
	}
}

// CallIDPlugin tags each call with a fresh ULID unless one is already
// present.
func CallIDPlugin() PluginRegistration {
	return PluginRegistration{
		Name:  "call_id",
		Scope: ScopeRequest,
		Request: func(c *Context) error {
			if !c.Fields().Has(CallIDField) {
				c.Fields().Set(CallIDField, idspkg.NewCallID())
			}
			return c.Continue()
		},
	}
}

// AccessLogPlugin logs every call with its operation, call id, outcome,
// and elapsed time.
func AccessLogPlugin(log loggingpkg.ServiceLogger) PluginRegistration {
	if log == nil {
		panic("opflow: access log plugin requires a logger")
	}
	return PluginRegistration{
		Name:  "access_log",
		Scope: ScopeRequest,
		Request: func(c *Context) error {
			start := time.Now()
			log.Debug("Handling call", loggingpkg.LogFields{
				"operation": c.Operation(),
				"call_id":   c.Fields().Get(CallIDField),
			})

			if err := c.Continue(); err != nil {
				log.Error("Call failed", err, loggingpkg.LogFields{
					"operation": c.Operation(),
					"call_id":   c.Fields().Get(CallIDField),
					"elapsed":   time.Since(start).String(),
				})
				return err
			}

			log.Info("Call completed", loggingpkg.LogFields{
				"operation": c.Operation(),
				"call_id":   c.Fields().Get(CallIDField),
				"elapsed":   time.Since(start).String(),
			})
			return nil
		},
	}
}

// TracerPlugin wraps each call in an OpenTelemetry span named after the
// operation and swaps the span context into the call.
func TracerPlugin() PluginRegistration {
	return PluginRegistration{
		Name:  "tracer",
		Scope: ScopeRequest,
		Request: func(c *Context) error {
			tracer := otel.Tracer("opflow-call-tracer")
			ctx, span := tracer.Start(c.Context(), c.Operation())
			defer span.End()
			c.SetContext(ctx)

			span.SetAttributes(attribute.String("call.operation", c.Operation()))
			if id, ok := c.Fields().Get(CallIDField).(string); ok {
				span.SetAttributes(attribute.String("call.id", id))
			}

			if err := c.Continue(); err != nil {
				span.RecordError(err)
				return err
			}
			return nil
		},
	}
}

// MetricsPlugin counts calls entering the operation scope and times the
// ones that complete. A nil registerer uses the Prometheus default.
func MetricsPlugin(reg prometheus.Registerer) PluginRegistration {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	calls := mustRegister(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opflow",
		Name:      "calls_total",
		Help:      "Calls that entered the operation scope.",
	}, []string{"operation"}))

	duration := mustRegister(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "opflow",
		Name:      "call_duration_seconds",
		Help:      "Time from operation scope entry to successful completion.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"}))

	return PluginRegistration{
		Name:  "metrics",
		Scope: ScopeOperation,
		Operation: func(request, response containerpkg.Container, c *Context) error {
			calls.WithLabelValues(c.Operation()).Inc()
			start := time.Now()

			if err := c.Continue(); err != nil {
				return err
			}
			duration.WithLabelValues(c.Operation()).Observe(time.Since(start).Seconds())
			return nil
		},
	}
}

// ThrottlePlugin rejects calls beyond the given rate with a 429
// RequestException. Whitelist RequestException to let clients see the
// status instead of a redacted fault.
func ThrottlePlugin(limit rate.Limit, burst int) PluginRegistration {
	limiter := rate.NewLimiter(limit, burst)
	return PluginRegistration{
		Name:  "throttle",
		Scope: ScopeRequest,
		Request: func(c *Context) error {
			if !limiter.Allow() {
				return faultpkg.RequestException.New(429, "Too Many Requests")
			}
			return c.Continue()
		},
	}
}

// KeyAuthPlugin authorizes calls against a map of key ids to bcrypt
// hashes. The caller's secret travels in the reserved api_key request
// field, which is removed before the handler sees the request; the
// matching key id is left in the call's fields.
func KeyAuthPlugin(keys map[string]string) PluginRegistration {
	return PluginRegistration{
		Name:  "key_auth",
		Scope: ScopeOperation,
		Operation: func(request, response containerpkg.Container, c *Context) error {
			secret, _ := request.Get(KeyAuthField).(string)
			if secret == "" {
				return faultpkg.RequestException.New(401, "Unauthorized")
			}

			for id, hash := range keys {
				if bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil {
					request.Delete(KeyAuthField)
					c.Fields().Set(AuthKeyField, id)
					return c.Continue()
				}
			}
			return faultpkg.RequestException.New(401, "Unauthorized")
		},
	}
}

// RecovererPlugin converts a panic anywhere deeper in the pipeline into
// an error, so the boundary marshals it like any other failure. The
// service boundary recovers handler panics on its own; this plugin covers
// panics raised by plugins registered after it.
func RecovererPlugin() PluginRegistration {
	return PluginRegistration{
		Name:  "recoverer",
		Scope: ScopeRequest,
		Request: func(c *Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("opflow: plugin panic: %v", r)
				}
			}()
			return c.Continue()
		},
	}
}

func mustRegister[C prometheus.Collector](reg prometheus.Registerer, collector C) C {
	if err := reg.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector.(C)
		}
		panic(err)
	}
	return collector
}
