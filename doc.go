// Package opflow is a small RPC framework driven by a declarative api
// description. The description names the operations a service offers, the
// ordered input and output fields each one carries, where the service
// lives, and which fault names may cross the wire. From one description
// opflow builds both sides of a call: a Service that validates, runs the
// plugin pipeline, invokes the registered handler, and marshals the result
// or fault, and a Client stub that marshals a call, posts it over a
// pluggable transport, and unmarshals the result or reconstructs the
// fault.
//
// A minimal setup parses a description, creates a Service, registers a
// handler per operation, and hosts the service behind a transport; the
// client side parses the same description, picks a transport, and calls
// operations by name. See the examples directory for copy/paste starting
// points.
//
// # Pipeline
//
// Every call walks a scoped plugin pipeline: request-scope plugins see the
// raw payloads, operation-scope plugins see the decoded field containers,
// and the handler runs innermost. Continuation is explicit - a plugin
// calls Context.Continue to hand control deeper and regains it once
// everything inside has finished, so before/after logic is ordinary code
// around that one call. A plugin that returns without continuing
// deliberately short-circuits the rest of the call. Plugin registration
// seals itself when the first call is processed, so every concurrent call
// sees the same chain.
//
// Builtin plugins cover call IDs (ULID), access logging, OpenTelemetry
// tracing, Prometheus metrics, rate limiting, bcrypt key auth, and panic
// recovery; DefaultPlugins returns the standard chain.
//
// # Faults
//
// Errors raised by handlers or plugins are caught once at the processor
// boundary and marshalled into the response under a reserved key. Fault
// names listed in the description's exceptions whitelist cross the wire
// with their name and arguments intact, as does everything when the
// description enables debug; anything else is redacted to the fixed
// RequestException(500). The client rebuilds faults by name against its
// own registry, so errors.Is works on the caller's side without shared
// types.
//
// # Transports and codecs
//
// The wire exchange is one POST per call with a flat text-encoded field
// map as the body. The transport and codec are collaborator interfaces:
// transport/http provides the HTTP client transport and a net/http
// Handler for hosting, transport/loopback dispatches calls in-process for
// tests, and the codec package registers codecs by protocol name with
// sonic-backed JSON as the default.
package opflow
