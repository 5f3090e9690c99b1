/*
Package runtime provides the core call processing infrastructure for opflow.

# Architecture Overview

The runtime package implements the request/response pipeline both ends of
a call share. A Service or Client owns the parsed api description, the
codec, a fault registry, and the sealed plugin set; each call gets its own
single-use processor that walks the plugin chain and performs the
terminal action for its side.

# Package Structure

## Processor (processor.go)

The processor is an explicit state machine over the pipeline scopes
request, operation, and function. One index counter advances through the
current scope's plugins; exhausting a scope promotes to the next one, and
the function scope runs the side-specific terminal action. Scopes nest
within one call stack: the frame that enters a scope exits it after the
nested scopes have unwound, which is what puts the serialized response in
the hands of request-scope plugins on the way out.

## Plugins (plugin.go, builtin.go)

PluginRegistration binds a callable to a scope. The set is append-only
until the first call is processed and immutable afterwards, so chains are
read without locks. builtin.go carries the optional stock plugins: call
ids, access logging, tracing, metrics, throttling, key auth, and panic
recovery.

## Service and Client (service.go, client.go)

The service resolves inbound calls to registered handlers; the client
formats call URIs from the description and drives a Transport. Both seal
their plugin set on the first call and project faults through their own
fault registry. service_processor.go and client_processor.go supply the
scope boundary actions and terminal steps for each side.

## Supporting packages

  - container: the loosely typed field bag request and response payloads
    travel in
  - description: parsing, validation, and the cached endpoint derivations
  - fault: named fault kinds, the wire encoding, and redaction
  - errors: sentinel errors and the description validation wrapper
  - logging: the ServiceLogger interface with slog and entry adapters
  - ids: ULID call id generation
*/
package runtime
