package runtime

import (
	"context"
	"fmt"

	codecpkg "github.com/drblury/opflow/codec"
	descriptionpkg "github.com/drblury/opflow/internal/runtime/description"
	errspkg "github.com/drblury/opflow/internal/runtime/errors"
	faultpkg "github.com/drblury/opflow/internal/runtime/fault"
	loggingpkg "github.com/drblury/opflow/internal/runtime/logging"
	transportpkg "github.com/drblury/opflow/transport"
)

// ClientDependencies holds the collaborators for a Client. Transport is
// required; the rest default from the description.
type ClientDependencies struct {
	Transport transportpkg.Transport
	Codec     codecpkg.Codec       // Overrides the codec named by the description's protocol.
	Plugins   []PluginRegistration // Registered in order during construction.
}

// Client calls operations on a remote service described by an api
// description. Calls run through the same scoped plugin pipeline as the
// service side, with the wire exchange sitting where the service runs its
// handler.
type Client struct {
	API    *descriptionpkg.API
	Logger loggingpkg.ServiceLogger

	codec     codecpkg.Codec
	faults    *faultpkg.Registry
	plugins   *pluginSet
	transport transportpkg.Transport
	format    string
}

// NewClient constructs a Client for the supplied description. The
// description's endpoint must be complete enough to derive call URIs.
func NewClient(api *descriptionpkg.API, log loggingpkg.ServiceLogger, deps ClientDependencies) (*Client, error) {
	if api == nil {
		return nil, errspkg.ErrDescriptionRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if deps.Transport == nil {
		return nil, errspkg.ErrTransportRequired
	}
	if err := api.Validate(); err != nil {
		return nil, errspkg.NewDescriptionError(err)
	}

	format, err := api.ClientFormat()
	if err != nil {
		return nil, err
	}

	cdc := deps.Codec
	if cdc == nil {
		cdc, err = codecpkg.Get(api.Protocol)
		if err != nil {
			return nil, err
		}
	}

	cl := &Client{
		API:       api,
		Logger:    log,
		codec:     cdc,
		faults:    faultpkg.NewRegistry(),
		plugins:   newPluginSet(),
		transport: deps.Transport,
		format:    format,
	}

	for _, reg := range deps.Plugins {
		if err := cl.RegisterPlugin(reg); err != nil {
			return nil, fmt.Errorf("opflow: register plugin %s: %w", pluginName(reg), err)
		}
	}

	log.Info("Creating rpc client", loggingpkg.LogFields{
		"api":      api.Name,
		"version":  api.Version,
		"endpoint": format,
	})
	return cl, nil
}

// RegisterPlugin attaches a plugin to the client pipeline. Registration
// fails once the first call has been made.
func (cl *Client) RegisterPlugin(reg PluginRegistration) error {
	return cl.plugins.register(reg)
}

// Call invokes the named operation with the given input fields and
// returns its result: nil for operations without outputs, the bare value
// for a single output, and a slice in declared order otherwise. Outputs
// missing from the response come back as nil entries. Faults raised by
// the remote side are returned as *fault.Fault errors resolved against
// this client's registry.
func (cl *Client) Call(ctx context.Context, operation string, fields map[string]any) (any, error) {
	cl.plugins.seal()
	op := cl.API.Operation(operation)
	if op == nil {
		return nil, errspkg.ErrUnknownOperation
	}

	cp := cl.newProcessor(ctx, operation, fields)
	if err := cp.proc.run(); err != nil {
		return nil, err
	}
	return cp.project(op), nil
}

// CallArgs invokes the named operation with positional arguments matched
// against the operation's declared inputs.
func (cl *Client) CallArgs(ctx context.Context, operation string, args ...any) (any, error) {
	op := cl.API.Operation(operation)
	if op == nil {
		return nil, errspkg.ErrUnknownOperation
	}
	if len(args) != len(op.Inputs) {
		return nil, fmt.Errorf("opflow: operation %q takes %d arguments, got %d",
			operation, len(op.Inputs), len(args))
	}

	fields := make(map[string]any, len(args))
	for i, name := range op.Inputs {
		fields[name] = args[i]
	}
	return cl.Call(ctx, operation, fields)
}

// Faults returns the client's fault registry. Use it to obtain kinds for
// matching remote faults with errors.Is.
func (cl *Client) Faults() *faultpkg.Registry {
	return cl.faults
}

// ContentType returns the MIME type of the payloads the client sends.
func (cl *Client) ContentType() string {
	return cl.codec.ContentType()
}
