package runtime

import (
	"context"
	"fmt"

	descriptionpkg "github.com/drblury/opflow/internal/runtime/description"
	errspkg "github.com/drblury/opflow/internal/runtime/errors"
	faultpkg "github.com/drblury/opflow/internal/runtime/fault"
	transportpkg "github.com/drblury/opflow/transport"
)

// clientProcessor drives one outbound call. Scope boundaries carry no
// actions on the client side; the innermost step serializes the request,
// posts it, and turns the reply back into the response container.
type clientProcessor struct {
	client *Client
	proc   *processor
}

func (cl *Client) newProcessor(ctx context.Context, operation string, fields map[string]any) *clientProcessor {
	cp := &clientProcessor{client: cl}
	cp.proc = newProcessor(ctx, operation, cp)
	cp.proc.request.Update(fields)
	cl.plugins.bind(cp.proc)
	return cp
}

func (cp *clientProcessor) enterScope(Scope) error { return nil }
func (cp *clientProcessor) exitScope(Scope) error  { return nil }

// execute performs the wire exchange. A transport failure or a non-2xx
// reply raises a RequestException carrying a short reason, the failure
// additionally keeping its cause in the chain; a decoded reply carrying
// the fault key is rebuilt into a fault from this client's registry,
// clearing the response container first unless debug mode keeps it
// around for inspection.
func (cp *clientProcessor) execute() error {
	raw, err := cp.client.codec.Marshal(cp.proc.request.Map())
	if err != nil {
		return err
	}
	cp.proc.rawRequest = raw

	uri, err := cp.client.API.OperationURI(cp.proc.context.operation)
	if err != nil {
		return err
	}
	resp, err := cp.client.transport.Post(cp.proc.context.ctx, uri, raw, cp.client.API.Timeout)
	if err != nil {
		return fmt.Errorf("%w: %w",
			cp.client.faults.New("RequestException", fmt.Sprintf("post %s", uri)), err)
	}
	cp.proc.rawResponse = resp.Body

	if !transportpkg.StatusOK(resp.Status) {
		return cp.client.faults.New("RequestException",
			fmt.Sprintf("%d %s", resp.Status, resp.Reason))
	}

	payload, err := cp.client.codec.Unmarshal(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", errspkg.ErrInvalidResponse, err)
	}
	cp.proc.response.Update(payload)

	if value, ok := cp.proc.response.Lookup(faultpkg.WireKey); ok {
		name, args, derr := faultpkg.Decode(value)
		if derr != nil {
			return fmt.Errorf("%w: %v", errspkg.ErrInvalidResponse, derr)
		}
		if !cp.client.API.Debug {
			cp.proc.response.Clear()
		}
		return cp.client.faults.New(name, args...)
	}
	return nil
}

// project shapes the response container into the operation's declared
// outputs.
func (cp *clientProcessor) project(op *descriptionpkg.Operation) any {
	switch len(op.Outputs) {
	case 0:
		return nil
	case 1:
		return cp.proc.response.Get(op.Outputs[0])
	default:
		values := make([]any, len(op.Outputs))
		for i, name := range op.Outputs {
			values[i] = cp.proc.response.Get(name)
		}
		return values
	}
}
