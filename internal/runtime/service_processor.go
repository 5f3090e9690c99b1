package runtime

import (
	"context"
	"errors"
	"fmt"

	errspkg "github.com/drblury/opflow/internal/runtime/errors"
	faultpkg "github.com/drblury/opflow/internal/runtime/fault"
	loggingpkg "github.com/drblury/opflow/internal/runtime/logging"
)

// serviceProcessor drives one inbound call. Its scope actions deserialize
// the request when the operation scope is entered and serialize the
// response when it exits, so operation plugins see containers while
// request plugins see raw payloads.
type serviceProcessor struct {
	svc  *Service
	proc *processor
}

func (s *Service) newProcessor(ctx context.Context, operation string, body []byte) *serviceProcessor {
	sp := &serviceProcessor{svc: s}
	sp.proc = newProcessor(ctx, operation, sp)
	sp.proc.rawRequest = body
	s.plugins.bind(sp.proc)
	return sp
}

// Execute runs the call to completion and returns the serialized
// response. Anything that goes wrong inside the pipeline, a failing
// plugin, a faulting handler, a panic, an undecodable request, comes back
// as a marshalled fault body, redacted unless the fault is whitelisted or
// the api runs in debug mode. The error return only reports calls that
// could not produce a body at all.
func (sp *serviceProcessor) Execute() ([]byte, error) {
	err := sp.safeRun()
	if err == nil {
		return sp.proc.rawResponse, nil
	}
	if errors.Is(err, errspkg.ErrAlreadyProcessed) {
		return nil, err
	}

	sp.svc.Logger.Error("Call failed", err, loggingpkg.LogFields{
		"operation": sp.proc.context.operation,
	})
	return sp.marshalFault(err)
}

func (sp *serviceProcessor) safeRun() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("opflow: call panic: %v", r)
		}
	}()
	return sp.proc.run()
}

// marshalFault replaces the response wholesale with the wire form of the
// fault. Faults whose name the description does not whitelist are
// substituted with the fixed redacted fault, unless debug mode is on. A
// fault whose arguments cannot be serialized degrades to the redacted
// fault as well, so this path always yields a body with the default
// codec.
func (sp *serviceProcessor) marshalFault(cause error) ([]byte, error) {
	f := faultpkg.From(cause)
	if !sp.svc.API.Debug && !sp.svc.API.Whitelisted(f.Name()) {
		f = faultpkg.Redacted()
	}

	raw, err := sp.encodeFault(f)
	if err != nil {
		raw, err = sp.encodeFault(faultpkg.Redacted())
		if err != nil {
			return nil, err
		}
	}
	sp.proc.rawResponse = raw
	return raw, nil
}

func (sp *serviceProcessor) encodeFault(f *faultpkg.Fault) ([]byte, error) {
	sp.proc.response.Clear()
	sp.proc.response.Set(faultpkg.WireKey, faultpkg.Encode(f))
	return sp.svc.codec.Marshal(sp.proc.response.Map())
}

func (sp *serviceProcessor) enterScope(s Scope) error {
	if s == ScopeOperation {
		payload, err := sp.svc.codec.Unmarshal(sp.proc.rawRequest)
		if err != nil {
			return err
		}
		sp.proc.request.Update(payload)
	}
	return nil
}

func (sp *serviceProcessor) exitScope(s Scope) error {
	if s == ScopeOperation {
		raw, err := sp.svc.codec.Marshal(sp.proc.response.Map())
		if err != nil {
			return err
		}
		sp.proc.rawResponse = raw
	}
	return nil
}

func (sp *serviceProcessor) execute() error {
	handler := sp.svc.handler(sp.proc.context.operation)
	if handler == nil {
		return errspkg.ErrHandlerRequired
	}
	return handler(sp.proc.request, sp.proc.response, sp.proc.context)
}
