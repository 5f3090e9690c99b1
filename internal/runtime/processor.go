package runtime

import (
	"context"

	containerpkg "github.com/drblury/opflow/internal/runtime/container"
	errspkg "github.com/drblury/opflow/internal/runtime/errors"
)

// Scope identifies one stage of the call pipeline. Plugins register at
// request or operation scope; function scope belongs to the operation
// handler itself.
type Scope string

const (
	ScopeRequest   Scope = "request"
	ScopeOperation Scope = "operation"
	ScopeFunction  Scope = "function"
	ScopeDone      Scope = "done"
)

// scopeTransitions orders the pipeline stages. Function scope is terminal;
// the processor marks itself done instead of transitioning out of it.
var scopeTransitions = map[Scope]Scope{
	ScopeRequest:   ScopeOperation,
	ScopeOperation: ScopeFunction,
}

// pipelineHooks binds the processor to one side of a call. The service
// and the client supply different scope actions and a different innermost
// execution step, the traversal logic is shared.
type pipelineHooks interface {
	enterScope(s Scope) error
	exitScope(s Scope) error
	execute() error
}

// pipelineUnit is one registered plugin bound to a call's containers.
type pipelineUnit struct {
	name string
	call func() error
}

// processor walks one call through its scopes. Each plugin runs as a
// single function that calls Context.Continue in the middle, so work
// before the continuation runs on the way in and work after it runs on
// the way out, innermost first. A plugin that returns without continuing
// short-circuits everything deeper. A processor is single use.
type processor struct {
	hooks   pipelineHooks
	context *Context
	units   map[Scope][]pipelineUnit

	request  containerpkg.Container
	response containerpkg.Container

	rawRequest  []byte
	rawResponse []byte

	scope Scope
	index int
	armed bool
	done  bool
}

func newProcessor(ctx context.Context, operation string, hooks pipelineHooks) *processor {
	p := &processor{
		hooks:    hooks,
		request:  containerpkg.New(),
		response: containerpkg.New(),
		scope:    ScopeRequest,
		index:    -1,
	}
	p.context = &Context{ctx: ctx, operation: operation, fields: containerpkg.New(), proc: p}
	return p
}

// run drives the call from the first scope to completion. A processor
// refuses to run twice, whatever the outcome of the first attempt.
func (p *processor) run() error {
	if p.done {
		return errspkg.ErrAlreadyProcessed
	}
	defer func() {
		p.done = true
		p.scope = ScopeDone
	}()
	return p.advance()
}

// advance resumes traversal at the current scope. The frame that enters a
// scope is the one that exits it, after everything nested inside has
// unwound. Scope exit actions are skipped when an error is propagating.
func (p *processor) advance() error {
	entered := false
	scope := p.scope
	if p.index == -1 {
		entered = true
		if err := p.hooks.enterScope(scope); err != nil {
			return err
		}
	}

	var err error
	if scope == ScopeFunction {
		err = p.hooks.execute()
	} else {
		err = p.step()
	}
	if err != nil {
		return err
	}

	if entered {
		return p.hooks.exitScope(scope)
	}
	return nil
}

// step moves to the next unit of the current scope, transitioning to the
// next scope once the current one is exhausted.
func (p *processor) step() error {
	p.index++
	units := p.units[p.scope]
	switch {
	case p.index < len(units):
		return p.invoke(units[p.index])
	case p.index == len(units):
		p.scope = scopeTransitions[p.scope]
		p.index = -1
		return p.advance()
	default:
		return errspkg.ErrIndexOverrun
	}
}

// invoke runs one plugin with a fresh continuation. The previous arming
// state is restored afterwards so an outer plugin cannot ride on an inner
// plugin's continuation.
func (p *processor) invoke(unit pipelineUnit) error {
	prev := p.armed
	p.armed = true
	err := unit.call()
	p.armed = prev
	return err
}

// resume consumes the pending continuation and advances the pipeline.
func (p *processor) resume() error {
	if !p.armed {
		return errspkg.ErrContinueReinvoked
	}
	p.armed = false
	return p.advance()
}

// Context is the per-call state shared by every plugin and the handler.
type Context struct {
	ctx       context.Context
	operation string
	fields    containerpkg.Container
	proc      *processor
}

// Operation returns the name of the operation being called.
func (c *Context) Operation() string {
	return c.operation
}

// Fields is a scratch container scoped to this call. Plugins use it to
// pass values to each other and to the handler; nothing in it crosses the
// wire.
func (c *Context) Fields() containerpkg.Container {
	return c.fields
}

// Context returns the call's context.Context.
func (c *Context) Context() context.Context {
	return c.ctx
}

// SetContext replaces the call's context.Context, typically with one
// carrying a tracing span.
func (c *Context) SetContext(ctx context.Context) {
	c.ctx = ctx
}

// Continue hands control to the rest of the pipeline and returns once
// everything deeper has run. Work before the call is the plugin's pre
// phase, work after it is the post phase. Each plugin may continue at
// most once; a second call fails with ErrContinueReinvoked, as does a
// call from the operation handler.
func (c *Context) Continue() error {
	return c.proc.resume()
}

// RequestBody returns the raw request payload. On the service side it is
// available from the start of the call; on the client side it is set once
// the request has been serialized.
func (c *Context) RequestBody() []byte {
	return c.proc.rawRequest
}

// ResponseBody returns the raw response payload, once it exists. On the
// service side it is set when the operation scope exits; on the client
// side it is set as soon as the transport responds.
func (c *Context) ResponseBody() []byte {
	return c.proc.rawResponse
}
