package runtime

import (
	"errors"
	"sync"
	"sync/atomic"

	containerpkg "github.com/drblury/opflow/internal/runtime/container"
	errspkg "github.com/drblury/opflow/internal/runtime/errors"
)

// RequestPlugin runs at request scope. It sees only the call context; the
// request payload is still raw bytes on the way in and the response is
// already serialized on the way out.
type RequestPlugin func(c *Context) error

// OperationPlugin runs at operation scope with the deserialized request
// and response containers. Mutations to either container are visible to
// everything deeper in the pipeline.
type OperationPlugin func(request, response containerpkg.Container, c *Context) error

// PluginRegistration captures how a plugin should be attached to a
// service or client pipeline. Exactly one of Request or Operation must be
// set, matching the declared scope.
type PluginRegistration struct {
	Name      string
	Scope     Scope
	Request   RequestPlugin
	Operation OperationPlugin
}

// pluginSet holds the registered plugins for one pipeline end. The set
// seals itself when the first call is processed; after that the slices
// are immutable and read without locking.
type pluginSet struct {
	mu     sync.Mutex
	sealed atomic.Bool

	request   []PluginRegistration
	operation []PluginRegistration
}

func newPluginSet() *pluginSet {
	return &pluginSet{}
}

func (ps *pluginSet) register(reg PluginRegistration) error {
	switch reg.Scope {
	case ScopeRequest:
		if reg.Request == nil {
			return errors.New("opflow: request-scope plugin requires a Request function")
		}
		if reg.Operation != nil {
			return errors.New("opflow: request-scope plugin cannot carry an Operation function")
		}
	case ScopeOperation:
		if reg.Operation == nil {
			return errors.New("opflow: operation-scope plugin requires an Operation function")
		}
		if reg.Request != nil {
			return errors.New("opflow: operation-scope plugin cannot carry a Request function")
		}
	default:
		return errspkg.ErrUnknownScope
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.sealed.Load() {
		return errspkg.ErrPluginsSealed
	}
	if reg.Scope == ScopeRequest {
		ps.request = append(ps.request, reg)
	} else {
		ps.operation = append(ps.operation, reg)
	}
	return nil
}

func (ps *pluginSet) seal() {
	if ps.sealed.Load() {
		return
	}
	ps.mu.Lock()
	ps.sealed.Store(true)
	ps.mu.Unlock()
}

// bind attaches the registered plugins to one call's processor. The set
// must be sealed first.
func (ps *pluginSet) bind(p *processor) {
	units := make(map[Scope][]pipelineUnit, 2)
	for _, reg := range ps.request {
		plugin := reg.Request
		units[ScopeRequest] = append(units[ScopeRequest], pipelineUnit{
			name: reg.Name,
			call: func() error { return plugin(p.context) },
		})
	}
	for _, reg := range ps.operation {
		plugin := reg.Operation
		units[ScopeOperation] = append(units[ScopeOperation], pipelineUnit{
			name: reg.Name,
			call: func() error { return plugin(p.request, p.response, p.context) },
		})
	}
	p.units = units
}
