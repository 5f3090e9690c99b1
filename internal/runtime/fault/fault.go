// Package fault models the errors that cross the wire. A Kind names a
// class of faults; a Fault is one instance carrying positional arguments.
// Kinds are matched by name only: the two ends of a call never share type
// identity, each side resolves names against its own registry.
package fault

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// WireKey is the reserved response key that carries an encoded fault. It
// never coexists with ordinary response fields.
const WireKey = "__exception__"

// RedactedStatus is the argument carried by a redacted fault.
const RedactedStatus = 500

// Builtin kinds. These are shared across every registry, the way builtin
// exception types resolve to the same class everywhere.
var (
	// RequestException covers transport failures and redacted faults.
	RequestException = &Kind{name: "RequestException"}
	// Exception is the generic kind plain errors are folded into.
	Exception = &Kind{name: "Exception"}
)

var builtins = map[string]*Kind{
	RequestException.name: RequestException,
	Exception.name:        Exception,
}

// Kind names a class of faults. Within one registry the same name always
// yields the identical *Kind, so equality is pointer equality.
type Kind struct {
	name string
}

// Name returns the kind's wire name.
func (k *Kind) Name() string {
	return k.name
}

// Error makes a Kind usable as an errors.Is target.
func (k *Kind) Error() string {
	return k.name
}

// New builds a fault of this kind with the given positional arguments.
func (k *Kind) New(args ...any) *Fault {
	return &Fault{kind: k, Args: args}
}

// Fault is a single raised fault: a kind plus the positional arguments
// that cross the wire with it.
type Fault struct {
	kind *Kind
	Args []any
}

// Kind returns the fault's kind.
func (f *Fault) Kind() *Kind {
	return f.kind
}

// Name returns the fault's wire name.
func (f *Fault) Name() string {
	return f.kind.name
}

func (f *Fault) Error() string {
	if len(f.Args) == 0 {
		return f.kind.name
	}
	parts := make([]string, len(f.Args))
	for i, arg := range f.Args {
		parts[i] = fmt.Sprint(arg)
	}
	return f.kind.name + ": " + strings.Join(parts, ", ")
}

// Is matches faults by kind, so errors.Is works against either a Kind or
// another Fault of the same kind.
func (f *Fault) Is(target error) bool {
	switch t := target.(type) {
	case *Kind:
		return f.kind == t
	case *Fault:
		return f.kind == t.kind
	}
	return false
}

// Registry resolves names to kinds. Unknown names get a lazily created
// kind that is cached for the lifetime of the registry, so resolution is
// reference-stable per instance. Builtin names resolve to the shared
// builtin kinds in every registry.
type Registry struct {
	mu    sync.Mutex
	kinds map[string]*Kind
}

// NewRegistry creates an empty fault registry.
func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]*Kind)}
}

// Kind resolves name to a kind, creating and caching one if needed.
func (r *Registry) Kind(name string) *Kind {
	if builtin, ok := builtins[name]; ok {
		return builtin
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if k, ok := r.kinds[name]; ok {
		return k
	}
	k := &Kind{name: name}
	r.kinds[name] = k
	return k
}

// New resolves name and builds a fault in one step.
func (r *Registry) New(name string, args ...any) *Fault {
	return r.Kind(name).New(args...)
}

// From folds an arbitrary error into a fault. Faults pass through
// unchanged; anything else becomes a generic Exception carrying the error
// text as its only argument.
func From(err error) *Fault {
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	return Exception.New(err.Error())
}

// Redacted returns the fixed generic fault substituted for anything not
// allowed to cross the wire.
func Redacted() *Fault {
	return RequestException.New(RedactedStatus)
}

// Encode turns a fault into its wire form, the value stored under
// WireKey.
func Encode(f *Fault) map[string]any {
	args := f.Args
	if args == nil {
		args = []any{}
	}
	return map[string]any{
		"cls":  f.kind.name,
		"args": args,
	}
}

// Decode extracts the name and arguments from a wire-form fault value. It
// fails on anything that is not a map carrying a string "cls".
func Decode(value any) (string, []any, error) {
	raw, ok := value.(map[string]any)
	if !ok {
		return "", nil, fmt.Errorf("fault payload: expected map, got %T", value)
	}

	name, ok := raw["cls"].(string)
	if !ok || name == "" {
		return "", nil, errors.New("fault payload: missing cls")
	}

	var args []any
	switch typed := raw["args"].(type) {
	case nil:
		args = []any{}
	case []any:
		args = typed
	default:
		return "", nil, fmt.Errorf("fault payload: args must be a list, got %T", typed)
	}
	return name, args, nil
}
