package codec

import (
	"fmt"
	"sync"
)

// Registry maintains a mapping of protocol names to codecs. Codec
// packages register themselves using Register.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

// DefaultRegistry is the global codec registry. The JSON codec is
// registered out of the box.
var DefaultRegistry = NewRegistry()

func init() {
	DefaultRegistry.Register(JSON())
}

// NewRegistry creates an empty codec registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Codec)}
}

// Register adds a codec to the registry under its protocol name.
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[c.Name()] = c
}

// Get returns the codec registered under name.
func (r *Registry) Get(name string) (Codec, error) {
	r.mu.RLock()
	c, ok := r.codecs[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown codec: %q (registered: %v)", name, r.Names())
	}
	return c, nil
}

// Names returns the list of registered protocol names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.codecs))
	for name := range r.codecs {
		names = append(names, name)
	}
	return names
}

// Has returns true if a codec is registered under the given name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.codecs[name]
	return ok
}

// Register adds a codec to the default registry.
func Register(c Codec) {
	DefaultRegistry.Register(c)
}

// Get returns a codec from the default registry.
func Get(name string) (Codec, error) {
	return DefaultRegistry.Get(name)
}
