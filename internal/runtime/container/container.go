package container

// Container is the loosely typed bag of named values a call reads its
// request fields from and writes its response fields into. Reading a key
// that was never set yields nil and leaves the container untouched.
type Container map[string]any

// New constructs an empty container.
func New() Container {
	return Container{}
}

// Get returns the value stored under key, or nil when the key is absent.
func (c Container) Get(key string) any {
	return c[key]
}

// Lookup returns the value stored under key and whether it was present.
func (c Container) Lookup(key string) (any, bool) {
	v, ok := c[key]
	return v, ok
}

// Set stores value under key, replacing any previous value.
func (c Container) Set(key string, value any) {
	c[key] = value
}

// Has reports whether key holds a value.
func (c Container) Has(key string) bool {
	_, ok := c[key]
	return ok
}

// Delete removes key from the container.
func (c Container) Delete(key string) {
	delete(c, key)
}

// Clear removes every entry while keeping the container usable.
func (c Container) Clear() {
	for k := range c {
		delete(c, k)
	}
}

// Update copies every entry of src into the container.
func (c Container) Update(src map[string]any) {
	for k, v := range src {
		c[k] = v
	}
}

// Clone returns a shallow copy of the container.
func (c Container) Clone() Container {
	cloned := make(Container, len(c))
	for k, v := range c {
		cloned[k] = v
	}
	return cloned
}

// Map exposes the container as a plain map for encoding.
func (c Container) Map() map[string]any {
	return map[string]any(c)
}
