package eval

import "fmt"

// Environment holds the env.* bindings visible to a document. Values are
// written during setup and frozen before the first expansion pass; a write
// after the freeze is an error.
type Environment struct {
	values map[string]string
	frozen bool
}

// NewEnvironment returns an empty, writable environment.
func NewEnvironment() *Environment {
	return &Environment{values: make(map[string]string)}
}

// Set binds key to value. The key is the bare name without the env. prefix.
func (e *Environment) Set(key, value string) error {
	if e.frozen {
		return &Error{
			Kind:    FrozenEnvironment,
			Message: fmt.Sprintf("environment is frozen: cannot set %q", key),
		}
	}
	e.values[key] = value
	return nil
}

// Get returns the value bound to key and whether it exists.
func (e *Environment) Get(key string) (string, bool) {
	v, ok := e.values[key]
	return v, ok
}

// Freeze locks the environment against further writes.
func (e *Environment) Freeze() { e.frozen = true }

// Snapshot returns a copy of all bindings, for handing to filter processes.
func (e *Environment) Snapshot() map[string]string {
	out := make(map[string]string, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}
