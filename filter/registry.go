// Package filter discovers and runs the external executables that extend
// a document with generated markup. A filter reads a JSON request on
// stdin and writes PicoDoc markup to stdout.
package filter

import (
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

// executablePrefix is prepended to the filter name when searching $PATH.
const executablePrefix = "picodoc-"

// Registry locates filter executables by name. Lookups try, in order, a
// filters/ directory beside the document, any configured search paths,
// and picodoc-<name> on $PATH. Results are cached, including misses.
type Registry struct {
	documentDir string
	searchPaths []string

	mu    sync.Mutex
	cache map[string]string
}

// NewRegistry returns a registry rooted at the directory of the document
// being built.
func NewRegistry(documentDir string, searchPaths ...string) *Registry {
	return &Registry{
		documentDir: documentDir,
		searchPaths: searchPaths,
		cache:       make(map[string]string),
	}
}

// Find returns the executable path for name, if one exists.
func (r *Registry) Find(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	path, ok := r.cache[name]
	if !ok {
		path = r.discover(name)
		r.cache[name] = path
	}
	return path, path != ""
}

func (r *Registry) discover(name string) string {
	local := filepath.Join(r.documentDir, "filters", name)
	if isExecutable(local) {
		return local
	}
	for _, dir := range r.searchPaths {
		candidate := filepath.Join(dir, name)
		if isExecutable(candidate) {
			return candidate
		}
	}
	if path, err := exec.LookPath(executablePrefix + name); err == nil {
		return path
	}
	return ""
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
