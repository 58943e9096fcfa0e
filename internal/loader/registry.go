package loader

import (
	"fmt"

	"github.com/cropsight/cropsight/internal/checkpoint"
	"github.com/cropsight/cropsight/internal/nn"
)

// VariantDefault is the structural variant used by every family that does
// not declare alternatives.
const VariantDefault = "default"

// Builder constructs a fresh, default-initialized architecture instance for
// a class count and structural variant. Builders are pure: no I/O, no shared
// state, deterministic apart from weight initialization randomness.
type Builder func(numClasses int, variant string) nn.Module

// VariantSelector inspects checkpoint parameter shapes and picks one of a
// family's known structural variants. Only families with more than one
// variant register a selector; everyone else gets VariantDefault.
type VariantSelector func(params checkpoint.TensorMap, numClasses int) string

// Entry describes one registered architecture family.
type Entry struct {
	New           Builder
	SelectVariant VariantSelector // nil for single-variant families
}

// Registry maps symbolic architecture names to constructors. It is an
// explicit process-scoped value: populated once at startup, read-only
// afterwards, passed by reference to whoever builds models.
type Registry struct {
	entries map[string]Entry
	names   []string // registration order
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register binds a symbolic name to an architecture entry. Registering the
// same name twice replaces the entry but keeps its original position.
func (r *Registry) Register(name string, entry Entry) {
	if _, exists := r.entries[name]; !exists {
		r.names = append(r.names, name)
	}
	r.entries[name] = entry
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Lookup returns the entry for a symbolic name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	entry, ok := r.entries[name]
	return entry, ok
}

// Build constructs an uninitialized (default-weighted) instance of the named
// architecture. Fails with ErrUnknownArchitecture for unregistered names.
func (r *Registry) Build(name string, numClasses int, variant string) (nn.Module, error) {
	entry, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownArchitecture, name)
	}
	return entry.New(numClasses, variant), nil
}
