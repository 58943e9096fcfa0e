package loader

import "fmt"

// Config is the externally supplied default for a symbolic model name.
type Config struct {
	NumClasses int
	ClassNames []string
}

// ConfigTable holds the symbolic-name defaults plus the by-count class-name
// conventions used when inference detects a count the defaults don't cover.
// It is pure data: built once at startup and read-only afterwards.
type ConfigTable struct {
	names   []string // insertion order; discovery matches in this order
	byName  map[string]Config
	byCount map[int][]string
}

// NewConfigTable creates an empty config table.
func NewConfigTable() *ConfigTable {
	return &ConfigTable{
		byName:  make(map[string]Config),
		byCount: make(map[int][]string),
	}
}

// Add registers defaults for a symbolic name. Insertion order is preserved
// and drives discovery matching priority.
func (t *ConfigTable) Add(name string, cfg Config) {
	if _, exists := t.byName[name]; !exists {
		t.names = append(t.names, name)
	}
	t.byName[name] = cfg
}

// SetClassNames registers the class-name convention for a detected count.
func (t *ConfigTable) SetClassNames(count int, names []string) {
	t.byCount[count] = names
}

// Names returns the known symbolic names in insertion order.
func (t *ConfigTable) Names() []string {
	return append([]string(nil), t.names...)
}

// Get returns the defaults for a symbolic name.
func (t *ConfigTable) Get(name string) (Config, bool) {
	cfg, ok := t.byName[name]
	return cfg, ok
}

// ClassNamesFor returns the class names for a detected count, generating
// generic "Class_<i>" labels when no convention is registered.
func (t *ConfigTable) ClassNamesFor(count int) []string {
	if names, ok := t.byCount[count]; ok {
		return append([]string(nil), names...)
	}
	names := make([]string, count)
	for i := range names {
		names[i] = fmt.Sprintf("Class_%d", i)
	}
	return names
}

// Descriptor describes a loadable model: its resolved class count and names,
// the structural variant chosen for it and where its artifact lives.
// Created with defaults at discovery time and refined by re-inference during
// each (re)load; lives for the process lifetime.
type Descriptor struct {
	Name         string   `json:"name"`
	NumClasses   int      `json:"num_classes"`
	ClassNames   []string `json:"class_names"`
	Variant      string   `json:"variant"`
	ArtifactPath string   `json:"artifact_path"`
}
