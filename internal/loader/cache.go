package loader

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/cropsight/cropsight/internal/checkpoint"
	"github.com/cropsight/cropsight/internal/nn"
)

// LoadedModel is an instantiated, weight-bound, inference-ready network.
// Owned by the Cache; read-only after the load completes.
type LoadedModel struct {
	Name        string
	Module      nn.Module
	Descriptor  Descriptor
	Diagnostics Diagnostics
}

// Cache memoizes loaded models by symbolic name.
//
// Loads are lazy and guarded by a single-flight group: under concurrent
// first requests for the same name, exactly one load pipeline
// (read -> normalize -> infer classes -> select variant -> build -> bind)
// runs; everyone else blocks and receives the same instance. Loads are
// synchronous and cannot be cancelled; a caller that gives up still leaves
// the in-flight load to finish and populate the cache. Failed loads are not
// cached; the next call retries from scratch. Nothing is ever evicted.
type Cache struct {
	registry *Registry
	configs  *ConfigTable
	paths    map[string]string // symbolic name -> artifact path, fixed after discovery
	log      logrus.FieldLogger

	group singleflight.Group

	mu          sync.RWMutex
	models      map[string]*LoadedModel
	descriptors map[string]*Descriptor
	diagnostics map[string]*Diagnostics
}

// NewCache creates a model cache over the discovery path table.
func NewCache(registry *Registry, configs *ConfigTable, paths map[string]string, log logrus.FieldLogger) *Cache {
	return &Cache{
		registry:    registry,
		configs:     configs,
		paths:       paths,
		log:         log,
		models:      make(map[string]*LoadedModel),
		descriptors: make(map[string]*Descriptor),
		diagnostics: make(map[string]*Diagnostics),
	}
}

// Available returns the symbolic names discovery bound to artifact paths,
// in config-table order.
func (c *Cache) Available() []string {
	names := make([]string, 0, len(c.paths))
	for _, name := range c.configs.Names() {
		if _, ok := c.paths[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// Loaded returns the names of models currently resident in the cache.
func (c *Cache) Loaded() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.models))
	for _, name := range c.configs.Names() {
		if _, ok := c.models[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// GetOrLoad returns the model for a symbolic name, loading it on first use.
//
// Fails with ErrModelNotFound when the name is absent from the path table,
// or with a *checkpoint.ReadError when the artifact cannot be deserialized.
// Partial weight binds are not errors; they surface in the returned model's
// Diagnostics.
func (c *Cache) GetOrLoad(name string) (*LoadedModel, error) {
	c.mu.RLock()
	model, ok := c.models[name]
	c.mu.RUnlock()
	if ok {
		return model, nil
	}

	path, ok := c.paths[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}

	v, err, _ := c.group.Do(name, func() (any, error) {
		// A concurrent flight may have finished between the miss and here.
		c.mu.RLock()
		model, ok := c.models[name]
		c.mu.RUnlock()
		if ok {
			return model, nil
		}

		loaded, err := c.load(name, path)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.models[name] = loaded
		c.descriptors[name] = &loaded.Descriptor
		c.diagnostics[name] = &loaded.Diagnostics
		c.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*LoadedModel), nil
}

// load runs the full pipeline for one symbolic name.
func (c *Cache) load(name, path string) (*LoadedModel, error) {
	log := c.log.WithField("model", name)
	log.WithField("path", path).Info("loading model")

	obj, err := checkpoint.Read(path)
	if err != nil {
		return nil, err
	}
	params := Normalize(obj)

	cfg, _ := c.configs.Get(name)
	numClasses := cfg.NumClasses
	classNames := cfg.ClassNames

	count, detected := InferClassCount(params)
	if detected {
		numClasses = count.Count
		classNames = c.configs.ClassNamesFor(count.Count)
		if count.Confident {
			log.WithFields(logrus.Fields{"classes": count.Count, "key": count.Key}).
				Info("detected class count from checkpoint")
		} else {
			log.WithFields(logrus.Fields{"classes": count.Count, "key": count.Key}).
				Warn("class count taken from widest-guess fallback, treat as low confidence")
		}
	} else {
		log.WithField("classes", numClasses).Info("class count not detectable, using defaults")
	}

	entry, ok := c.registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownArchitecture, name)
	}
	variant := VariantDefault
	if entry.SelectVariant != nil {
		variant = entry.SelectVariant(params, numClasses)
		if variant != VariantDefault {
			log.WithField("variant", variant).Info("selected architecture variant from checkpoint shapes")
		}
	}

	instance := entry.New(numClasses, variant)
	diag := Bind(instance, params)
	diag.ClassCountFallback = detected && !count.Confident

	if len(diag.MissingKeys) > 0 {
		log.WithField("count", len(diag.MissingKeys)).Warn("checkpoint is missing instance parameters")
	}
	if len(diag.UnexpectedKeys) > 0 {
		log.WithField("count", len(diag.UnexpectedKeys)).Warn("checkpoint carries unexpected parameters")
	}
	for _, ik := range diag.IncompatibleKeys {
		log.WithFields(logrus.Fields{
			"key":        ik.Key,
			"checkpoint": ik.CheckpointShape.String(),
			"target":     ik.TargetShape.String(),
		}).Warn("parameter shape mismatch, kept constructor weights")
	}

	return &LoadedModel{
		Name:   name,
		Module: instance,
		Descriptor: Descriptor{
			Name:         name,
			NumClasses:   numClasses,
			ClassNames:   classNames,
			Variant:      variant,
			ArtifactPath: path,
		},
		Diagnostics: diag,
	}, nil
}

// Describe returns the descriptor for a symbolic name: the load-refined one
// when the model has been loaded, otherwise discovery-time defaults. Fails
// with ErrModelNotFound for names outside the path table.
func (c *Cache) Describe(name string) (Descriptor, error) {
	c.mu.RLock()
	desc, ok := c.descriptors[name]
	c.mu.RUnlock()
	if ok {
		return *desc, nil
	}

	path, bound := c.paths[name]
	if !bound {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	cfg, _ := c.configs.Get(name)
	return Descriptor{
		Name:         name,
		NumClasses:   cfg.NumClasses,
		ClassNames:   cfg.ClassNames,
		Variant:      VariantDefault,
		ArtifactPath: path,
	}, nil
}

// LastDiagnostics returns the diagnostics from the most recent successful
// load of a symbolic name, or false when it has never loaded.
func (c *Cache) LastDiagnostics(name string) (Diagnostics, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	diag, ok := c.diagnostics[name]
	if !ok {
		return Diagnostics{}, false
	}
	return *diag, true
}
