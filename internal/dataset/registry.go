package dataset

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Registry maps dataset names to loaded datasets. A name is loaded at most
// once for the life of the registry, even under concurrent first access.
type Registry struct {
	loader Loader
	logger *zap.Logger

	mu       sync.RWMutex
	datasets map[string]*Dataset
	flight   singleflight.Group
}

// NewRegistry creates an empty registry backed by loader.
func NewRegistry(loader Loader, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		loader:   loader,
		logger:   logger,
		datasets: make(map[string]*Dataset),
	}
}

// Register loads src under name, or returns the dataset already registered
// under that name without reloading it. A later call with a different source
// keeps the first dataset.
func (r *Registry) Register(ctx context.Context, name string, src Source) (*Dataset, error) {
	if ds, ok := r.lookup(name); ok {
		r.warnIfDifferent(ds, src)
		return ds, nil
	}

	v, err, _ := r.flight.Do(name, func() (any, error) {
		// Another flight may have completed between lookup and Do.
		if ds, ok := r.lookup(name); ok {
			return ds, nil
		}

		// Shared by every caller in the flight; a cancelled caller must
		// not fail the others.
		start := time.Now()
		cols, err := r.loader.Load(context.WithoutCancel(ctx), name, src)
		if err != nil {
			return nil, asLoadError(name, src, err)
		}
		ds, err := New(name, cols...)
		if err != nil {
			return nil, asLoadError(name, src, err)
		}
		ds.Source = src
		ds.LoadedAt = time.Now()

		r.mu.Lock()
		r.datasets[name] = ds
		r.mu.Unlock()

		r.logger.Info("dataset registered",
			zap.String("dataset", name),
			zap.String("id", ds.ID.String()),
			zap.Int("rows", ds.Len()),
			zap.Duration("elapsed", time.Since(start)))
		return ds, nil
	})
	if err != nil {
		return nil, err
	}

	ds := v.(*Dataset)
	r.warnIfDifferent(ds, src)
	return ds, nil
}

// RegisterAll registers every source concurrently and returns the first
// error. Datasets that loaded stay registered.
func (r *Registry) RegisterAll(ctx context.Context, sources map[string]Source) error {
	g, ctx := errgroup.WithContext(ctx)
	for name, src := range sources {
		name, src := name, src
		g.Go(func() error {
			_, err := r.Register(ctx, name, src)
			return err
		})
	}
	return g.Wait()
}

// Get returns a registered dataset.
func (r *Registry) Get(name string) (*Dataset, error) {
	if ds, ok := r.lookup(name); ok {
		return ds, nil
	}
	return nil, &UnknownDatasetError{Name: name}
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.datasets))
	for n := range r.datasets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) lookup(name string) (*Dataset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ds, ok := r.datasets[name]
	return ds, ok
}

func (r *Registry) warnIfDifferent(ds *Dataset, src Source) {
	if ds.Source.Equal(src) {
		return
	}
	r.logger.Warn("dataset already registered with a different source; keeping the first",
		zap.String("dataset", ds.Name),
		zap.String("registered", ds.Source.Path),
		zap.String("requested", src.Path))
}

func asLoadError(name string, src Source, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		return err
	}
	return &LoadError{Name: name, Path: src.Path, Err: err}
}
