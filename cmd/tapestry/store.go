package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/tapestry"
	"github.com/aretw0/tapestry/internal/config"
	"github.com/aretw0/tapestry/pkg/adapters/file"
	"github.com/aretw0/tapestry/pkg/adapters/loam"
	"github.com/aretw0/tapestry/pkg/adapters/memory"
	"github.com/aretw0/tapestry/pkg/adapters/redis"
	"github.com/aretw0/tapestry/pkg/document"
	"github.com/aretw0/tapestry/pkg/persistence"
	"github.com/aretw0/tapestry/pkg/persistence/middleware"
	"github.com/aretw0/tapestry/pkg/ports"
	"github.com/aretw0/tapestry/pkg/registry"
	"github.com/aretw0/tapestry/pkg/resource"
)

// registry returns the built-in node types plus the configured definition
// files and directories.
func (a *app) registry(ctx context.Context) (*registry.Registry, error) {
	reg := registry.Default()
	for _, p := range a.cfg.NodeTypes {
		if err := reg.LoadFile(p); err != nil {
			return nil, err
		}
	}
	for _, dir := range a.cfg.NodeTypeDirs {
		lib, err := loam.Open(dir)
		if err != nil {
			return nil, err
		}
		n, err := lib.Register(ctx, reg)
		if err != nil {
			return nil, fmt.Errorf("failed to load node types from %s: %w", dir, err)
		}
		a.logger.Debug("node types loaded", "dir", dir, "count", n)
	}
	return reg, nil
}

// backend holds the stores and closers built from configuration.
type backend struct {
	store   ports.DocumentStore
	locker  ports.DistributedLocker
	closers []io.Closer
}

func (b *backend) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// openBackend builds the document store described by cfg. Remote autosave
// copies go to redis while documents stay in the configured driver.
func openBackend(cfg config.Config) (*backend, error) {
	b := &backend{}

	var rdb *redis.Store
	if cfg.UsesRedis() {
		rdb = redis.New(cfg.Store.Redis.Addr, "", 0,
			redis.WithPrefix(cfg.Store.Redis.Prefix),
			redis.WithTTL(cfg.Store.Redis.TTL),
		)
		b.closers = append(b.closers, rdb)
		if cfg.Store.Redis.Lock {
			b.locker = redis.NewLocker(rdb.Client(), cfg.Store.Redis.Prefix+"lock:")
		}
	}

	var remote ports.DocumentStore
	if rdb != nil {
		remote = rdb
		key, err := cfg.EncryptionKeyBytes()
		if err != nil {
			return nil, fmt.Errorf("invalid encryption key: %w", err)
		}
		if key != nil {
			enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
			if err != nil {
				return nil, err
			}
			remote = middleware.Chain(remote, enc)
		}
	}

	switch cfg.Store.Driver {
	case config.DriverMemory:
		b.store = memory.NewStore()
	case config.DriverRedis:
		b.store = remote
	default:
		b.store = file.New(cfg.Store.Path)
	}
	if cfg.Autosave.Remote && cfg.Store.Driver != config.DriverRedis {
		b.store = middleware.Chain(b.store, middleware.RouteSuffix(persistence.AutosaveSuffix, remote))
	}
	return b, nil
}

// manager returns a persistence manager over plain files, used by the
// one-shot commands that read and write document paths directly.
func (a *app) manager(ctx context.Context) (*persistence.Manager, error) {
	reg, err := a.registry(ctx)
	if err != nil {
		return nil, err
	}
	return persistence.NewManager(file.New(""),
		persistence.WithRegistry(reg),
		persistence.WithLogger(a.logger),
	), nil
}

// loadDocument loads the graph at path into a fresh document.
func (a *app) loadDocument(ctx context.Context, path string) (*document.Document, error) {
	m, err := a.manager(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := m.LoadGraph(ctx, path)
	if err != nil {
		return nil, err
	}
	d := document.New(document.WithRegistry(m.Registry()), document.WithLogger(a.logger))
	if err := d.Load(snap); err != nil {
		return nil, err
	}
	d.ResetHistory()
	return d, nil
}

// scanResources scans root when set. A nil snapshot means no root.
func (a *app) scanResources(ctx context.Context, root string) (*resource.Snapshot, error) {
	if root == "" {
		return nil, nil
	}
	opts := []resource.Option{resource.WithLogger(a.logger)}
	if len(a.cfg.Resources.Patterns) > 0 {
		opts = append(opts, resource.WithPatterns(a.cfg.Resources.Patterns...))
	}
	lib, err := resource.NewLibrary(root, opts...)
	if err != nil {
		return nil, err
	}
	snap, err := lib.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// editorOptions turns the configuration into Editor options.
func (a *app) editorOptions(b *backend, reg *registry.Registry) []tapestry.Option {
	opts := []tapestry.Option{
		tapestry.WithStore(b.store),
		tapestry.WithRegistry(reg),
		tapestry.WithLogger(a.logger),
		tapestry.WithHistoryLimit(a.cfg.History.Limit),
	}
	if b.locker != nil {
		opts = append(opts, tapestry.WithLocker(b.locker))
	}
	if a.cfg.Autosave.Enabled {
		opts = append(opts, tapestry.WithAutosave(a.cfg.Autosave.Interval, a.cfg.Autosave.Every))
	}
	return opts
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
