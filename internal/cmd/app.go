package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmgilman/kryzon/internal/challenge"
	"github.com/jmgilman/kryzon/internal/config"
	"github.com/jmgilman/kryzon/internal/container"
	"github.com/jmgilman/kryzon/internal/instance"
	"github.com/jmgilman/kryzon/internal/metrics"
	"github.com/jmgilman/kryzon/internal/ports"
	"github.com/jmgilman/kryzon/internal/registry"
	"github.com/jmgilman/kryzon/internal/store"
	"github.com/jmgilman/kryzon/internal/sweeper"
)

// app holds the components shared by every command that touches instances.
type app struct {
	cfg      *config.Config
	store    store.Store
	runtime  *container.DockerRuntime
	ports    *ports.Allocator
	source   challenge.Source
	manager  *instance.Manager
	sweeper  *sweeper.Sweeper
	registry registry.Client
}

// newApp wires the store, runtime, allocator, catalog, manager and sweeper
// described by cfg. Nothing here contacts the container engine.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	st, source, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.store = st
	a.source = source

	dockerCfg, err := cfg.DockerConfig()
	if err != nil {
		a.Close() //nolint:errcheck // best-effort cleanup
		return nil, err
	}
	a.runtime, err = container.NewDockerRuntime(dockerCfg)
	if err != nil {
		a.Close() //nolint:errcheck // best-effort cleanup
		return nil, err
	}

	a.ports, err = ports.NewAllocator(cfg.Ports.Start, cfg.Ports.End, a.runtime)
	if err != nil {
		a.Close() //nolint:errcheck // best-effort cleanup
		return nil, err
	}

	a.manager = instance.NewManager(a.store, a.runtime, a.ports, a.source, cfg.ManagerConfig())

	sweepCfg := cfg.SweepConfig()
	sweepCfg.OnSweep = metrics.RecordSweep
	a.sweeper = sweeper.New(a.store, a.runtime, a.ports, a.manager, sweepCfg)

	a.registry = registry.NewClient(registry.ClientConfig{
		Insecure: cfg.Registry.Insecure,
		Timeout:  cfg.Registry.Timeout,
	})

	return a, nil
}

// openStore opens the configured instance store and the challenge source
// that goes with it.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, challenge.Source, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pg, err := store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return pg, challenge.NewPostgresSource(pg.Pool()), nil
	default:
		source, err := challenge.LoadFile(cfg.Challenges.Path)
		if err != nil {
			return nil, nil, err
		}
		return store.NewFileStore(cfg.Database.Path), source, nil
	}
}

// Close waits for in-flight starts and releases every connection.
func (a *app) Close() error {
	if a.manager != nil {
		a.manager.Wait()
	}

	var errs []error
	if a.runtime != nil {
		errs = append(errs, a.runtime.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
