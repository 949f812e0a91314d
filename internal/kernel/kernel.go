package kernel

import (
	"context"
	"fmt"
	"io"

	"github.com/noteable-io/noteable-notebook-magics/pkg/connections"
	"github.com/noteable-io/noteable-notebook-magics/pkg/dataloader"
	"github.com/noteable-io/noteable-notebook-magics/pkg/datasource"
	"github.com/noteable-io/noteable-notebook-magics/pkg/magic"
	"github.com/noteable-io/noteable-notebook-magics/pkg/sidecar"
)

// localHandle is the reserved connection handle of the local database.
const localHandle = "@noteable"

// Kernel wires together everything behind the ntbl command: logging, the
// sidecar client, the datasource registry, and the local DuckDB database.
type Kernel struct {
	Config   *Config
	Logging  *Logging
	Registry *connections.Registry
	Sidecar  *sidecar.Client

	deps magic.Deps
}

// New builds a kernel from configuration. Datasource bootstrap failures
// are logged and skipped so one broken datasource cannot take down
// startup. Output is written to out.
func New(cfg *Config, out io.Writer) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logging, err := OpenLogging(cfg.Logging)
	if err != nil {
		return nil, err
	}

	registry := connections.NewRegistry()

	local, err := localConnection(cfg.LocalDB)
	if err != nil {
		logging.Close()
		return nil, err
	}
	if err := registry.Register(local); err != nil {
		logging.Close()
		return nil, err
	}

	bootstrapper := datasource.NewBootstrapper(registry, logging.App)
	if err := bootstrapper.BootstrapDir(cfg.SecretsDir); err != nil {
		logging.App.Warn("datasource bootstrap skipped", "dir", cfg.SecretsDir, "error", err)
	}

	client := sidecar.New(sidecar.Config{
		BaseURL: cfg.Sidecar.URL,
		Version: cfg.Sidecar.Version,
		Timeout: cfg.Sidecar.Timeout(),
	})

	kernel := &Kernel{
		Config:   cfg,
		Logging:  logging,
		Registry: registry,
		Sidecar:  client,
	}

	kernel.deps = magic.Deps{
		Registry: registry,
		Sidecar:  client,
		Levels:   logging,
		Logger:   logging.App,
		Out:      out,
	}
	if db, err := local.DB(); err == nil {
		kernel.deps.Loader = dataloader.New(db)
	}

	return kernel, nil
}

// localConnection builds the always-available DuckDB connection.
func localConnection(path string) (*connections.Connection, error) {
	driver, err := datasource.DriverFor("duckdb")
	if err != nil {
		return nil, fmt.Errorf("local database: %w", err)
	}
	return connections.NewConnection(localHandle, "Local database", "duckdb", driver, path)
}

// Run executes one ntbl invocation. Each call builds a fresh command
// tree so flag state never leaks between invocations.
func (k *Kernel) Run(ctx context.Context, args []string) error {
	root := magic.NewRootCommand(k.deps)
	return magic.Execute(ctx, root, k.deps, args)
}

// Close tears down connection pools and the log output.
func (k *Kernel) Close() error {
	err := k.Registry.CloseAll()
	if logErr := k.Logging.Close(); err == nil {
		err = logErr
	}
	return err
}
