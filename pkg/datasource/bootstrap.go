package datasource

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/noteable-io/noteable-notebook-magics/pkg/connections"
)

const (
	metaSuffix        = ".meta.json"
	dsnSuffix         = ".dsn.json"
	connectArgsSuffix = ".ca.json"
)

// Meta is the decoded <id>.meta.json: everything about a datasource except
// where it lives.
type Meta struct {
	Dialect         string   `json:"drivername"`
	HumanName       string   `json:"name"`
	RequiredDrivers []string `json:"required_go_drivers"`

	// Absent means autocommit, so only an explicit false disables it.
	SQLMagicAutocommit *bool `json:"sqlmagic_autocommit"`
}

// Bootstrapper digests datasource secret files into registered connections.
type Bootstrapper struct {
	registry *connections.Registry
	log      *slog.Logger
}

// NewBootstrapper creates a bootstrapper targeting the given registry.
func NewBootstrapper(registry *connections.Registry, log *slog.Logger) *Bootstrapper {
	if log == nil {
		log = slog.Default()
	}
	return &Bootstrapper{registry: registry, log: log}
}

// BootstrapDir digests every *.meta.json triplet under dir. A broken
// datasource is logged and skipped: one bad secret must not take down
// kernel startup. A missing or unreadable dir is returned as an error.
func (b *Bootstrapper) BootstrapDir(dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+metaSuffix))
	if err != nil {
		return fmt.Errorf("scanning secrets dir %s: %w", dir, err)
	}

	for _, metaPath := range matches {
		if err := b.BootstrapFiles(metaPath); err != nil {
			b.log.Error("skipping datasource",
				"meta_path", metaPath,
				"error", err)
		}
	}
	return nil
}

// BootstrapFiles bootstraps a single datasource given its meta file path,
// expecting the dsn and connect-args files as siblings.
func (b *Bootstrapper) BootstrapFiles(metaPath string) error {
	base := filepath.Base(metaPath)
	id := strings.TrimSuffix(base, metaSuffix)
	dir := filepath.Dir(metaPath)

	metaJSON, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", metaPath, err)
	}

	dsnPath := filepath.Join(dir, id+dsnSuffix)
	dsnJSON, err := os.ReadFile(dsnPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dsnPath, err)
	}

	caPath := filepath.Join(dir, id+connectArgsSuffix)
	caJSON, err := os.ReadFile(caPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", caPath, err)
	}

	return b.Bootstrap(id, metaJSON, dsnJSON, caJSON)
}

// Bootstrap registers one datasource from its three JSON sections.
func (b *Bootstrapper) Bootstrap(datasourceID string, metaJSON, dsnJSON, connectArgsJSON []byte) error {
	var meta Meta
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return fmt.Errorf("decoding meta for %s: %w", datasourceID, err)
	}
	if meta.Dialect == "" {
		return fmt.Errorf("datasource %s: meta is missing drivername", datasourceID)
	}

	if err := requireDrivers(datasourceID, meta.RequiredDrivers); err != nil {
		return err
	}

	driver, err := DriverFor(meta.Dialect)
	if err != nil {
		return fmt.Errorf("datasource %s: %w", datasourceID, err)
	}

	var parts DSNParts
	if err := json.Unmarshal(dsnJSON, &parts); err != nil {
		return fmt.Errorf("decoding dsn for %s: %w", datasourceID, err)
	}

	var connectArgs map[string]string
	if err := json.Unmarshal(connectArgsJSON, &connectArgs); err != nil {
		return fmt.Errorf("decoding connect args for %s: %w", datasourceID, err)
	}
	for k, v := range connectArgs {
		parts.setQuery(k, v)
	}

	if err := postProcess(meta.Dialect, datasourceID, &parts); err != nil {
		return err
	}

	dsn, err := buildDSN(driver, parts)
	if err != nil {
		return fmt.Errorf("datasource %s: %w", datasourceID, err)
	}

	conn, err := connections.NewConnection("@"+datasourceID, meta.HumanName, meta.Dialect, driver, dsn)
	if err != nil {
		return err
	}
	if err := b.registry.Register(conn); err != nil {
		return err
	}
	if meta.SQLMagicAutocommit != nil && !*meta.SQLMagicAutocommit {
		connections.BlacklistCommit(meta.Dialect)
	}

	b.log.Info("bootstrapped datasource",
		"datasource_id", datasourceID,
		"dialect", meta.Dialect,
		"human_name", meta.HumanName)
	return nil
}
