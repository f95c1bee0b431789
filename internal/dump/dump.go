// Package dump produces SQL backups of the harvester database by shelling
// out to pg_dump.
package dump

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Config controls where dumps land and how to reach the database.
type Config struct {
	// Dir is the directory dump files are written to. Created if missing.
	Dir string
	// DSN is the Postgres connection URI passed to pg_dump.
	DSN string
}

// Manager runs pg_dump on demand and writes timestamped .sql files.
type Manager struct {
	cfg    Config
	binary string
	now    func() time.Time
	logger *zap.Logger
}

// NewManager returns a Manager for the given config.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:    cfg,
		binary: "pg_dump",
		now:    time.Now,
		logger: logger,
	}
}

// Run executes pg_dump and returns the path of the written dump file.
func (m *Manager) Run(ctx context.Context) (string, error) {
	if m.cfg.DSN == "" {
		return "", fmt.Errorf("dump: dsn is required")
	}
	if err := os.MkdirAll(m.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("dump: create dir: %w", err)
	}

	path := filepath.Join(m.cfg.Dir, m.now().Format("dump_20060102_1504.sql"))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, m.binary,
		"--dbname="+m.cfg.DSN,
		"--file="+path,
	)
	cmd.Stderr = &stderr

	start := m.now()
	if err := cmd.Run(); err != nil {
		m.logger.Error("pg_dump failed",
			zap.Error(err),
			zap.String("stderr", stderr.String()))
		return "", fmt.Errorf("dump: pg_dump: %w", err)
	}

	m.logger.Info("dump saved",
		zap.String("path", path),
		zap.Duration("took", time.Since(start)))
	return path, nil
}
