package dump

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakePgDump writes a stand-in script that creates the --file target the
// way the real binary would.
func fakePgDump(t *testing.T) string {
	t.Helper()
	script := filepath.Join(t.TempDir(), "pg_dump")
	body := "#!/bin/sh\nfor a in \"$@\"; do\n  case \"$a\" in\n    --file=*) : > \"${a#--file=}\" ;;\n  esac\ndone\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))
	return script
}

func TestRunWritesTimestampedFile(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(Config{Dir: dir, DSN: "postgres://u:p@localhost/autoria"}, zap.NewNop())
	m.binary = fakePgDump(t)
	m.now = func() time.Time {
		return time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC)
	}

	path, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "dump_20260801_1230.sql"), path)

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestRunRequiresDSN(t *testing.T) {
	m := NewManager(Config{Dir: t.TempDir()}, nil)

	_, err := m.Run(context.Background())
	require.Error(t, err)
}

func TestRunReportsCommandFailure(t *testing.T) {
	m := NewManager(Config{Dir: t.TempDir(), DSN: "postgres://u:p@localhost/autoria"}, zap.NewNop())
	m.binary = "false"

	_, err := m.Run(context.Background())
	require.Error(t, err)
}

func TestRunCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dumps")
	m := NewManager(Config{Dir: dir, DSN: "postgres://u:p@localhost/autoria"}, zap.NewNop())
	m.binary = fakePgDump(t)

	_, err := m.Run(context.Background())
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}
