package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidgate/internal/config"
	"vidgate/internal/shared/testutil"
	"vidgate/pkg/contracts/domain"
)

// useRedis points the configured store at a fresh in-process Redis.
func useRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	t.Setenv(config.ConfigFileEnv, "")
	t.Setenv("VIDGATE_STORE_BACKEND", config.StoreRedis)
	t.Setenv("VIDGATE_STORE_REDIS_URL", "redis://"+mr.Addr())
	return mr
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeJSON(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "licenses.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestAdmin_ImportAndList(t *testing.T) {
	mr := useRedis(t)
	path := writeJSON(t, `[
		{"key":"abc-1","plan":"monthly","duration_days":30},
		{"key":"LIFE-2","plan":"lifetime"}
	]`)

	out, err := execute(t, "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "2 added, 0 replaced, 0 skipped")
	assert.Contains(t, out, "Saved 2 licenses.")
	assert.True(t, mr.Exists("vidgate:licenses"))

	out, err = execute(t, "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "0 added, 0 replaced, 2 skipped")
	assert.NotContains(t, out, "Saved")

	out, err = execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "KEY")
	assert.Contains(t, out, "ABC-1")
	assert.Contains(t, out, "30d after activation")
	assert.Contains(t, out, string(domain.LicenseStateUnactivated))
}

func TestAdmin_ImportDryRun(t *testing.T) {
	mr := useRedis(t)
	path := writeJSON(t, `{"record":[{"key":"ABC-1","plan":"monthly","duration_days":30}]}`)

	out, err := execute(t, "import", "--dry-run", path)
	require.NoError(t, err)
	assert.Contains(t, out, "1 added")
	assert.False(t, mr.Exists("vidgate:licenses"))
}

func TestAdmin_ImportMissingFile(t *testing.T) {
	useRedis(t)
	_, err := execute(t, "import", filepath.Join(t.TempDir(), "nope.xlsx"))
	assert.Error(t, err)
}

func TestPrintRecords(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRecords(&buf, []domain.LicenseRecord{
		testutil.ActiveLicense("ABC-1", "dev1", 48*time.Hour),
		testutil.LifetimeLicense("LIFE-2", "dev2"),
	}, testutil.FixedNow))

	out := buf.String()
	assert.Contains(t, out, "2026-03-16")
	assert.Contains(t, out, "never")
	assert.Contains(t, out, "Windows PC")
	assert.Contains(t, out, string(domain.LicenseStateActive))
}

func TestAdmin_Env(t *testing.T) {
	out, err := execute(t, "env")
	require.NoError(t, err)
	assert.Contains(t, out, "VIDGATE_STORE_BACKEND")
}
