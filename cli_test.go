package main

import (
	"bytes"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/internal/backendsim"
)

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "librarydesk.yaml")
	body := fmt.Sprintf("gateway:\n  base_url: %s\nstorage:\n  data_dir: %s\nlog:\n  level: error\n  format: json\n",
		baseURL, filepath.Join(dir, "data"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_StatsAndExport(t *testing.T) {
	sim := backendsim.New(nil)
	sim.SeedAuthor("Ada", "Lovelace")
	sim.SeedCategory("Mathematics")
	sim.SeedBook("Notes", 1, 1, "1843-09-01", 12.5)
	hs := httptest.NewServer(sim.Handler())
	defer hs.Close()
	cfg := writeConfig(t, hs.URL)

	out, err := runCLI(t, "--config", cfg, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, `"totalBooks": 1`)
	assert.Contains(t, out, `"totalValue": 12.5`)

	dest := filepath.Join(t.TempDir(), "authors.json")
	out, err = runCLI(t, "--config", cfg, "export", dest, "--entity", "authors")
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 1 authors")
	assert.FileExists(t, dest)
}

func TestCLI_ExportNeedsDestination(t *testing.T) {
	hs := httptest.NewServer(backendsim.New(nil).Handler())
	defer hs.Close()

	_, err := runCLI(t, "--config", writeConfig(t, hs.URL), "export")
	assert.ErrorContains(t, err, "either FILE or --target")
}

func TestCLI_BadConfig(t *testing.T) {
	_, err := runCLI(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "stats")
	assert.Error(t, err)
}
