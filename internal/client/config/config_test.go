package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()
	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
}

func TestFlagsOverrideDefaults(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin", "-s", "https://sealbox.example.com"}

	cfg := LoadConfig()
	assert.Equal(t, "https://sealbox.example.com", cfg.ServerURL)
}

func TestJsonOverlay(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server_url":"https://json.example.com"}`), 0o600))
	os.Args = []string{"testbin", "-c", path}

	cfg := LoadConfig()
	assert.Equal(t, "https://json.example.com", cfg.ServerURL)
}
