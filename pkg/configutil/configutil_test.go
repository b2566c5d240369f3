package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Delay    int               `json:"delay"`
	Mode     string            `json:"mode"`
	Hashtags map[string]string `json:"hashtags"`
}

func writeFile(t testing.TB, path, contents string) {
	err := os.WriteFile(path, []byte(contents), 0600)
	if err != nil {
		t.Fatal(err)
	}
}

func TestLocalPath(t *testing.T) {
	require.Equal(t, "config.local.json5", LocalPath("config.json5"))
	require.Equal(t, filepath.Join("a", "b", "telemetry.local.json5"), LocalPath("a/b/telemetry.json5"))
	require.Equal(t, "config.local", LocalPath("config"))
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.json5"), `{
		// comments are fine
		delay: 60,
		mode: "browser",
		hashtags: {USA: "CraftBeer"},
	}`)
	writeFile(t, filepath.Join(dir, "config.local.json5"), `{mode: "direct"}`)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, 60, cfg.Delay)
	require.Equal(t, "direct", cfg.Mode)
	require.Equal(t, map[string]string{"USA": "CraftBeer"}, cfg.Hashtags)
}

func TestReadConfigWithDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.json5"), `{delay: 5}`)

	cfg, err := ReadConfigWithDefaults(filepath.Join(dir, "config.json5"), testConfig{
		Delay: 60,
		Mode:  "browser",
	})
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Delay)
	require.Equal(t, "browser", cfg.Mode)
}

func TestReadConfigMissing(t *testing.T) {
	dir := t.TempDir()
	cfg, err := ReadConfigWithDefaults(filepath.Join(dir, "config.json5"), testConfig{Delay: 60})
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Equal(t, 60, cfg.Delay)
}
