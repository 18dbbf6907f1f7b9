package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVars = []string{
	"LJMIGRATE_DB_DRIVER",
	"LJMIGRATE_DB_DSN",
	"LJMIGRATE_DB_DSN_FILE",
	"LJMIGRATE_LEGACY_TABLE",
	"LJMIGRATE_LOG_LEVEL",
	"LJMIGRATE_LOG_FORMAT",
	"LJMIGRATE_PROGRESS_EVERY",
	"LJMIGRATE_OUTPUT",
}

// isolate points HOME at a fresh directory, moves into it and clears the
// environment variables Load reads.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, v := range envVars {
		t.Setenv(v, "")
	}

	oldCwd, _ := os.Getwd()
	t.Cleanup(func() { os.Chdir(oldCwd) })
	require.NoError(t, os.Chdir(home))
	return home
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.Driver)
	assert.Equal(t, "legacy_journals", cfg.LegacyTable)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 1000, cfg.ProgressEvery)
	assert.Equal(t, "table", cfg.Output)
	assert.Empty(t, cfg.DSN)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	home := isolate(t)
	configDir := filepath.Join(home, ".config", "ljmigrate")
	require.NoError(t, os.MkdirAll(configDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(
		"driver: postgres\ndsn: postgres://localhost/openproject\nprogress_every: 50\nlog_level: debug\n"), 0644))

	t.Setenv("LJMIGRATE_LOG_LEVEL", "warn")
	t.Setenv("LJMIGRATE_OUTPUT", "json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Driver)
	assert.Equal(t, "postgres://localhost/openproject", cfg.DSN)
	assert.Equal(t, 50, cfg.ProgressEvery)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "json", cfg.Output)
}

func TestLoad_DSNFile(t *testing.T) {
	home := isolate(t)
	dsnFile := filepath.Join(home, "dsn")
	require.NoError(t, os.WriteFile(dsnFile, []byte("user:pw@tcp(db:3306)/openproject\n"), 0600))
	t.Setenv("LJMIGRATE_DB_DSN_FILE", dsnFile)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "user:pw@tcp(db:3306)/openproject", cfg.DSN)
}

func TestLoad_EnvLocal(t *testing.T) {
	home := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".env.local"), []byte("LJMIGRATE_LEGACY_TABLE=old_journals\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("LJMIGRATE_LEGACY_TABLE") })
	os.Unsetenv("LJMIGRATE_LEGACY_TABLE")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "old_journals", cfg.LegacyTable)
}

func TestLoad_InvalidProgressEvery(t *testing.T) {
	isolate(t)
	t.Setenv("LJMIGRATE_PROGRESS_EVERY", "often")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{Driver: "sqlite3", DSN: "rehearsal.db", LegacyTable: "legacy_journals", ProgressEvery: 1000, Output: "table"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown driver", func(c *Config) { c.Driver = "oracle" }},
		{"missing dsn", func(c *Config) { c.DSN = " " }},
		{"empty table", func(c *Config) { c.LegacyTable = "" }},
		{"zero progress", func(c *Config) { c.ProgressEvery = 0 }},
		{"bad output", func(c *Config) { c.Output = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestFindEnvLocal_InParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	childDir := filepath.Join(tmpDir, "child")
	require.NoError(t, os.Mkdir(childDir, 0755))
	envPath := filepath.Join(tmpDir, ".env.local")
	require.NoError(t, os.WriteFile(envPath, []byte("TEST=parent"), 0644))

	oldCwd, _ := os.Getwd()
	defer os.Chdir(oldCwd)
	require.NoError(t, os.Chdir(childDir))

	// Resolve symlinks for comparison (macOS /var -> /private/var)
	expected, _ := filepath.EvalSymlinks(envPath)
	got, _ := filepath.EvalSymlinks(findEnvLocal())
	assert.Equal(t, expected, got)
}

func TestFindEnvLocal_ClosestWins(t *testing.T) {
	tmpDir := t.TempDir()
	parentDir := filepath.Join(tmpDir, "parent")
	childDir := filepath.Join(parentDir, "child")
	require.NoError(t, os.MkdirAll(childDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".env.local"), []byte("TEST=grandparent"), 0644))
	parentEnvPath := filepath.Join(parentDir, ".env.local")
	require.NoError(t, os.WriteFile(parentEnvPath, []byte("TEST=parent"), 0644))

	oldCwd, _ := os.Getwd()
	defer os.Chdir(oldCwd)
	require.NoError(t, os.Chdir(childDir))

	expected, _ := filepath.EvalSymlinks(parentEnvPath)
	got, _ := filepath.EvalSymlinks(findEnvLocal())
	assert.Equal(t, expected, got)
}

func TestFindEnvLocal_StopsAtHome(t *testing.T) {
	tmpDir := t.TempDir()
	home := filepath.Join(tmpDir, "home")
	require.NoError(t, os.MkdirAll(home, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".env.local"), []byte("TEST=above"), 0644))
	t.Setenv("HOME", home)

	oldCwd, _ := os.Getwd()
	defer os.Chdir(oldCwd)
	require.NoError(t, os.Chdir(home))

	assert.Empty(t, findEnvLocal())
}
