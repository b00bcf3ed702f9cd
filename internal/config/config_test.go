package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 4, cfg.Scrape.Concurrency)
	require.Equal(t, 10, cfg.Scrape.MaxPages)
	require.Equal(t, 3, cfg.Health.CloseAfterMisses)
	require.Equal(t, 5, cfg.Health.BrokenAfter)
	require.Equal(t, 200, cfg.Detector.MinVisibleText)
	require.Equal(t, 2*time.Minute, cfg.SourceBudget())
	require.True(t, cfg.Logging.Development)
}

func TestLoadFromFileWithSources(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
scrape:
  concurrency: 8
sources:
  - id: acme
    url: https://job-boards.greenhouse.io/acme
    adapter: greenhouse
    location_terms: ["berlin", "remote"]
  - id: globex
    url: https://globex.example/careers
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 8, cfg.Scrape.Concurrency)

	sources := cfg.PageSources()
	require.Len(t, sources, 2)
	require.Equal(t, "acme", sources[0].ID)
	require.Equal(t, "greenhouse", sources[0].Adapter)
	require.Equal(t, []string{"berlin", "remote"}, sources[0].LocationTerms)
	require.Empty(t, sources[1].Adapter)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("BOARDWATCH_SERVER_PORT", "7070")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"zero concurrency", func(c *Config) { c.Scrape.Concurrency = 0 }},
		{"zero max pages", func(c *Config) { c.Scrape.MaxPages = 0 }},
		{"auth without key", func(c *Config) { c.Auth.Enabled = true }},
		{"close after below one", func(c *Config) { c.Health.CloseAfterMisses = 0 }},
		{"source missing url", func(c *Config) { c.Sources = []SourceConfig{{ID: "x"}} }},
		{"duplicate source ids", func(c *Config) {
			c.Sources = []SourceConfig{
				{ID: "x", URL: "https://a.example"},
				{ID: "x", URL: "https://b.example"},
			}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
