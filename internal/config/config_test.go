package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/lore-crawler/internal/config"
)

func TestDefaultValues(t *testing.T) {
	cfg := config.Default()

	require.Equal(t, 50, cfg.MaxPages())
	require.Equal(t, 3, cfg.MaxDepth())
	require.Equal(t, 1*time.Second, cfg.CrawlDelay())
	require.True(t, cfg.RespectRobots())
	require.True(t, cfg.FollowLinks())
	require.Equal(t, 30*time.Second, cfg.FetchTimeout())
	require.Equal(t, 5, cfg.MaxRedirects())
	require.Equal(t, int64(10<<20), cfg.MaxBodyBytes())
	require.Equal(t, 3, cfg.MaxConcurrentTasks())
	require.Equal(t, 300*time.Second, cfg.TaskTimeout())
	require.Equal(t, 3, cfg.RetryAttempts())
	require.InDelta(t, 0.2, cfg.ResultFilteringThreshold(), 0.001)
	require.Equal(t, 100, cfg.SearchRateLimit())
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, 50, cfg.MaxPages())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
max_pages: 7
max_depth: 1
crawl_delay: 2.5
respect_robots: false
max_concurrent_tasks: 5
result_filtering_threshold: 0.5
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 7, cfg.MaxPages())
	require.Equal(t, 1, cfg.MaxDepth())
	require.Equal(t, 2500*time.Millisecond, cfg.CrawlDelay())
	require.False(t, cfg.RespectRobots())
	require.Equal(t, 5, cfg.MaxConcurrentTasks())
	require.InDelta(t, 0.5, cfg.ResultFilteringThreshold(), 0.001)
}

func TestLoad_EnvBootstrapsCredentials(t *testing.T) {
	t.Setenv("LORECRAWLER_GOOGLE_API_KEY", "g-key")
	t.Setenv("LORECRAWLER_GOOGLE_CSE_ID", "g-cse")
	t.Setenv("LORECRAWLER_DB_PATH", "/tmp/env.db")

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, "g-key", cfg.GoogleAPIKey())
	require.Equal(t, "g-cse", cfg.GoogleCSEID())
	require.Equal(t, "/tmp/env.db", cfg.DBPath())
	// Absent Bing key just leaves the provider unconfigured.
	require.Empty(t, cfg.BingAPIKey())
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()

	cases := []string{
		"max_pages: 0\n",
		"max_depth: -1\n",
		"result_filtering_threshold: 2.0\n",
		"max_concurrent_tasks: 0\n",
	}
	for i, body := range cases {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		if _, err := config.Load(path); err == nil {
			t.Errorf("case %d (%q): expected validation error", i, body)
		}
	}
}
