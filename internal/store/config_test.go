package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	c, err := LoadConfig(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, c.PollInterval())
	assert.Equal(t, 100, c.SnapshotLimit)
	assert.Equal(t, 2, c.IncrementalLimit)
	assert.Equal(t, "0.000001", c.Tolerance().String())
	assert.Equal(t, MarketSourceBinance, c.Market.Source)
	assert.Equal(t, "http://127.0.0.1:5000", c.Backend.BaseURL)
	assert.Equal(t, ":8080", c.Server.Listen)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	c, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 60, c.PollSeconds)
}

func TestLoadConfigOverrides(t *testing.T) {
	c, err := LoadConfig(writeConfig(t, `
poll_seconds: 5
snapshot_limit: 50
market:
  source: KITE
  kite:
    exchange: BSE
backend:
  base_url: http://backend:9000
`))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, c.PollInterval())
	assert.Equal(t, 50, c.SnapshotLimit)
	assert.Equal(t, MarketSourceKite, c.Market.Source)
	assert.Equal(t, "BSE", c.Market.Kite.Exchange)
	assert.Equal(t, "http://backend:9000", c.Backend.BaseURL)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown source":      "market:\n  source: coinbase\n",
		"incremental too big": "snapshot_limit: 2\nincremental_limit: 5\n",
		"negative poll":       "poll_seconds: -1\n",
		"negative tolerance":  "match_tolerance: -0.5\n",
		"negative retention":  "export:\n  retention_days: -3\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigBadYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "poll_seconds: [\n"))
	assert.Error(t, err)
}
