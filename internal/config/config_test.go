package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `{
		"imap_host": "imap.example.com:993",
		"imap_user": "jane@example.com",
		"imap_folder": "Bewerbungen",
		"search_terms": ["Bewerbung", "application"],
		"since_date": "2026-01-01",
		"output_path": "out.xlsx",
		"matching": {"high_threshold": 0.9, "low_threshold": 0.65},
		"addresses": {"register_threshold": 0.8},
		"parallelism": 8,
		"interactive": true
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "imap.example.com:993", cfg.IMAPHost)
	assert.Equal(t, "Bewerbungen", cfg.IMAPFolder)
	assert.Equal(t, []string{"Bewerbung", "application"}, cfg.SearchTerms)
	assert.InDelta(t, 0.9, cfg.Matching.HighThreshold, 0.001)
	assert.InDelta(t, 0.8, cfg.Addresses.RegisterThreshold, 0.001)
	assert.Equal(t, 8, cfg.Parallelism)
	assert.True(t, cfg.Interactive)

	since, err := cfg.Since()
	require.NoError(t, err)
	assert.Equal(t, "2026-01-01", since.Format("2006-01-02"))
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		_, err := LoadConfig("")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "{not json"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Run("bad since date", func(t *testing.T) {
		cfg := Config{SinceDate: "01.02.2026"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative parallelism", func(t *testing.T) {
		cfg := Config{Parallelism: -1}
		assert.Error(t, cfg.Validate())
	})

	t.Run("inverted thresholds", func(t *testing.T) {
		cfg := Config{}
		cfg.Matching.LowThreshold = 0.9
		cfg.Matching.HighThreshold = 0.5
		assert.Error(t, cfg.Validate())
	})

	t.Run("empty config is valid", func(t *testing.T) {
		cfg := Config{}
		assert.NoError(t, cfg.Validate())
	})
}

func TestMergeWithDefaults(t *testing.T) {
	defaults := Config{
		IMAPFolder:  "INBOX",
		SearchTerms: []string{"Bewerbung"},
		OutputPath:  "applications.xlsx",
		Parallelism: 4,
	}

	t.Run("fills unset fields", func(t *testing.T) {
		cfg := Config{}
		merged := cfg.MergeWithDefaults(defaults)
		assert.Equal(t, "INBOX", merged.IMAPFolder)
		assert.Equal(t, []string{"Bewerbung"}, merged.SearchTerms)
		assert.Equal(t, "applications.xlsx", merged.OutputPath)
		assert.Equal(t, 4, merged.Parallelism)
	})

	t.Run("keeps set fields", func(t *testing.T) {
		cfg := Config{IMAPFolder: "Jobs", Parallelism: 1}
		merged := cfg.MergeWithDefaults(defaults)
		assert.Equal(t, "Jobs", merged.IMAPFolder)
		assert.Equal(t, 1, merged.Parallelism)
	})
}
