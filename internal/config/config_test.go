package config_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rohmanhakim/author-index/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDefault_BuildsSafeDefaults(t *testing.T) {
	cfg, err := config.WithDefault().Build()
	require.NoError(t, err)

	assert.True(t, cfg.RobotsRequired())
	assert.False(t, cfg.StoreFullBody())
	assert.False(t, cfg.AutoMergeEnabled())
	assert.Equal(t, 1, cfg.GlobalConcurrency())
	assert.Equal(t, 5*time.Second, cfg.PerDomainDelay())
	assert.Equal(t, 5, cfg.MaxRedirects())
	assert.Equal(t, 1500, cfg.SnippetMaxChars())
	assert.Equal(t, 800, cfg.EvidenceSnippetMaxChars())
	assert.EqualValues(t, 0, cfg.MaxBodyBytesByType()["application/pdf"])
	assert.NotEmpty(t, cfg.UserAgent())
	assert.NotEmpty(t, cfg.BlockedCIDRs())
}

func TestBuild_RejectsZeroConcurrency(t *testing.T) {
	_, err := config.WithDefault().WithGlobalConcurrency(0).Build()
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
}

func TestBuild_RejectsNonPositiveSnippetBounds(t *testing.T) {
	_, err := config.WithDefault().WithSnippetMaxChars(0).Build()
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))

	_, err = config.WithDefault().WithEvidenceSnippetMaxChars(-1).Build()
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
}

func TestBuild_RejectsNegativeDelay(t *testing.T) {
	_, err := config.WithDefault().WithPerDomainDelay(-1 * time.Second).Build()
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
}

func TestWithConfigFile_OverridesDefaults(t *testing.T) {
	path := writeTempConfig(t, map[string]any{
		"userAgent":         "custom-agent/1.0",
		"globalConcurrency": 2,
		"dbPath":            "custom.db",
	})

	cfg, err := config.WithConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "custom-agent/1.0", cfg.UserAgent())
	assert.Equal(t, 2, cfg.GlobalConcurrency())
	assert.Equal(t, "custom.db", cfg.DBPath())
}

func TestWithConfigFile_MissingFile(t *testing.T) {
	_, err := config.WithConfigFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrFileDoesNotExist))
}

func writeTempConfig(t *testing.T, payload map[string]any) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}
