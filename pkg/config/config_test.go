package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 4, cfg.Database.MaxConns)
	assert.Equal(t, 30*time.Second, cfg.Database.ConnectTimeout)
	assert.Equal(t, "text-embedding-3-small", cfg.OpenAI.EmbeddingModel)
	assert.Equal(t, 1536, cfg.OpenAI.EmbeddingDimension)
	assert.Equal(t, 25, cfg.Pipeline.BatchSize)
	assert.Equal(t, 3, cfg.Pipeline.MaxRetries)
	assert.Equal(t, 1000, cfg.Pipeline.MaxDocuments)
	assert.True(t, cfg.Pipeline.SkipExisting)
	assert.Equal(t, 0.8, cfg.Search.ScoreThreshold)
	assert.Equal(t, 20, cfg.Search.MaxResults)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "8")
	t.Setenv("DB_CONNECT_TIMEOUT_SECONDS", "10")
	t.Setenv("PIPELINE_BATCH_SIZE", "10")
	t.Setenv("PIPELINE_SKIP_EXISTING", "false")
	t.Setenv("SEARCH_SCORE_THRESHOLD", "0.5")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Database.MaxConns)
	assert.Equal(t, 10*time.Second, cfg.Database.ConnectTimeout)
	assert.Equal(t, 10, cfg.Pipeline.BatchSize)
	assert.False(t, cfg.Pipeline.SkipExisting)
	assert.Equal(t, 0.5, cfg.Search.ScoreThreshold)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("PIPELINE_BATCH_SIZE", "many")
	t.Setenv("SEARCH_SCORE_THRESHOLD", "high")
	t.Setenv("PIPELINE_SKIP_EXISTING", "maybe")

	cfg, err := Load("")
	require.NoError(t, err)

	// 解釈できない値はデフォルトへフォールバック
	assert.Equal(t, 25, cfg.Pipeline.BatchSize)
	assert.Equal(t, 0.8, cfg.Search.ScoreThreshold)
	assert.True(t, cfg.Pipeline.SkipExisting)
}
