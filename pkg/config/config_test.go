package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) lookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 768, cfg.Ollama.EmbedDim)
	assert.Equal(t, 50*time.Millisecond, cfg.Ingest.EmbedInterval)
	assert.Equal(t, 5*time.Second, cfg.Query.SearchTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.False(t, cfg.UsesBucket())
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(env(map[string]string{
		"OLLAMA_URL":     "http://ollama:11434",
		"EMBED_DIM":      "1024",
		"QDRANT_ADDR":    "qdrant:6334",
		"ONET_BUCKET":    "onet",
		"MINIO_USE_SSL":  "true",
		"EMBED_INTERVAL": "100ms",
		"INGEST_WORKERS": "4",
		"SEARCH_TIMEOUT": "2s",
		"LOG_LEVEL":      "DEBUG",
	}))
	require.NoError(t, err)
	assert.Equal(t, "http://ollama:11434", cfg.Ollama.URL)
	assert.Equal(t, 1024, cfg.Ollama.EmbedDim)
	assert.Equal(t, "qdrant:6334", cfg.Qdrant.Addr)
	assert.True(t, cfg.UsesBucket())
	assert.True(t, cfg.Minio.UseSSL)
	assert.Equal(t, 100*time.Millisecond, cfg.Ingest.EmbedInterval)
	assert.Equal(t, 4, cfg.Ingest.Workers)
	assert.Equal(t, 2*time.Second, cfg.Query.SearchTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	require.NoError(t, cfg.Validate())
}

func TestApplyEnv_BadValues(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(env(map[string]string{
		"EMBED_DIM":      "big",
		"EMBED_INTERVAL": "soon",
		"MINIO_USE_SSL":  "maybe",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EMBED_DIM")
	assert.Contains(t, err.Error(), "EMBED_INTERVAL")
	assert.Contains(t, err.Error(), "MINIO_USE_SSL")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Onet.Dir = ""
	cfg.Ollama.EmbedDim = 0
	cfg.LogLevel = "loud"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Dir")
	assert.Contains(t, err.Error(), "EmbedDim")
	assert.Contains(t, err.Error(), "LogLevel")

	cfg = Default()
	cfg.Onet.Dir = ""
	cfg.Onet.Bucket = "onet"
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "karir.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ollama:
  chat_model: qwen2.5:7b
query:
  search_timeout: 3s
server:
  port: 9000
`), 0o644))

	t.Chdir(dir)
	t.Setenv("PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5:7b", cfg.Ollama.ChatModel)
	assert.Equal(t, "nomic-embed-text", cfg.Ollama.EmbedModel, "defaults survive partial yaml")
	assert.Equal(t, 3*time.Second, cfg.Query.SearchTimeout)
	assert.Equal(t, 9100, cfg.Server.Port, "env wins over yaml")
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("JURUSAN_TOKEN=abc\n"), 0o644))
	t.Chdir(dir)
	t.Setenv("JURUSAN_TOKEN", "")
	os.Unsetenv("JURUSAN_TOKEN")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.Jurusan.Token)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
