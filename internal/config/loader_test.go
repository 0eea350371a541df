package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(LoaderOptions{ConfigPaths: []string{t.TempDir()}})
	require.NoError(t, err)

	assert.Equal(t, "2s", cfg.Review.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.Review.ParsedPollInterval())
	assert.NotEmpty(t, cfg.Store.Path)
	assert.True(t, cfg.Observability.Logging.Enabled)
	assert.Equal(t, "info", cfg.Observability.Logging.Level)
	assert.Equal(t, "human", cfg.Observability.Logging.Format)
	assert.Empty(t, cfg.Review.BaseRef, "base ref is auto-detected unless configured")
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
git:
  repositoryDir: /repos/project
review:
  baseRef: develop
  author: alice
  pollInterval: 500ms
store:
  path: /tmp/review.db
observability:
  logging:
    level: debug
    format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "br.yaml"), []byte(content), 0o644))

	cfg, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	require.NoError(t, err)

	assert.Equal(t, "/repos/project", cfg.Git.RepositoryDir)
	assert.Equal(t, "develop", cfg.Review.BaseRef)
	assert.Equal(t, "alice", cfg.Review.Author)
	assert.Equal(t, 500*time.Millisecond, cfg.Review.ParsedPollInterval())
	assert.Equal(t, "/tmp/review.db", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Observability.Logging.Level)
	assert.Equal(t, "json", cfg.Observability.Logging.Format)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("REVIEW_DB_DIR", "/data/reviews")

	dir := t.TempDir()
	content := "store:\n  path: ${REVIEW_DB_DIR}/state.db\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "br.yaml"), []byte(content), 0o644))

	cfg, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	require.NoError(t, err)
	assert.Equal(t, "/data/reviews/state.db", cfg.Store.Path)
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	t.Setenv("BR_REVIEW_POLLINTERVAL", "10s")

	cfg, err := Load(LoaderOptions{ConfigPaths: []string{t.TempDir()}})
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Review.ParsedPollInterval())
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "br.yaml"), []byte("review: ["), 0o644))

	_, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	require.Error(t, err)
}

func TestParsedPollInterval_Fallback(t *testing.T) {
	assert.Equal(t, time.Duration(0), ReviewConfig{PollInterval: ""}.ParsedPollInterval())
	assert.Equal(t, time.Duration(0), ReviewConfig{PollInterval: "soon"}.ParsedPollInterval())
	assert.Equal(t, time.Duration(0), ReviewConfig{PollInterval: "-2s"}.ParsedPollInterval())
}
