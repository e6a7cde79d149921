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
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "advisor-hub.db", cfg.DBPath)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Minute, cfg.JobDeadline)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, 2, cfg.SweepGrace)
	assert.Equal(t, int64(20*1024*1024), cfg.MaxUploadBytes)
	assert.Equal(t, "memory", cfg.Blob.Mode)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	// No indentation inside the backtick block to avoid YAML parsing errors
	content := `addr: ":9090"
workers: 8
job_deadline: 5m
blob:
  mode: s3
  bucket: advisor-reports
  region: eu-west-1`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 5*time.Minute, cfg.JobDeadline)
	assert.Equal(t, "s3", cfg.Blob.Mode)
	assert.Equal(t, "advisor-reports", cfg.Blob.Bucket)
	assert.Equal(t, "eu-west-1", cfg.Blob.Region)
	// Untouched keys keep their defaults.
	assert.Equal(t, 3, cfg.MaxAttempts)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: :9090: bad"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownBlobMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("blob:\n  mode: gcs"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "unsupported blob mode")
}

func TestLoad_S3RequiresBucket(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("blob:\n  mode: s3"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "requires a bucket")
}
