package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, int64(20), cfg.Server.MaxUploadMB)
	assert.Equal(t, "mongo", cfg.Store.Driver)
	assert.Equal(t, "spotmytrash", cfg.Mongo.DBName)
	assert.Equal(t, 2*time.Second, cfg.Mongo.PingTimeout)
	assert.Equal(t, "s3", cfg.Blob.Driver)
	assert.Equal(t, "android", cfg.Capture.Device)
	assert.Equal(t, 10*time.Second, cfg.Capture.FixTimeout)
	assert.Equal(t, "data/photos", cfg.Capture.OfflineDir)
	assert.Equal(t, "createdAt", cfg.Repository.OrderBy)
	assert.Equal(t, 10*time.Minute, cfg.Repository.PhotoURLCacheTTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: "9090"
store:
  driver: memory
blob:
  driver: minio
minio:
  endpoint: minio.local:9000
  bucket: litter
  urlExpiry: 1h
capture:
  offlineDir: /var/lib/spotmytrash
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "minio", cfg.Blob.Driver)
	assert.Equal(t, "minio.local:9000", cfg.Minio.Endpoint)
	assert.Equal(t, "litter", cfg.Minio.Bucket)
	assert.Equal(t, time.Hour, cfg.Minio.URLExpiry)
	assert.Equal(t, "/var/lib/spotmytrash", cfg.Capture.OfflineDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	// defaults still apply for unset values
	assert.Equal(t, "spotmytrash", cfg.Mongo.DBName)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("mongo:\n  uri: mongodb://file:27017\n"), 0644))

	t.Setenv("MONGO_URI", "mongodb://env:27017")
	t.Setenv("S3_BUCKET", "from-env")
	t.Setenv("MONGO_PING_TIMEOUT", "500ms")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "mongodb://env:27017", cfg.Mongo.URI)
	assert.Equal(t, "from-env", cfg.S3.Bucket)
	assert.Equal(t, 500*time.Millisecond, cfg.Mongo.PingTimeout)
}

func TestLoadConfigBadYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0644))

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	orig := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(orig) })

	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))

	assert.Error(t, InitLogger(LogConfig{Level: "loud", Format: "json"}))
}
