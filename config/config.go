// Package config assembles the echo server's runtime configuration from
// environment variables, with an optional YAML file overlay.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the echo server's full runtime configuration.
type Config struct {
	// ListenAddr is the HTTP server's bind address, e.g. ":8085".
	ListenAddr string `yaml:"listen_addr"`
	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level"`

	Resource ResourceConfig `yaml:"resource"`
	Upload   UploadConfig   `yaml:"upload"`

	// ResourceSignerSecret keys the default HMAC resource signer.
	ResourceSignerSecret string `yaml:"resource_signer_secret"`
}

// ResourceConfig holds resource storage paths and streaming limits.
type ResourceConfig struct {
	// LocalStoragePath is resource.local_storage_path: where committed
	// uploads are moved to on Session.Commit.
	LocalStoragePath string `yaml:"local_storage_path"`
	// TmpFilePath is resource.tmp_file_path: where in-flight sparse temp
	// files live. Defaults to the OS temp dir when empty.
	TmpFilePath string `yaml:"tmp_file_path"`
	// FlushStreamSize is resource.flush_stream_size, the Upload Framing
	// Codec's per-BodyChunk cap (must be >= 8192 and < UploadChunkSize).
	FlushStreamSize uint32 `yaml:"flush_stream_size"`
}

// UploadConfig holds the upload limits the HTTP handlers consult before
// creating a tracker. In a deployment with a dynamic settings service these
// would be read from it; echod reads them as static config.
type UploadConfig struct {
	MaxFileSize     uint64   `yaml:"max_file_size"`
	UploadChunkSize uint32   `yaml:"upload_chunk_size"`
	AllowMimeTypes  []string `yaml:"allow_mime_types"`
	SessionTTLMins  int      `yaml:"session_ttl_minutes"`
	MaxHeadSize     uint32   `yaml:"max_head_size"`
	MaxBodySize     uint32   `yaml:"max_body_size"`
}

// defaults fills in zero-valued fields.
func (c *Config) defaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8085"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Resource.LocalStoragePath == "" {
		c.Resource.LocalStoragePath = "data/resources"
	}
	if c.Resource.TmpFilePath == "" {
		c.Resource.TmpFilePath = os.TempDir()
	}
	if c.Resource.FlushStreamSize == 0 {
		c.Resource.FlushStreamSize = 64 * 1024
	}
	if c.Upload.MaxFileSize == 0 {
		c.Upload.MaxFileSize = 200 * 1024 * 1024
	}
	if c.Upload.UploadChunkSize == 0 {
		c.Upload.UploadChunkSize = 4 * 1024 * 1024
	}
	if len(c.Upload.AllowMimeTypes) == 0 {
		c.Upload.AllowMimeTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}
	}
	if c.Upload.SessionTTLMins == 0 {
		c.Upload.SessionTTLMins = 30
	}
	if c.Upload.MaxHeadSize == 0 {
		c.Upload.MaxHeadSize = 1024
	}
	if c.Upload.MaxBodySize == 0 {
		// A frame's body is one whole chunk, so the cap must admit it.
		c.Upload.MaxBodySize = c.Upload.UploadChunkSize
	}
	if c.ResourceSignerSecret == "" {
		c.ResourceSignerSecret = env("RESOURCE_SIGNER_SECRET", "dev-secret-change-me")
	}
}

// Load builds a Config from an optional YAML file overlay (path may be
// empty) followed by environment variable overrides, then normalizes
// defaults. Environment variables win over the file.
func Load(path string) (*Config, error) {
	var c Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.ListenAddr = env("LISTEN_ADDR", c.ListenAddr)
	c.LogLevel = env("LOG_LEVEL", c.LogLevel)
	c.Resource.LocalStoragePath = env("RESOURCE_LOCAL_STORAGE_PATH", c.Resource.LocalStoragePath)
	c.Resource.TmpFilePath = env("RESOURCE_TMP_FILE_PATH", c.Resource.TmpFilePath)
	c.Resource.FlushStreamSize = envUint32("RESOURCE_FLUSH_STREAM_SIZE", c.Resource.FlushStreamSize)
	c.Upload.MaxFileSize = envUint64("UPLOAD_MAX_FILE_SIZE", c.Upload.MaxFileSize)
	c.Upload.UploadChunkSize = envUint32("UPLOAD_CHUNK_SIZE", c.Upload.UploadChunkSize)
	c.Upload.SessionTTLMins = envInt("UPLOAD_SESSION_TTL_MINUTES", c.Upload.SessionTTLMins)
	c.ResourceSignerSecret = env("RESOURCE_SIGNER_SECRET", c.ResourceSignerSecret)

	c.defaults()

	if c.Resource.FlushStreamSize < 8192 {
		return nil, fmt.Errorf("config: resource.flush_stream_size must be >= 8192, got %d", c.Resource.FlushStreamSize)
	}
	if uint64(c.Resource.FlushStreamSize) >= uint64(c.Upload.UploadChunkSize) {
		return nil, fmt.Errorf("config: resource.flush_stream_size (%d) must be < upload.upload_chunk_size (%d)",
			c.Resource.FlushStreamSize, c.Upload.UploadChunkSize)
	}
	if c.Upload.MaxBodySize < c.Upload.UploadChunkSize {
		return nil, fmt.Errorf("config: upload.max_body_size (%d) must admit a whole chunk (%d)",
			c.Upload.MaxBodySize, c.Upload.UploadChunkSize)
	}

	return &c, nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envUint32(key string, def uint32) uint32 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return def
	}
	return uint32(n)
}

func envUint64(key string, def uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
