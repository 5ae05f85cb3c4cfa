package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxBytes is the per-category upload limit when none is configured (1 GiB).
const DefaultMaxBytes int64 = 1024 * 1024 * 1024

// DefaultMaxPixels caps decoded image size at 16383x16383.
const DefaultMaxPixels int64 = 16383 * 16383

// StorageConfig holds local disk storage settings for uploaded files.
type StorageConfig struct {
	Root                 string
	ImagesDir            string
	DocumentsDir         string
	ImagesMaxBytes       int64
	DocumentsMaxBytes    int64
	AllowedImageTypes    []string
	AllowedDocumentTypes []string
	VerifyPDF            bool
}

// TranscodeConfig holds image normalization settings.
type TranscodeConfig struct {
	JPEGQuality int
	AutoOrient  bool
	// MaxPixels rejects images whose declared width*height exceeds it, before decoding.
	MaxPixels int64
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables once at process start.
type AppConfig struct {
	Port           string
	APIPrefix      string
	Location       *time.Location
	MetricsEnabled bool
	Storage        StorageConfig
	Transcode      TranscodeConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		Port:           getEnv("PORT", "3000"),
		APIPrefix:      normalizePrefix(getEnv("API_PREFIX", "/uploads")),
		Location:       getEnvLocation("APP_TIMEZONE", time.UTC),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
		Storage: StorageConfig{
			Root:                 getEnv("STORAGE_ROOT", "./uploads"),
			ImagesDir:            getEnv("IMAGES_DIR", "images"),
			DocumentsDir:         getEnv("DOCUMENTS_DIR", "documents"),
			ImagesMaxBytes:       getEnvInt64("IMAGES_MAX_BYTES", DefaultMaxBytes),
			DocumentsMaxBytes:    getEnvInt64("DOCUMENTS_MAX_BYTES", DefaultMaxBytes),
			AllowedImageTypes:    getEnvList("ALLOWED_IMAGE_TYPES", []string{"jpeg", "jpg", "png"}),
			AllowedDocumentTypes: getEnvList("ALLOWED_DOCUMENT_TYPES", []string{"pdf"}),
			VerifyPDF:            getEnvBool("DOCUMENTS_VERIFY_PDF", false),
		},
		Transcode: TranscodeConfig{
			JPEGQuality: clamp(getEnvInt("IMAGE_JPEG_QUALITY", 80), 1, 100),
			AutoOrient:  getEnvBool("IMAGE_AUTO_ORIENT", true),
			MaxPixels:   getEnvInt64("IMAGE_MAX_PIXELS", DefaultMaxPixels),
		},
	}
}

// BodyLimit returns the largest request body the HTTP server must accept:
// the biggest category limit plus room for multipart framing.
func (c *AppConfig) BodyLimit() int {
	limit := c.Storage.ImagesMaxBytes
	if c.Storage.DocumentsMaxBytes > limit {
		limit = c.Storage.DocumentsMaxBytes
	}
	return int(limit + 1024*1024)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil && i > 0 {
			return i
		}
	}
	return def
}

// getEnvList parses a comma separated list, lowercased, with empty items dropped.
func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(item), "."))
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func getEnvLocation(key string, def *time.Location) *time.Location {
	if v := os.Getenv(key); v != "" {
		loc, err := time.LoadLocation(v)
		if err == nil {
			return loc
		}
	}
	return def
}

func normalizePrefix(p string) string {
	p = "/" + strings.Trim(p, "/")
	if p == "/" {
		return ""
	}
	return p
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
