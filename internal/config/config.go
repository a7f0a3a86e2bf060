package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"wirelens/internal/logger"
)

type Config struct {
	// Google Cloud Configuration
	GoogleCloudProject string
	VisionAPIKey       string
	VisionMaxResults   int

	// Image Preparation
	ImageMaxWidth    int
	ImageJPEGQuality int

	// Image Fetching
	FetchTimeout time.Duration
	FetchRetries int
	FetchBackoff time.Duration

	// Batch Scanning
	ScanWorkers int

	// OpenAI Configuration (optional AI fallback)
	OpenAIAPIKey string
	OpenAIModel  string
	AIFallback   bool

	// Google Sheets Configuration (optional export)
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		GoogleCloudProject:   getEnv("GOOGLE_CLOUD_PROJECT", ""),
		VisionAPIKey:         getEnv("VISION_API_KEY", ""),
		VisionMaxResults:     getEnvInt("VISION_MAX_RESULTS", 10),
		ImageMaxWidth:        getEnvInt("IMAGE_MAX_WIDTH", 1200),
		ImageJPEGQuality:     getEnvInt("IMAGE_JPEG_QUALITY", 90),
		FetchTimeout:         getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
		FetchRetries:         getEnvInt("FETCH_RETRIES", 4),
		FetchBackoff:         getEnvDuration("FETCH_BACKOFF", 500*time.Millisecond),
		ScanWorkers:          getEnvInt("SCAN_WORKERS", 4),
		OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		AIFallback:           getEnvBool("AI_FALLBACK", false),
		GoogleSheetURL:       getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet: getEnv("GOOGLE_SHEET_WORKSHEET", "WireLens"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:        getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:            getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Default returns the configuration used when the environment cannot be loaded.
func Default() *Config {
	return &Config{
		VisionMaxResults:     10,
		ImageMaxWidth:        1200,
		ImageJPEGQuality:     90,
		FetchTimeout:         30 * time.Second,
		FetchRetries:         4,
		FetchBackoff:         500 * time.Millisecond,
		ScanWorkers:          4,
		OpenAIModel:          "gpt-4o-mini",
		GoogleSheetWorksheet: "WireLens",
		LogLevel:             "info",
		LogFormat:            "console",
		LogTimeFormat:        time.RFC3339,
		LogOutput:            "stderr",
	}
}

func (c *Config) validate() error {
	if c.VisionMaxResults <= 0 {
		return fmt.Errorf("VISION_MAX_RESULTS must be positive, got %d", c.VisionMaxResults)
	}
	if c.ImageMaxWidth <= 0 {
		return fmt.Errorf("IMAGE_MAX_WIDTH must be positive, got %d", c.ImageMaxWidth)
	}
	if c.ImageJPEGQuality < 1 || c.ImageJPEGQuality > 100 {
		return fmt.Errorf("IMAGE_JPEG_QUALITY must be between 1 and 100, got %d", c.ImageJPEGQuality)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive, got %s", c.FetchTimeout)
	}
	if c.FetchRetries < 0 {
		return fmt.Errorf("FETCH_RETRIES must not be negative, got %d", c.FetchRetries)
	}
	if c.ScanWorkers <= 0 {
		return fmt.Errorf("SCAN_WORKERS must be positive, got %d", c.ScanWorkers)
	}
	if c.AIFallback && c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_FALLBACK is enabled")
	}
	return nil
}

// HasGoogleCredentials reports whether any Vision credential source is configured.
// Application default credentials are not detected here.
func (c *Config) HasGoogleCredentials() bool {
	return os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" ||
		os.Getenv("GOOGLE_CREDENTIALS") != "" ||
		c.VisionAPIKey != ""
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt keeps invalid numbers visible to validate() by returning -1.
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return -1
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return d
}
