package config

import (
	"fmt"
	"os"
	"strconv"

	"djvuocr/internal/logger"
)

type Config struct {
	// OCR Configuration
	Engine   string
	Language string
	Jobs     int

	// Output Configuration
	RenderMode string
	Details    string
	OnError    string

	// Google Cloud Configuration (vision and documentai engines)
	GoogleCloudProject    string
	GoogleCloudLocation   string
	DocumentAIProcessorID string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		Engine:                getEnv("DJVUOCR_ENGINE", "tesseract"),
		Language:              getEnv("DJVUOCR_LANGUAGE", ""),
		Jobs:                  getEnvInt("DJVUOCR_JOBS", 1),
		RenderMode:            getEnv("DJVUOCR_RENDER", "mask"),
		Details:               getEnv("DJVUOCR_DETAILS", "words"),
		OnError:               getEnv("DJVUOCR_ON_ERROR", "abort"),
		GoogleCloudProject:    getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:   getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID: getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:         getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:             getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.Engine == "" {
		return fmt.Errorf("DJVUOCR_ENGINE must not be empty")
	}
	if c.Jobs < 0 {
		return fmt.Errorf("DJVUOCR_JOBS must not be negative")
	}
	switch c.OnError {
	case "abort", "resume":
	default:
		return fmt.Errorf("DJVUOCR_ON_ERROR must be abort or resume")
	}
	return nil
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

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
