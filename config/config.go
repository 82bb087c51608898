package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken string
	LogLevel      string

	DatabasePath  string
	UploadsDir    string
	OutputsDir    string
	PublicBaseURL string

	OllamaURL      string
	OllamaModel    string
	PrimaryTimeout time.Duration

	MaskRCNNModel  string
	MaskRCNNConfig string
	PreloadModels  bool

	Workers int

	AzureAccount   string
	AzureKey       string
	AzureContainer string
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		DatabasePath:   getEnvOrDefault("DATABASE_PATH", "data/ecoregen.db"),
		UploadsDir:     getEnvOrDefault("UPLOADS_DIR", "data/uploads"),
		OutputsDir:     getEnvOrDefault("OUTPUTS_DIR", "data/outputs"),
		PublicBaseURL:  getEnvOrDefault("PUBLIC_BASE_URL", "/static"),
		OllamaURL:      getEnvOrDefault("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:    getEnvOrDefault("OLLAMA_MODEL", "llava"),
		PrimaryTimeout: parseDurationOrDefault("PRIMARY_TIMEOUT", 2*time.Minute),
		MaskRCNNModel:  getEnvOrDefault("MASKRCNN_MODEL", "models/frozen_inference_graph.pb"),
		MaskRCNNConfig: getEnvOrDefault("MASKRCNN_CONFIG", "models/mask_rcnn_inception_v2_coco.pbtxt"),
		PreloadModels:  parseBoolOrDefault("PRELOAD_MODELS", false),
		Workers:        parseIntOrDefault("WORKERS", runtime.NumCPU()),
		AzureAccount:   os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureKey:       os.Getenv("AZURE_STORAGE_KEY"),
		AzureContainer: os.Getenv("AZURE_STORAGE_CONTAINER"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	if c.PrimaryTimeout <= 0 {
		return fmt.Errorf("PRIMARY_TIMEOUT must be > 0 (got %s)", c.PrimaryTimeout)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("WORKERS must be > 0 (got %d)", c.Workers)
	}
	if strings.TrimSpace(c.UploadsDir) == "" || strings.TrimSpace(c.OutputsDir) == "" {
		return fmt.Errorf("UPLOADS_DIR and OUTPUTS_DIR must not be empty")
	}

	azureSet := 0
	for _, v := range []string{c.AzureAccount, c.AzureKey, c.AzureContainer} {
		if v != "" {
			azureSet++
		}
	}
	if azureSet != 0 && azureSet != 3 {
		return fmt.Errorf("AZURE_STORAGE_ACCOUNT, AZURE_STORAGE_KEY and AZURE_STORAGE_CONTAINER must be set together")
	}
	return nil
}

// AzureEnabled сообщает, нужно ли публиковать результаты в Azure Blob Storage.
func (c *Config) AzureEnabled() bool {
	return c.AzureAccount != "" && c.AzureKey != "" && c.AzureContainer != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}
