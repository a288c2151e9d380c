// internal/config/config.go
package config

import (
	"context"
	"fmt"
	"log"
	"reflect"
	"time"

	"github.com/spf13/viper"
)

// Config stores all the configuration settings for the verification service.
// It uses `mapstructure` tags for automatic unmarshaling from Viper configurations,
// loaded from environment variables and/or a .env file.
type Config struct {
	Environment       string `mapstructure:"ENVIRONMENT"`         // "development", "staging", "production"
	HTTPServerAddress string `mapstructure:"HTTP_SERVER_ADDRESS"` // Address (host:port) for the HTTP server to listen on. Example: ":8080"
	LogLevel          string `mapstructure:"LOG_LEVEL"`           // Logging level for Zap logger (debug, info, warn, error, fatal). Default: "info"
	LogFormat         string `mapstructure:"LOG_FORMAT"`          // Logging format ("console" or "json"). Default: "json"

	DBHost            string        `mapstructure:"DB_HOST"`
	DBPort            int           `mapstructure:"DB_PORT"`
	DBUser            string        `mapstructure:"DB_USER"`
	DBPassword        string        `mapstructure:"DB_PASSWORD"`
	DBName            string        `mapstructure:"DB_NAME"`
	DBSslMode         string        `mapstructure:"DB_SSL_MODE"`
	DBMinConns        int           `mapstructure:"DB_MIN_CONNS"`         // Minimum pool connections. Default: 2
	DBMaxConns        int           `mapstructure:"DB_MAX_CONNS"`         // Maximum pool connections. Default: 10
	DBAcquireTimeout  time.Duration `mapstructure:"DB_ACQUIRE_TIMEOUT"`   // Timeout for the initial pool connect and ping; not applied to later connection acquisitions. Default: 10s
	DBWriteMaxRetries int           `mapstructure:"DB_WRITE_MAX_RETRIES"` // Persistence writer retry attempts. Default: 5
	DBWriteInitDelay  time.Duration `mapstructure:"DB_WRITE_INIT_DELAY"`  // Persistence writer initial backoff. Default: 500ms

	ObjectStoreEndpoint        string `mapstructure:"OBJECT_STORE_ENDPOINT"`
	ObjectStoreRegion          string `mapstructure:"OBJECT_STORE_REGION"`
	ObjectStoreBucket          string `mapstructure:"OBJECT_STORE_BUCKET"`
	ObjectStoreAccessKeyID     string `mapstructure:"OBJECT_STORE_ACCESS_KEY_ID"`
	ObjectStoreSecretAccessKey string `mapstructure:"OBJECT_STORE_SECRET_ACCESS_KEY"`
	ObjectStoreUsePathStyle    bool   `mapstructure:"OBJECT_STORE_USE_PATH_STYLE"`
	ObjectStoreSkipTLSVerify   bool   `mapstructure:"OBJECT_STORE_SKIP_TLS_VERIFY"` // dev self-signed endpoints only

	OCRBaseURL         string        `mapstructure:"OCR_BASE_URL"`
	OCRHTTPTimeout     time.Duration `mapstructure:"OCR_HTTP_TIMEOUT"`     // Default: 60s
	OCRPollInterval    time.Duration `mapstructure:"OCR_POLL_INTERVAL"`    // Default: 2s
	OCRPollCeiling     time.Duration `mapstructure:"OCR_POLL_CEILING"`     // Default: 300s
	OCRMaxConcurrency  int           `mapstructure:"OCR_MAX_CONCURRENCY"`  // Default: 5
	OCRBreakerFailures uint32        `mapstructure:"OCR_BREAKER_FAILURES"` // Default: 5
	OCRBreakerCooldown time.Duration `mapstructure:"OCR_BREAKER_COOLDOWN"` // Default: 30s

	LLMBaseURL         string        `mapstructure:"LLM_BASE_URL"`
	LLMHTTPTimeout     time.Duration `mapstructure:"LLM_HTTP_TIMEOUT"`     // Default: 30s
	LLMMaxAttempts     int           `mapstructure:"LLM_MAX_ATTEMPTS"`     // Default: 3
	LLMModel           string        `mapstructure:"LLM_MODEL"`
	LLMTemperature     float64       `mapstructure:"LLM_TEMPERATURE"`
	LLMMaxTokens       int           `mapstructure:"LLM_MAX_TOKENS"`
	LLMBreakerFailures uint32        `mapstructure:"LLM_BREAKER_FAILURES"` // Default: 5
	LLMBreakerCooldown time.Duration `mapstructure:"LLM_BREAKER_COOLDOWN"` // Default: 30s

	DocTypeCheckPromptPath string `mapstructure:"DOC_TYPE_CHECK_PROMPT_PATH"`
	ExtractPromptPath      string `mapstructure:"EXTRACT_PROMPT_PATH"`

	MaxUploadSize       int64         `mapstructure:"MAX_UPLOAD_SIZE"`        // Default: 50MiB
	MaxPDFPages         int           `mapstructure:"MAX_PDF_PAGES"`          // Default: 3
	DefaultValidityDays int           `mapstructure:"DEFAULT_VALIDITY_DAYS"`  // Default: 40
	RunDeadline         time.Duration `mapstructure:"RUN_DEADLINE"`           // Default: 120s
	RunsRetentionDays   int           `mapstructure:"RUNS_RETENTION_DAYS"`    // Default: 30
	ArtifactDir         string        `mapstructure:"ARTIFACT_DIR"`           // Default: "./artifacts"
	WorkDir             string        `mapstructure:"WORK_DIR"`               // Default: "./work"
	ArtifactWritingOn   bool          `mapstructure:"ARTIFACT_WRITING_ON"`    // Feature flag. Default: true
	StampDetectionOn    bool          `mapstructure:"STAMP_DETECTION_ON"`     // Feature flag (disabled hook). Default: false
	ShutdownDrainWait   time.Duration `mapstructure:"SHUTDOWN_DRAIN_WAIT"`    // Default: 30s
}

const DevelopmentEnvironment = "development"

// LoadConfig reads configuration from environment variables and/or a .env file using Viper.
func LoadConfig(ctx context.Context, path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.AllowEmptyEnv(true)

	// Unmarshal only sees keys viper already knows about, so bind every
	// field's env var explicitly for the no-.env-file case.
	configType := reflect.TypeOf(Config{})
	for i := 0; i < configType.NumField(); i++ {
		if key := configType.Field(i).Tag.Get("mapstructure"); key != "" {
			_ = viper.BindEnv(key)
		}
	}
	viper.SetDefault("ARTIFACT_WRITING_ON", true)

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No .env file found, relying on environment variables.")
		} else {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err = viper.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.DBHost == "" {
		return Config{}, fmt.Errorf("environment variable DB_HOST is required")
	}
	if config.DBPort == 0 {
		return Config{}, fmt.Errorf("environment variable DB_PORT is required")
	}
	if config.DBUser == "" {
		return Config{}, fmt.Errorf("environment variable DB_USER is required")
	}
	if config.DBName == "" {
		return Config{}, fmt.Errorf("environment variable DB_NAME is required")
	}
	if config.DBSslMode == "" {
		return Config{}, fmt.Errorf("environment variable DB_SSL_MODE is required")
	}
	if config.HTTPServerAddress == "" {
		return Config{}, fmt.Errorf("environment variable HTTP_SERVER_ADDRESS is required")
	}
	if config.ObjectStoreBucket == "" {
		return Config{}, fmt.Errorf("environment variable OBJECT_STORE_BUCKET is required")
	}
	if config.ObjectStoreRegion == "" {
		config.ObjectStoreRegion = "us-east-1"
		log.Println("OBJECT_STORE_REGION not set, defaulting to 'us-east-1'")
	}
	if config.OCRBaseURL == "" {
		return Config{}, fmt.Errorf("environment variable OCR_BASE_URL is required")
	}
	if config.LLMBaseURL == "" {
		return Config{}, fmt.Errorf("environment variable LLM_BASE_URL is required")
	}

	if config.LogLevel == "" {
		config.LogLevel = "info"
		log.Println("LOG_LEVEL not set, defaulting to 'info'")
	}
	if config.LogFormat == "" {
		config.LogFormat = "json"
		log.Println("LOG_FORMAT not set, defaulting to 'json'")
	}
	if config.DBMinConns == 0 {
		config.DBMinConns = 2
		log.Println("DB_MIN_CONNS not set, defaulting to 2")
	}
	if config.DBMaxConns == 0 {
		config.DBMaxConns = 10
		log.Println("DB_MAX_CONNS not set, defaulting to 10")
	}
	if config.DBAcquireTimeout == 0 {
		config.DBAcquireTimeout = 10 * time.Second
		log.Println("DB_ACQUIRE_TIMEOUT not set, defaulting to 10s")
	}
	if config.DBWriteMaxRetries == 0 {
		config.DBWriteMaxRetries = 5
		log.Println("DB_WRITE_MAX_RETRIES not set, defaulting to 5")
	}
	if config.DBWriteInitDelay == 0 {
		config.DBWriteInitDelay = 500 * time.Millisecond
		log.Println("DB_WRITE_INIT_DELAY not set, defaulting to 500ms")
	}
	if config.OCRHTTPTimeout == 0 {
		config.OCRHTTPTimeout = 60 * time.Second
		log.Println("OCR_HTTP_TIMEOUT not set, defaulting to 60s")
	}
	if config.OCRPollInterval == 0 {
		config.OCRPollInterval = 2 * time.Second
		log.Println("OCR_POLL_INTERVAL not set, defaulting to 2s")
	}
	if config.OCRPollCeiling == 0 {
		config.OCRPollCeiling = 300 * time.Second
		log.Println("OCR_POLL_CEILING not set, defaulting to 300s")
	}
	if config.OCRMaxConcurrency == 0 {
		config.OCRMaxConcurrency = 5
		log.Println("OCR_MAX_CONCURRENCY not set, defaulting to 5")
	}
	if config.OCRBreakerFailures == 0 {
		config.OCRBreakerFailures = 5
		log.Println("OCR_BREAKER_FAILURES not set, defaulting to 5")
	}
	if config.OCRBreakerCooldown == 0 {
		config.OCRBreakerCooldown = 30 * time.Second
		log.Println("OCR_BREAKER_COOLDOWN not set, defaulting to 30s")
	}
	if config.LLMHTTPTimeout == 0 {
		config.LLMHTTPTimeout = 30 * time.Second
		log.Println("LLM_HTTP_TIMEOUT not set, defaulting to 30s")
	}
	if config.LLMMaxAttempts == 0 {
		config.LLMMaxAttempts = 3
		log.Println("LLM_MAX_ATTEMPTS not set, defaulting to 3")
	}
	if config.LLMModel == "" {
		config.LLMModel = "default"
	}
	if config.LLMMaxTokens == 0 {
		config.LLMMaxTokens = 2048
	}
	if config.LLMBreakerFailures == 0 {
		config.LLMBreakerFailures = 5
		log.Println("LLM_BREAKER_FAILURES not set, defaulting to 5")
	}
	if config.LLMBreakerCooldown == 0 {
		config.LLMBreakerCooldown = 30 * time.Second
		log.Println("LLM_BREAKER_COOLDOWN not set, defaulting to 30s")
	}
	if config.DocTypeCheckPromptPath == "" {
		config.DocTypeCheckPromptPath = "./prompts/doc_type_check.txt"
	}
	if config.ExtractPromptPath == "" {
		config.ExtractPromptPath = "./prompts/extract.txt"
	}
	if config.MaxUploadSize == 0 {
		config.MaxUploadSize = 50 * 1024 * 1024
		log.Println("MAX_UPLOAD_SIZE not set, defaulting to 50MiB")
	}
	if config.MaxPDFPages == 0 {
		config.MaxPDFPages = 3
		log.Println("MAX_PDF_PAGES not set, defaulting to 3")
	}
	if config.DefaultValidityDays == 0 {
		config.DefaultValidityDays = 40
		log.Println("DEFAULT_VALIDITY_DAYS not set, defaulting to 40")
	}
	if config.RunDeadline == 0 {
		config.RunDeadline = 120 * time.Second
		log.Println("RUN_DEADLINE not set, defaulting to 120s")
	}
	if config.RunsRetentionDays == 0 {
		config.RunsRetentionDays = 30
		log.Println("RUNS_RETENTION_DAYS not set, defaulting to 30")
	}
	if config.ArtifactDir == "" {
		config.ArtifactDir = "./artifacts"
	}
	if config.WorkDir == "" {
		config.WorkDir = "./work"
	}
	if config.ShutdownDrainWait == 0 {
		config.ShutdownDrainWait = 30 * time.Second
	}

	select {
	case <-ctx.Done():
		return Config{}, ctx.Err()
	default:
	}

	return
}
