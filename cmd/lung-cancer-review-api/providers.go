package main

import (
	"go.uber.org/zap"

	"github.com/stackvity/loan-verify/internal/api/handlers"
	"github.com/stackvity/loan-verify/internal/config"
	"github.com/stackvity/loan-verify/internal/llmclient"
	"github.com/stackvity/loan-verify/internal/objectstore"
	"github.com/stackvity/loan-verify/internal/ocrclient"
	"github.com/stackvity/loan-verify/internal/resilience"
	"github.com/stackvity/loan-verify/internal/store"
	"github.com/stackvity/loan-verify/internal/verify"
)

// provideConfigPath is the directory LoadConfig searches for a .env file.
func provideConfigPath() string {
	return "."
}

// provideConfigPtr gives handlers that expect *config.Config (api.NewAPI) a
// pointer onto the value LoadConfig returns.
func provideConfigPtr(cfg config.Config) *config.Config {
	return &cfg
}

func provideObjectStoreConfig(cfg config.Config) objectstore.Config {
	return objectstore.Config{
		Endpoint:        cfg.ObjectStoreEndpoint,
		Region:          cfg.ObjectStoreRegion,
		Bucket:          cfg.ObjectStoreBucket,
		AccessKeyID:     cfg.ObjectStoreAccessKeyID,
		SecretAccessKey: cfg.ObjectStoreSecretAccessKey,
		UsePathStyle:    cfg.ObjectStoreUsePathStyle,
		SkipTLSVerify:   cfg.ObjectStoreSkipTLSVerify,
	}
}

func provideOCRConfig(cfg config.Config) ocrclient.Config {
	return ocrclient.Config{
		BaseURL:        cfg.OCRBaseURL,
		HTTPTimeout:    cfg.OCRHTTPTimeout,
		PollInterval:   cfg.OCRPollInterval,
		PollCeiling:    cfg.OCRPollCeiling,
		MaxConcurrency: cfg.OCRMaxConcurrency,
	}
}

func provideLLMConfig(cfg config.Config) llmclient.Config {
	return llmclient.Config{
		BaseURL:     cfg.LLMBaseURL,
		HTTPTimeout: cfg.LLMHTTPTimeout,
		MaxAttempts: cfg.LLMMaxAttempts,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
	}
}

func provideOCRBreakerConfig(cfg config.Config) resilience.BreakerConfig {
	return resilience.BreakerConfig{
		Name:                "ocr",
		ConsecutiveFailures: cfg.OCRBreakerFailures,
		Cooldown:            cfg.OCRBreakerCooldown,
	}
}

func provideLLMBreakerConfig(cfg config.Config) resilience.BreakerConfig {
	return resilience.BreakerConfig{
		Name:                "llm",
		ConsecutiveFailures: cfg.LLMBreakerFailures,
		Cooldown:            cfg.LLMBreakerCooldown,
	}
}

// provideBreakerRegistry builds both named breakers directly: wire cannot
// disambiguate two resilience.BreakerConfig values coming from different
// providers, so the registry is assembled in one step instead.
func provideBreakerRegistry(cfg config.Config, logger *zap.Logger) *resilience.Registry {
	return resilience.NewRegistry(provideOCRBreakerConfig(cfg), provideLLMBreakerConfig(cfg), logger)
}

func providePoolConfig(cfg config.Config) store.PoolConfig {
	return store.PoolConfig{
		Host:           cfg.DBHost,
		Port:           cfg.DBPort,
		User:           cfg.DBUser,
		Password:       cfg.DBPassword,
		Name:           cfg.DBName,
		SslMode:        cfg.DBSslMode,
		MinConns:       int32(cfg.DBMinConns),
		MaxConns:       int32(cfg.DBMaxConns),
		AcquireTimeout: cfg.DBAcquireTimeout,
	}
}

func provideWriterConfig(cfg config.Config) store.WriterConfig {
	return store.WriterConfig{
		MaxRetries:   cfg.DBWriteMaxRetries,
		InitialDelay: cfg.DBWriteInitDelay,
		Multiplier:   2.0,
	}
}

func providePipelineConfig(cfg config.Config) verify.Config {
	return verify.Config{
		WorkDir:                cfg.WorkDir,
		MaxPDFPages:            cfg.MaxPDFPages,
		RunDeadline:            cfg.RunDeadline,
		DefaultValidityDays:    cfg.DefaultValidityDays,
		DocTypeCheckPromptPath: cfg.DocTypeCheckPromptPath,
		ExtractPromptPath:      cfg.ExtractPromptPath,
		ArtifactWritingEnabled: cfg.ArtifactWritingOn,
		ArtifactDir:            cfg.ArtifactDir,
	}
}

// provideOCRClient resolves the OCR breaker from the registry directly,
// since the registry holds two *resilience.Breaker values and the bare
// type is ambiguous to wire.
func provideOCRClient(cfg ocrclient.Config, registry *resilience.Registry, logger *zap.Logger) *ocrclient.Client {
	return ocrclient.New(cfg, registry.OCR, logger)
}

// provideLLMClient mirrors provideOCRClient for the LLM breaker.
func provideLLMClient(cfg llmclient.Config, registry *resilience.Registry, logger *zap.Logger) *llmclient.Client {
	return llmclient.New(cfg, registry.LLM, logger)
}

func provideRetentionDays(cfg config.Config) int {
	return cfg.RunsRetentionDays
}

// provideVerifyHandler reads the upload staging directory and size cap
// straight off cfg instead of injecting bare string/int64 values through
// wire, which would collide with the config-path string provider.
func provideVerifyHandler(pipeline *verify.Pipeline, cfg config.Config, logger *zap.Logger) *handlers.VerifyHandler {
	return handlers.NewVerifyHandler(pipeline, cfg.WorkDir, cfg.MaxUploadSize, logger)
}
