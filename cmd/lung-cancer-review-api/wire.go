//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"github.com/stackvity/loan-verify/internal/api"
	"github.com/stackvity/loan-verify/internal/api/handlers"
	"github.com/stackvity/loan-verify/internal/config"
	"github.com/stackvity/loan-verify/internal/logging"
	"github.com/stackvity/loan-verify/internal/objectstore"
	"github.com/stackvity/loan-verify/internal/resilience"
	"github.com/stackvity/loan-verify/internal/retention"
	"github.com/stackvity/loan-verify/internal/store"
	"github.com/stackvity/loan-verify/internal/verify"
)

// configSet loads and exposes application configuration.
var configSet = wire.NewSet(
	provideConfigPath,
	config.LoadConfig,
)

// loggingSet builds the process-wide structured logger.
var loggingSet = wire.NewSet(
	logging.New,
)

// resilienceSet builds the circuit breaker registry shared by the OCR and
// LLM clients and surfaced on the health endpoint.
var resilienceSet = wire.NewSet(
	provideBreakerRegistry,
)

// objectStoreSet builds the S3-compatible source-document fetcher and binds
// it to the pipeline's narrow Fetcher interface via an adapter, since
// internal/verify never imports internal/objectstore directly.
var objectStoreSet = wire.NewSet(
	provideObjectStoreConfig,
	objectstore.New,
	newFetcherAdapter,
)

// ocrSet builds the OCR client, resolving its breaker from the registry
// through a combining provider rather than binding *resilience.Breaker
// directly (the registry holds two, so the bare type is ambiguous).
var ocrSet = wire.NewSet(
	provideOCRConfig,
	provideOCRClient,
)

// llmSet builds the LLM completion client, same rationale as ocrSet.
var llmSet = wire.NewSet(
	provideLLMConfig,
	provideLLMClient,
)

// storeSet builds the Postgres pool and the run-persistence writer.
var storeSet = wire.NewSet(
	providePoolConfig,
	store.NewPool,
	provideWriterConfig,
	store.NewWriter,
	wire.Bind(new(verify.Store), new(*store.Writer)),
)

// pipelineSet assembles the verification orchestrator.
var pipelineSet = wire.NewSet(
	providePipelineConfig,
	verify.New,
)

// retentionSet builds the periodic retention sweeper.
var retentionSet = wire.NewSet(
	provideRetentionDays,
	retention.NewSweeper,
)

// handlerSet builds every HTTP handler and the grouped Handler struct.
var handlerSet = wire.NewSet(
	provideVerifyHandler,
	handlers.NewHealthHandler,
	handlers.NewHandler,
)

// apiSet assembles the Gin engine.
var apiSet = wire.NewSet(
	provideConfigPtr,
	api.NewAPI,
)

// InitializeAPI wires the full dependency graph for the verification
// service. Run `wire` in this directory to regenerate wire_gen.go after
// changing any provider set above.
func InitializeAPI(ctx context.Context) (*api.API, func(), error) {
	panic(wire.Build(
		configSet,
		loggingSet,
		resilienceSet,
		objectStoreSet,
		ocrSet,
		llmSet,
		storeSet,
		pipelineSet,
		handlerSet,
		apiSet,
	))
}

// InitializeRetentionSweeper wires the standalone retention sweeper run by
// main's background ticker (spec §9).
func InitializeRetentionSweeper(ctx context.Context) (*retention.Sweeper, func(), error) {
	panic(wire.Build(
		configSet,
		loggingSet,
		storeSet,
		retentionSet,
	))
}
