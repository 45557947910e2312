// Package aiengine provides the public API for aiengine-go.
//
// This package provides a high-level interface for submitting
// domain-tagged tasks, retrieving explanations and feeding observed
// outcomes back into the engine's adaptation loop.
//
// Example:
//
//	engine, err := aiengine.New(aiengine.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	response, err := engine.Submit(ctx, aiengine.TaskRequest{
//	    Domain:   aiengine.DomainInfrastructure,
//	    TaskType: aiengine.TaskTypeAnomalyDetection,
//	    Input: map[string]any{
//	        "cpu_usage":    []float64{0.8, 0.85, 0.9},
//	        "memory_usage": []float64{0.7, 0.75, 0.8},
//	    },
//	})
package aiengine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aiengine/aiengine-go/internal/application/engine"
	"github.com/aiengine/aiengine-go/internal/application/feedback"
	"github.com/aiengine/aiengine-go/internal/domain/registry"
	"github.com/aiengine/aiengine-go/internal/infrastructure/encoder"
	"github.com/aiengine/aiengine-go/internal/infrastructure/explain"
	"github.com/aiengine/aiengine-go/internal/infrastructure/heads"
	"github.com/aiengine/aiengine-go/internal/infrastructure/meta"
	"github.com/aiengine/aiengine-go/internal/infrastructure/metrics"
	"github.com/aiengine/aiengine-go/internal/infrastructure/neural"
	"github.com/aiengine/aiengine-go/internal/infrastructure/store"
	"github.com/aiengine/aiengine-go/internal/shared"
)

// Re-export types for the public API.
type (
	DomainType  = shared.DomainType
	TaskType    = shared.TaskType
	Task        = shared.Task
	Prediction  = shared.Prediction
	Explanation = shared.Explanation
	Attribution = shared.Attribution

	DomainProfile = registry.DomainProfile
	FieldSpec     = registry.FieldSpec
)

// Re-export domain and task type constants.
const (
	DomainInfrastructure  = shared.DomainInfrastructure
	DomainFinance         = shared.DomainFinance
	DomainHealthcare      = shared.DomainHealthcare
	DomainNaturalLanguage = shared.DomainNaturalLanguage
	DomainComputerVision  = shared.DomainComputerVision
	DomainManufacturing   = shared.DomainManufacturing

	TaskTypeAnomalyDetection      = shared.TaskTypeAnomalyDetection
	TaskTypeClassification        = shared.TaskTypeClassification
	TaskTypeRegression            = shared.TaskTypeRegression
	TaskTypeTimeSeriesForecasting = shared.TaskTypeTimeSeriesForecasting
	TaskTypeSentimentAnalysis     = shared.TaskTypeSentimentAnalysis
	TaskTypeRiskAssessment        = shared.TaskTypeRiskAssessment
)

// StoreBackend selects the record store implementation.
type StoreBackend string

const (
	StoreMemory   StoreBackend = "memory"
	StoreSQLite   StoreBackend = "sqlite"
	StorePostgres StoreBackend = "postgres"
)

// Config configures an Engine.
type Config struct {
	// ModelVersion stamps every prediction so stored records can be traced
	// to the parameters that produced them.
	ModelVersion string

	// RegistryPath optionally loads domain profiles from a YAML file
	// instead of the built-in registry.
	RegistryPath string

	// Store selects the persistence backend. StoreMemory by default.
	Store StoreBackend

	// SQLitePath is the database path when Store is StoreSQLite.
	SQLitePath string

	// Postgres configures the connection when Store is StorePostgres.
	Postgres store.PostgresConfig

	// Retention bounds how long prediction, snapshot and explanation
	// records stay retrievable.
	Retention time.Duration

	// Timeouts bounds each pipeline stage.
	Timeouts engine.Timeouts

	// Feedback configures the continual learning loop.
	Feedback feedback.Config

	// PerturbationBudget caps per-feature re-scoring during perturbation
	// explanations.
	PerturbationBudget int

	// SparseThreshold is the labeled-sample count below which explanations
	// carry a sparse-data caveat.
	SparseThreshold uint64

	// Metrics receives operational observations. Defaults to a no-op sink.
	Metrics metrics.Sink

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// DefaultConfig returns a memory-backed configuration.
func DefaultConfig() Config {
	return Config{
		ModelVersion:       "aiengine-v1",
		Store:              StoreMemory,
		Retention:          24 * time.Hour,
		Timeouts:           engine.DefaultTimeouts(),
		Feedback:           feedback.DefaultConfig(),
		PerturbationBudget: 16,
		SparseThreshold:    10,
	}
}

// TaskRequest is one task submission. TaskID is assigned when empty.
type TaskRequest struct {
	TaskID   string            `json:"taskId,omitempty"`
	Domain   DomainType        `json:"domain"`
	TaskType TaskType          `json:"taskType"`
	Input    map[string]any    `json:"inputData"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// TaskResponse is the synchronous result of a submission. Explanation is
// nil when explanation generation failed; the prediction stands on its
// own in that case.
type TaskResponse struct {
	TaskID       string       `json:"taskId"`
	Prediction   *Prediction  `json:"prediction"`
	Explanation  *Explanation `json:"explanation,omitempty"`
	ModelVersion string       `json:"modelVersion"`
}

// OutcomeRequest reports an observed outcome for a processed task. A nil
// Label records usage statistics only.
type OutcomeRequest struct {
	TaskID string `json:"taskId"`
	Label  any    `json:"label,omitempty"`
}

// Engine is the top-level adaptive task processing engine. It is safe for
// concurrent use.
type Engine struct {
	registry *registry.Registry
	service  *engine.Service
	loop     *feedback.Loop
	store    store.RecordStore
	logger   *zap.Logger
	config   Config
}

// New builds an engine from the configuration. Configuration problems,
// including profiles that reference unregistered heads or explanation
// strategies, fail here rather than at task time.
func New(config Config) (*Engine, error) {
	if config.ModelVersion == "" {
		config.ModelVersion = DefaultConfig().ModelVersion
	}
	if config.Retention <= 0 {
		config.Retention = DefaultConfig().Retention
	}
	if config.PerturbationBudget <= 0 {
		config.PerturbationBudget = DefaultConfig().PerturbationBudget
	}
	if config.SparseThreshold == 0 {
		config.SparseThreshold = DefaultConfig().SparseThreshold
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	reg, err := buildRegistry(config)
	if err != nil {
		return nil, err
	}

	trunk := neural.NewTrunk(neural.DefaultTrunkConfig())
	headRegistry := heads.NewRegistry()
	explainer := explain.NewEngine(config.PerturbationBudget, config.SparseThreshold)

	// Fail fast on dangling head or strategy references.
	if err := reg.Validate(headRegistry.IDs(), explainer.StrategyIDs()); err != nil {
		return nil, err
	}

	recordStore, err := buildStore(config)
	if err != nil {
		return nil, err
	}

	controller := meta.NewController(trunk.Dim(), headRegistry.List())
	core := neural.NewCore(trunk, headRegistry, controller, config.ModelVersion)

	loop := feedback.NewLoop(recordStore, headRegistry.List(), config.Feedback, logger)
	for _, domain := range reg.Domains() {
		if err := loop.Seed(context.Background(), domain); err != nil {
			logger.Warn("failed to seed adaptation state",
				zap.String("domain", string(domain)), zap.Error(err))
		}
	}

	service := engine.NewService(reg, encoder.New(trunk.Dim()), core, explainer,
		loop, recordStore, config.Metrics, logger, config.Timeouts)

	return &Engine{
		registry: reg,
		service:  service,
		loop:     loop,
		store:    recordStore,
		logger:   logger,
		config:   config,
	}, nil
}

func buildRegistry(config Config) (*registry.Registry, error) {
	if config.RegistryPath != "" {
		return registry.LoadFromYAML(config.RegistryPath)
	}
	return registry.DefaultRegistry(), nil
}

func buildStore(config Config) (store.RecordStore, error) {
	switch config.Store {
	case StoreMemory, "":
		return store.NewMemoryStore(config.Retention), nil
	case StoreSQLite:
		return store.NewSQLiteStore(store.SQLiteConfig{
			DatabasePath: config.SQLitePath,
			Retention:    config.Retention,
		})
	case StorePostgres:
		postgres := config.Postgres
		postgres.Retention = config.Retention
		return store.NewPostgresStore(context.Background(), postgres)
	default:
		return nil, shared.NewConfigurationError(
			fmt.Sprintf("unknown store backend: %s", config.Store), nil)
	}
}

// Submit processes one task through the full pipeline and returns its
// prediction with an explanation when one could be produced.
func (e *Engine) Submit(ctx context.Context, request TaskRequest) (*TaskResponse, error) {
	taskID := request.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}

	task := &shared.Task{
		ID:        taskID,
		Domain:    request.Domain,
		Type:      request.TaskType,
		Input:     request.Input,
		Metadata:  request.Metadata,
		CreatedAt: time.Now().UTC(),
	}

	result, err := e.service.Process(ctx, task)
	if err != nil {
		return nil, err
	}

	return &TaskResponse{
		TaskID:       taskID,
		Prediction:   result.Prediction,
		Explanation:  result.Explanation,
		ModelVersion: result.Prediction.ModelVersion,
	}, nil
}

// Explain retrieves the stored explanation for a processed task. Returns
// shared.ErrRecordNotFound (wrapped) for unknown tasks and for tasks whose
// retention window has elapsed.
func (e *Engine) Explain(ctx context.Context, taskID string) (*Explanation, error) {
	return e.service.Explanation(ctx, taskID)
}

// Prediction retrieves the stored prediction for a processed task.
func (e *Engine) Prediction(ctx context.Context, taskID string) (*Prediction, error) {
	return e.service.Prediction(ctx, taskID)
}

// RecordOutcome reports an observed outcome asynchronously. It returns
// once the outcome is queued; the adaptation state update happens in the
// background and never blocks task processing.
func (e *Engine) RecordOutcome(request OutcomeRequest) error {
	if request.TaskID == "" {
		return shared.NewInputValidationError("taskId", "task ID is required")
	}
	return e.loop.Enqueue(feedback.Feedback{TaskID: request.TaskID, Label: request.Label})
}

// RecordOutcomeSync reports an observed outcome and waits for the new
// adaptation state version. Used by callers that need read-your-write
// semantics, such as the CLI.
func (e *Engine) RecordOutcomeSync(ctx context.Context, request OutcomeRequest) (uint64, error) {
	prediction, err := e.store.GetPrediction(ctx, request.TaskID)
	if err != nil {
		return 0, err
	}
	return e.loop.RecordOutcome(ctx, prediction, request.Label)
}

// AdaptationVersion returns the domain's current adaptation state version
// and its sample counts.
func (e *Engine) AdaptationVersion(domain DomainType) (version uint64, samples uint64, labeled uint64) {
	state := e.loop.State(domain)
	return state.Version, state.SampleCount, state.LabeledCount
}

// Profiles lists the registered domain profiles in stable order.
func (e *Engine) Profiles() []*DomainProfile {
	return e.registry.Profiles()
}

// Close drains pending feedback and releases store resources.
func (e *Engine) Close() error {
	e.loop.Close()
	return e.store.Close()
}
