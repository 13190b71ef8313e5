package cli

import (
	"context"
	"errors"
	"fmt"

	"spendrag/internal/budget"
	"spendrag/internal/cache"
	"spendrag/internal/config"
	"spendrag/internal/core"
	"spendrag/internal/detect"
	apphttp "spendrag/internal/http"
	"spendrag/internal/llm"
	"spendrag/internal/log"
	"spendrag/internal/query"
	"spendrag/internal/reports"
	"spendrag/internal/retrieval"
	"spendrag/internal/router"
	"spendrag/internal/storage"
)

// App holds every collaborator built from one Config. Optional pieces are
// nil when their configuration is missing.
type App struct {
	Config *config.Config
	Logger *log.Logger

	Repo      *storage.SQLiteRepository
	LLM       llm.Clients
	Reports   router.ReportSource
	Cache     *cache.QueryCache
	Answerer  *router.Answerer
	Detectors *detect.Runner
	Budgets   *budget.Checker
}

// NewApp opens the ledger and wires the answering pipeline around it.
// Missing model keys or report credentials degrade the matching strategy
// to Unavailable instead of failing startup.
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Discard()
	}
	repo, err := InitSQLite(logger, cfg.SQLiteDBPath)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, Logger: logger, Repo: repo}

	app.LLM, err = llm.New(ctx, llm.Config{
		Provider:            cfg.LLMProvider,
		GeminiAPIKey:        cfg.GeminiAPIKey,
		GeminiModel:         cfg.GeminiModel,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		AnthropicAPIKey:     cfg.AnthropicAPIKey,
		AnthropicModel:      cfg.AnthropicModel,
	}, logger)
	switch {
	case errors.Is(err, core.ErrCapabilityUnavailable):
		logger.Warn("Language model unavailable, answers will be deterministic", log.FieldError, err)
		app.LLM = llm.Clients{}
	case err != nil:
		repo.Close()
		return nil, fmt.Errorf("llm clients: %w", err)
	}

	app.Reports, err = newReportSource(ctx, cfg, repo, logger)
	if err != nil {
		logger.Warn("Report source unavailable", log.FieldError, err, "source", cfg.ReportSource)
	}

	if cfg.CacheEnabled {
		var store cache.Store = repo.CacheStore()
		if cfg.CacheBackend == "memory" {
			store = cache.NewMemoryStore(cfg.CacheMemorySize)
		}
		app.Cache = cache.New(store)
	}

	rt := router.New(repo, app.LLM.RouterEmbedder(),
		retrieval.NewFileSource(cfg.IndexPath, cfg.IndexMetaPath, logger),
		app.Reports,
		router.Config{TopK: cfg.RetrievalTopK, EvidenceLimit: cfg.EvidenceLimit},
		logger)

	opts := []router.AnswererOption{
		router.WithMaxTokens(cfg.AnswerMaxTokens),
		router.WithLogger(logger),
	}
	if app.LLM.Generator != nil {
		opts = append(opts, router.WithGenerator(app.LLM.Generator))
	}
	if app.Cache != nil {
		opts = append(opts, router.WithCache(app.Cache, cfg.CacheMaxAge))
	}
	app.Answerer = router.NewAnswerer(query.NewInterpreter(), rt, opts...)

	app.Detectors = detect.NewRunner(repo,
		detect.WithMinOccurrences(cfg.SubscriptionMinOccurrences),
		detect.WithLogger(logger))
	app.Budgets = budget.NewChecker(repo, logger)

	logger.Info("Application wired",
		log.FieldOperation, log.OpStartup,
		"llm_provider", cfg.LLMProvider,
		"generator", app.LLM.Generator != nil,
		"embedder", app.LLM.Embedder != nil,
		"cache", cfg.CacheEnabled,
		"report_source", cfg.ReportSource)
	return app, nil
}

// newReportSource returns the SQLite report tables or the spreadsheet. A
// sheets source that cannot be built leaves reports unavailable.
func newReportSource(ctx context.Context, cfg *config.Config, repo *storage.SQLiteRepository, logger *log.Logger) (router.ReportSource, error) {
	if cfg.ReportSource != "sheets" {
		return repo, nil
	}
	src, err := reports.NewSheetsSource(ctx, SheetsConfig(cfg), logger)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// SheetsConfig maps the Google settings onto the report source config.
func SheetsConfig(cfg *config.Config) reports.SheetsConfig {
	return reports.SheetsConfig{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		OAuthClientJSON:    cfg.GoogleOAuthClientJSON,
		OAuthClientFile:    cfg.GoogleOAuthClientFile,
		OAuthTokenFile:     cfg.GoogleOAuthTokenFile,
	}
}

// DetectConfig is the detector defaults taken from configuration.
func (a *App) DetectConfig() detect.RunConfig {
	return detect.RunConfig{
		MinOccurrences: a.Config.SubscriptionMinOccurrences,
		UpcomingDays:   a.Config.UpcomingWindowDays,
		TrailingDays:   a.Config.AnomalyTrailingDays,
	}
}

// HTTPDeps exposes the collaborators to the API server.
func (a *App) HTTPDeps() apphttp.Deps {
	deps := apphttp.Deps{
		Answerer:      a.Answerer,
		Subscriptions: a.Detectors.Recurring(),
		Anomalies:     a.Detectors.Anomaly(),
		Reports:       a.Reports,
		Budgets:       a.Budgets,
		Health:        a.Repo,
		Detect:        a.DetectConfig(),
	}
	if a.Cache != nil {
		deps.Cache = a.Cache
	}
	return deps
}

// Close releases the ledger.
func (a *App) Close() error {
	return a.Repo.Close()
}
