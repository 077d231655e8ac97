package container

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"csvinsight/adapters/ingest"
	"csvinsight/adapters/llm"
	"csvinsight/adapters/sqlstore"
	"csvinsight/ai"
	"csvinsight/app"
	"csvinsight/internal"
	"csvinsight/internal/config"
	"csvinsight/internal/errors"
	"csvinsight/internal/metrics"
	"csvinsight/internal/migration"
	"csvinsight/internal/usage"
	"csvinsight/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure
	DB *sqlx.DB

	// Pipeline components
	Reader    ports.DatasetReader
	Engine    *metrics.Engine
	Prompts   *ai.PromptManager
	Generator ports.TextGenerator

	// Repositories (nil when history is disabled)
	AnalysisRepo ports.AnalysisRepository

	AnalysisService *app.AnalysisService
	UsageService    *usage.Service

	logger *internal.Logger
}

// New builds every component cfg asks for. The text generator is only
// created when a provider is configured, and history only when a DSN is.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
		logger: internal.DefaultLogger.WithComponent("Container"),
	}

	c.initPipeline()

	if cfg.LLM.Provider != "" {
		gen, err := llm.New(cfg.LLM)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create text generator")
		}
		c.Generator = gen
	}

	if cfg.History.Enabled() {
		if err := c.initHistory(ctx); err != nil {
			return nil, err
		}
	}

	c.AnalysisService = app.NewAnalysisService(c.Reader, c.Engine, c.Prompts, c.Generator, c.AnalysisRepo)
	c.UsageService = usage.NewService(c.AnalysisRepo)
	c.logger.Debug("initialized (provider=%q, history=%t, parallel=%t)",
		cfg.LLM.Provider, c.AnalysisRepo != nil, cfg.Metrics.Parallel)
	return c, nil
}

func (c *Container) initPipeline() {
	c.Reader = ingest.NewReader(c.Config.Metrics.ParseDates)

	var opts []metrics.Option
	if !c.Config.Metrics.Parallel {
		opts = append(opts, metrics.WithSequential())
	}
	c.Engine = metrics.NewEngine(opts...)
	c.Prompts = ai.NewPromptManager(c.Config.LLM.PromptsDir)
}

// initHistory opens the database, migrates it and creates the repository
func (c *Container) initHistory(ctx context.Context) error {
	db, err := sqlstore.Open(ctx, c.Config.History)
	if err != nil {
		return err
	}

	if err := migration.NewRunner(c.Config.History.Driver).Run(ctx, db); err != nil {
		db.Close()
		return errors.Wrap(err, "database migration failed")
	}

	c.DB = db
	c.AnalysisRepo = sqlstore.NewAnalysisRepository(db)
	return nil
}

// Shutdown releases the database connection
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
