package commands

import (
	"context"
	"fmt"

	"github.com/wonny/lunaris/internal/contracts"
	"github.com/wonny/lunaris/internal/ephemeris"
	"github.com/wonny/lunaris/internal/pipeline"
	"github.com/wonny/lunaris/internal/storage"
	"github.com/wonny/lunaris/internal/studyconfig"
	"github.com/wonny/lunaris/pkg/config"
	"github.com/wonny/lunaris/pkg/database"
	"github.com/wonny/lunaris/pkg/httputil"
	"github.com/wonny/lunaris/pkg/logger"
	"github.com/wonny/lunaris/pkg/redis"
)

// app bundles everything a command needs
type app struct {
	cfg          *config.Config
	log          *logger.Logger
	study        *studyconfig.Config
	orchestrator *pipeline.Orchestrator
	repo         *storage.Repository // nil without DATABASE_URL

	closers []func()
}

// Close releases connections in reverse order
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// bootstrap loads config, study and oracle, then connects the optional stores
func bootstrap(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	a := &app{cfg: cfg, log: log}

	// 3. Load study
	path := studyFile
	if path == "" {
		path = cfg.StudyConfigPath
	}
	if path == "" {
		a.study = studyconfig.Default()
	} else {
		study, _, err := studyconfig.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load study: %w", err)
		}
		a.study = study
	}

	// 4. Oracle
	oracle := newOracle(cfg, log)

	opts := make([]pipeline.Option, 0, 3)

	// 5. Database (optional)
	if cfg.HasDatabase() {
		db, err := database.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)

		repo := storage.NewRepository(db.Pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		a.repo = repo
		opts = append(opts, pipeline.WithTimelineRepository(repo), pipeline.WithPriceRepository(repo))
		log.Info("Connected to database")
	}

	// 6. Redis (optional)
	rc, err := redis.New(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if rc.Enabled() {
		a.closers = append(a.closers, func() { _ = rc.Close() })
		opts = append(opts, pipeline.WithCache(storage.NewTimelineCache(rc, redis.TTLLong)))
		log.Info("Timeline cache enabled")
	}

	// 7. Orchestrator
	orch, err := pipeline.NewOrchestrator(a.study, oracle, log, opts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}
	a.orchestrator = orch

	log.WithFields(map[string]interface{}{
		"study":  a.study.Meta.StudyID,
		"hash":   orch.StudyHash(),
		"key":    orch.TimelineKey(),
		"oracle": cfg.Oracle.Source,
	}).Debug("Bootstrap completed")

	return a, nil
}

func newOracle(cfg *config.Config, log *logger.Logger) contracts.AngleOracle {
	if cfg.Oracle.Source == "remote" {
		return ephemeris.NewRemote(cfg.Oracle.URL, httputil.New(cfg, log))
	}
	return ephemeris.Elongation{}
}
