// Package bootstrap assembles the generation pipeline from configuration. The
// api, the worker and novelctl all build on it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"novelforge/internal/adapter/repo"
	"novelforge/internal/config"
	"novelforge/internal/domain"
	"novelforge/internal/generation"
	"novelforge/internal/infra"
	"novelforge/internal/infra/credentials"
	"novelforge/internal/providers/llm"
	"novelforge/internal/storage"
)

// Store is a novel repository that can report its health.
type Store interface {
	domain.NovelRepository
	Ping(ctx context.Context) error
}

// Deps holds every long-lived collaborator of a process.
type Deps struct {
	Store        Store
	Runner       *infra.SQLRunner
	Generator    llm.Generator
	Profile      config.Profile
	Service      *generation.Service
	Executor     *generation.Executor
	Orchestrator *generation.Orchestrator
	Reporter     *generation.Reporter
	Exporter     *generation.StorageExporter
	// StaticDir is set when manuscripts are exported to the local filesystem.
	StaticDir string

	closers []func()
}

// Close releases the store connections.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// Build opens the configured store and wires the pipeline on top of it.
func Build(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (*Deps, error) {
	d := &Deps{}
	if err := d.openStore(ctx, cfg, logger); err != nil {
		return nil, err
	}

	profile, err := config.LoadProfile(cfg.GenerationProfilePath)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Profile = profile

	gen, err := d.newGenerator(ctx, cfg, logger)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Generator = gen

	var opts []generation.OrchestratorOption
	if err := d.openExporter(cfg); err != nil {
		d.Close()
		return nil, err
	}
	if d.Exporter != nil {
		opts = append(opts, generation.WithExporter(d.Exporter))
	}

	d.Service = generation.NewService(d.Store, logger)
	d.Executor = generation.NewExecutor(d.Store, gen, profile, logger)
	d.Orchestrator = generation.NewOrchestrator(d.Store, d.Executor, profile.Retry, logger, opts...)
	d.Reporter = generation.NewReporter(d.Store)

	logger.Info().
		Str("store", cfg.StoreDriver).
		Str("generator", gen.Name()).
		Str("export", cfg.ExportBackend).
		Bool("dual_draft", profile.Chapter.DualDraft).
		Msg("bootstrap: pipeline ready")
	return d, nil
}

func (d *Deps) openStore(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) error {
	switch cfg.StoreDriver {
	case infra.StoreDriverSQLite:
		store, err := repo.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("bootstrap: open sqlite: %w", err)
		}
		d.Store = store
		d.closers = append(d.closers, func() { _ = store.Close() })
		return nil
	default:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
		d.closers = append(d.closers, pool.Close)
		d.Runner = infra.NewSQLRunner(pool, logger)
		if err := infra.Migrate(ctx, d.Runner); err != nil {
			pool.Close()
			return err
		}
		d.Store = pgStore{NovelRepositoryPG: repo.NewNovelRepository(d.Runner), ping: pool.Ping}
		return nil
	}
}

type pgStore struct {
	*repo.NovelRepositoryPG
	ping func(ctx context.Context) error
}

func (s pgStore) Ping(ctx context.Context) error { return s.ping(ctx) }

// newGenerator prefers a key from the environment, then one stored with
// llmkey. Without a key the pipeline runs on synthetic text.
func (d *Deps) newGenerator(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (llm.Generator, error) {
	if cfg.LLMProvider == infra.LLMProviderSynthetic {
		return llm.NewSynthetic(), nil
	}
	apiKey := strings.TrimSpace(cfg.OpenAIAPIKey)
	if apiKey == "" && d.Runner != nil {
		stored, err := credentials.NewStore(d.Runner).OpenAIAPIKey(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("bootstrap: failed to load openai api key from store")
		}
		apiKey = stored
	}
	if apiKey == "" {
		logger.Warn().Msg("bootstrap: openai api key missing, using synthetic generation")
		return llm.NewSynthetic(), nil
	}
	gen, err := llm.NewOpenAIGenerator(llm.OpenAIOptions{
		APIKey:       apiKey,
		Model:        cfg.OpenAIModel,
		BaseURL:      cfg.OpenAIBaseURL,
		Organization: cfg.OpenAIOrg,
		HTTPClient:   &http.Client{Timeout: cfg.LLMTimeout},
		OnWarning: func(reason, detail string) {
			logger.Warn().Str("reason", reason).Str("detail", detail).Msg("bootstrap: openai option adjusted")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: configure openai: %w", err)
	}
	return gen, nil
}

func (d *Deps) openExporter(cfg *infra.Config) error {
	var store storage.ObjectStore
	switch cfg.ExportBackend {
	case infra.ExportBackendNone:
		return nil
	case infra.ExportBackendMinIO:
		s, err := storage.NewMinIOStore(storage.MinIOOptions{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
		if err != nil {
			return fmt.Errorf("bootstrap: configure minio: %w", err)
		}
		store = s
	case infra.ExportBackendFile:
		path := cfg.StoragePath
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		s, err := storage.NewFileStore(path, cfg.StorageBaseURL)
		if err != nil {
			return fmt.Errorf("bootstrap: configure storage: %w", err)
		}
		store = s
		d.StaticDir = s.BasePath()
	default:
		return errors.New("bootstrap: unknown export backend " + cfg.ExportBackend)
	}
	d.Exporter = generation.NewStorageExporter(store)
	return nil
}
