package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	justcopy "github.com/anupsingh-ai/justcopy-ai-ide"
	"github.com/anupsingh-ai/justcopy-ai-ide/generate"
	"github.com/anupsingh-ai/justcopy-ai-ide/index"
	"github.com/anupsingh-ai/justcopy-ai-ide/workspace"
)

// app owns the long-lived handles shared by every request.
type app struct {
	store    *index.Store
	projects *generate.ProjectCache
	watcher  *generate.Watcher
	server   *Server
}

// newApp builds the embedder, context store, inference gateway, caches and
// engine once from cfg.
func newApp(cfg *justcopy.Config) (*app, error) {
	embedder, err := index.NewEmbedder(index.EmbedderConfig{
		Provider:   justcopy.ResolveEmbeddingProvider(cfg),
		BaseURL:    justcopy.ResolveEmbeddingBaseURL(cfg),
		APIKey:     justcopy.ResolveEmbeddingAPIKey(cfg),
		Model:      justcopy.ResolveEmbeddingModel(cfg),
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, err
	}
	if embedder == nil {
		slog.Warn("embedding disabled, retrieval will be degraded")
	}

	store, err := index.Open(justcopy.ResolveVectorDBPath(cfg), embedder)
	if err != nil {
		return nil, fmt.Errorf("open context store: %w", err)
	}

	gateway := generate.NewGateway(
		justcopy.ResolveGenerationBaseURL(cfg),
		justcopy.ResolveGenerationAPIKey(cfg),
		justcopy.ResolveGenerationModel(cfg),
	)
	assembler := generate.NewAssembler(
		justcopy.PromptPath("agent_prompt.md"),
		justcopy.PromptPath("code_prompt.md"),
	)

	engineCfg := generate.EngineConfigFrom(cfg)
	if err := os.MkdirAll(engineCfg.ProjectsRoot, 0755); err != nil {
		store.Close()
		return nil, fmt.Errorf("create projects root: %w", err)
	}

	projects := generate.NewProjectCache(cfg.Retrieval.StructureTTL(), cfg.Retrieval.StructureMaxEntries, cfg.Retrieval.Ignore)
	watcher, err := generate.NewWatcher(projects)
	if err != nil {
		slog.Warn("file watcher unavailable, relying on cache TTL", "error", err)
	} else if err := watcher.Watch(engineCfg.ProjectsRoot); err != nil {
		slog.Warn("failed to watch projects root", "path", engineCfg.ProjectsRoot, "error", err)
	}

	engine := generate.NewEngine(engineCfg, store, gateway, assembler, projects)

	srv := NewServer(Options{
		Engine:         engine,
		Workspace:      workspace.New(engineCfg.ProjectsRoot),
		StaticDir:      cfg.Server.StaticDir,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Config:         cfg,
		Health: map[string]HealthCheck{
			ServiceEmbedding: func(ctx context.Context) error {
				if embedder == nil {
					return errors.New("embedding disabled")
				}
				_, err := embedder.Embed(ctx, []string{"health"})
				return err
			},
			ServiceVectorDB:  store.Ping,
			ServiceInference: gateway.Health,
		},
	})

	slog.Info("initialized",
		"documents", store.Len(),
		"embedding_model", store.Model(),
		"generation_model", gateway.Model(),
	)

	return &app{store: store, projects: projects, watcher: watcher, server: srv}, nil
}

// Close releases the watcher, cache and store.
func (a *app) Close() {
	if a.watcher != nil {
		a.watcher.Close()
	}
	a.projects.Close()
	if err := a.store.Close(); err != nil {
		slog.Error("failed to close context store", "error", err)
	}
}
