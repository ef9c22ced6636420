package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/osinto/casefile/internal/agent"
	"github.com/osinto/casefile/internal/api"
	"github.com/osinto/casefile/internal/config"
	"github.com/osinto/casefile/internal/enrich"
	"github.com/osinto/casefile/internal/entity"
	"github.com/osinto/casefile/internal/extract"
	"github.com/osinto/casefile/internal/ftm"
	"github.com/osinto/casefile/internal/graph"
	"github.com/osinto/casefile/internal/ingest"
	"github.com/osinto/casefile/internal/investigation"
	"github.com/osinto/casefile/internal/lifecycle"
	"github.com/osinto/casefile/internal/logging"
	"github.com/osinto/casefile/internal/mcpserver"
	"github.com/osinto/casefile/internal/metrics"
	"github.com/osinto/casefile/internal/notebook"
	"github.com/osinto/casefile/internal/relstore"
	"github.com/osinto/casefile/internal/storage"
	"github.com/osinto/casefile/internal/tracing"
	"github.com/osinto/casefile/internal/workflow"
)

var listenAddr string

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the casefile backend",
	Long: `Start the casefile backend: the HTTP API, the extraction workflow
engine and the clients for FalkorDB, the object store and PostgreSQL.`,
	Run: runServer,
}

func init() {
	serverCmd.Flags().StringVar(&listenAddr, "listen-addr", "",
		"Address the API server binds to (host:port). Overrides config and LISTEN_ADDR.")
}

func runServer(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configPath)
	HandleError(err, "Configuration error")

	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}

	HandleError(logging.Initialize(cfg.LogLevel), "Failed to setup logging")
	logger := logging.GetLogger("server")

	logger.Info("Starting casefile v%s", Version)
	logger.Debug("Configuration loaded: ListenAddr=%s", cfg.ListenAddr)

	manager := lifecycle.NewManager()

	if cfg.Tracing.Enabled {
		provider, err := tracing.NewProvider(tracing.Config{
			Enabled:     true,
			Endpoint:    cfg.Tracing.Endpoint,
			TLSCAPath:   cfg.Tracing.TLSCAPath,
			TLSInsecure: cfg.Tracing.TLSInsecure,
		})
		if err != nil {
			logger.Warn("Failed to initialize tracing (continuing without tracing): %v", err)
		} else {
			HandleError(manager.Register(provider), "Tracing registration error")
		}
	}

	// Graph store: one FalkorDB graph per investigation plus the meta graph.
	graphCfg := graph.DefaultConfig()
	graphCfg.Host = cfg.Graph.Host
	graphCfg.Port = cfg.Graph.Port
	graphCfg.Password = cfg.Graph.Password
	graphStore := graph.NewStore(graphCfg)
	HandleError(manager.Register(graphStore), "Graph store registration error")
	graphs := graph.QuerierSource{Store: graphStore}

	// Object store: per-investigation document buckets.
	objects := storage.NewObjectStore(storage.Config{
		EndpointURL:  cfg.ObjectStore.Endpoint,
		AccessKey:    cfg.ObjectStore.AccessKey,
		SecretKey:    cfg.ObjectStore.SecretKey,
		Region:       cfg.ObjectStore.Region,
		BucketPrefix: cfg.ObjectStore.BucketPrefix,
		Secure:       cfg.ObjectStore.UseTLS,
	})
	HandleError(manager.Register(objects), "Object store registration error")

	// Relational store: notebook rows and workflow step bookkeeping.
	rel, err := relstore.NewStore(relstore.Config{DatabaseURL: cfg.Database.URL})
	HandleError(err, "Relational store error")
	HandleError(manager.Register(rel), "Relational store registration error")

	// Schema catalog: compiled-in fallback, optionally replaced by a
	// watched YAML catalog file.
	catalog := ftm.BuiltinCatalog()
	if cfg.Schema.CatalogPath != "" {
		watcher, err := ftm.NewCatalogWatcher(cfg.Schema.CatalogPath, catalog, logging.GetLogger("ftm"))
		HandleError(err, "Schema catalog watcher error")
		HandleError(manager.Register(watcher), "Schema catalog watcher registration error")
	}

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	entities := entity.NewService(graphs, catalog)
	investigations := investigation.NewService(graphStore, objects)
	ingestor := ingest.NewService(graphs, entities, catalog, m)
	notebooks := notebook.NewService(rel.DB())
	enricher := enrich.NewService(enrich.NewClient(cfg.Yente), graphs)

	extractor := extract.NewExtractor(extract.NewAPICompleter(cfg.LLM.APIKey), cfg.LLM.Model, cfg.LLM.MaxTokens)
	engine := workflow.NewEngine(workflow.Deps{
		Store:     workflow.NewStore(rel.DB()),
		Objects:   objects,
		Extractor: extractor,
		Entities:  entities,
		Ingestor:  ingestor,
		Graphs:    graphs,
		Catalog:   catalog,
		Metrics:   m,
	})
	HandleError(manager.Register(engine, graphStore, objects, rel), "Workflow engine registration error")

	var chat api.ChatAgent
	if cfg.LLM.APIKey != "" {
		provider := agent.NewAnthropicProvider(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.MaxTokens)
		chat = agent.New(provider, entities, graphStore)
	} else {
		logger.Warn("ANTHROPIC_API_KEY not set - chat endpoint disabled")
	}

	mcpComponent := mcpserver.New(Version, investigations, entities, graphStore)

	apiServer := api.NewServer(api.Config{
		ListenAddr:  cfg.ListenAddr,
		CORSOrigins: cfg.CORSOrigins,
	}, api.Deps{
		Investigations: investigations,
		Entities:       entities,
		Ingestor:       ingestor,
		Objects:        objects,
		Engine:         engine,
		Graphs:         graphStore,
		Notebooks:      notebooks,
		Catalog:        catalog,
		Enricher:       enricher,
		Chat:           chat,
		Health:         graphStore,
		Metrics:        m,
		Registry:       registry,
		MCP:            mcpComponent.MCPServer(),
	})
	HandleError(manager.Register(apiServer, graphStore, rel, engine), "API server registration error")

	ctx, cancel := context.WithCancel(context.Background())
	if err := manager.Start(ctx); err != nil {
		cancel()
		HandleError(err, "Startup error")
	}

	logger.Info("Application started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutdown signal received, gracefully shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := manager.Stop(shutdownCtx); err != nil {
		logger.Error("Error during shutdown: %v", err)
	}

	logger.Info("Shutdown complete")
}
