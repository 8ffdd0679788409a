// Package main is the entry point for the Sadhana service.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MikeSquared-Agency/Sadhana/internal/catalog"
	"github.com/MikeSquared-Agency/Sadhana/internal/config"
	"github.com/MikeSquared-Agency/Sadhana/internal/delivery"
	"github.com/MikeSquared-Agency/Sadhana/internal/embeddings"
	"github.com/MikeSquared-Agency/Sadhana/internal/encryption"
	"github.com/MikeSquared-Agency/Sadhana/internal/hermes"
	"github.com/MikeSquared-Agency/Sadhana/internal/recommend"
	"github.com/MikeSquared-Agency/Sadhana/internal/report"
	"github.com/MikeSquared-Agency/Sadhana/internal/semantic"
	"github.com/MikeSquared-Agency/Sadhana/internal/server"
	"github.com/MikeSquared-Agency/Sadhana/internal/similarity"
	"github.com/MikeSquared-Agency/Sadhana/internal/store"
)

func main() {
	// A missing .env is fine; real deployments use the environment.
	_ = godotenv.Load()

	if len(os.Args) > 1 {
		os.Exit(runCommand(os.Args[1]))
	}

	// Logger
	logLevel := slog.LevelInfo
	if os.Getenv("SADHANA_LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	semCfg := semantic.ConfigFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	asanaStore := store.NewAsanaStore(db)
	quoteStore := store.NewQuoteStore(db)
	benefitStore := store.NewBenefitEmbeddingStore(db)

	// Catalog
	cat, err := catalog.Load(ctx, asanaStore)
	if err != nil {
		logger.Error("failed to load asana catalog", "error", err)
		os.Exit(1)
	}
	holder := catalog.NewHolder(cat, asanaStore, logger)
	logger.Info("asana catalog loaded", "poses", cat.Len(), "benefits", len(cat.Vocabulary()))

	// Embedding provider, loaded on first use
	provider := newProvider(cfg, logger)
	logger.Info("embedding provider configured", "backend", provider.Name(), "model", provider.Model())

	// Similarity index over the benefit vocabulary
	vocabEmbedder := semantic.NewVocabularyEmbedder(provider, benefitStore, semCfg.EmbedBatchSize, logger)
	var indexes *similarity.Builder
	switch semCfg.IndexBackend {
	case similarity.BackendPGVector:
		indexes = similarity.NewPGVectorBuilder(vocabEmbedder.RequirePersist().Embed, benefitStore, provider.Model(), logger)
	default:
		indexes = similarity.NewBuilder(vocabEmbedder.Embed, logger)
	}
	matcher := semantic.NewMatcher(provider, indexes, semCfg.MatchThreshold, logger)
	logger.Info("benefit matcher configured", "index_backend", indexes.Backend(), "threshold", matcher.Threshold())

	// Hermes (NATS), optional; the service works without it
	var (
		hermesClient *hermes.Client
		publisher    *hermes.Publisher
	)
	if cfg.NatsURL != "" {
		hermesClient, err = hermes.NewClient(cfg.NatsURL, "sadhana", logger)
		if err != nil {
			logger.Warn("failed to connect to Hermes (NATS), running without event bus", "error", err)
			hermesClient = nil
		} else {
			defer hermesClient.Close()
			logger.Info("connected to Hermes (NATS)", "url", cfg.NatsURL)

			publisher = hermes.NewPublisher(hermesClient, logger)
			holder.SetNotifier(publisher)

			refresher := hermes.RefresherFunc(func(ctx context.Context) error {
				_, err := holder.Refresh(ctx)
				return err
			})
			subscriber := hermes.NewSubscriber(hermesClient, refresher, logger)
			if err := subscriber.Start(ctx); err != nil {
				logger.Warn("failed to start Hermes subscriber", "error", err)
			} else {
				defer subscriber.Stop()
			}
		}
	}

	if semCfg.CatalogRefreshInterval > 0 {
		go holder.RunRefreshLoop(ctx, semCfg.CatalogRefreshInterval)
		logger.Info("catalog refresher started", "interval", semCfg.CatalogRefreshInterval.String())
	}

	// Recommender
	var recPublisher recommend.Publisher
	if publisher != nil {
		recPublisher = publisher
	}
	recommender := recommend.New(holder, matcher, recPublisher, logger)

	deps := server.Deps{
		DB:          db,
		Catalogs:    holder,
		Quotes:      quoteStore,
		Recommender: recommender,
		Reports:     report.NewGenerator(nil, logger),
		Model:       provider,
		Index:       indexes,
		Audit:       store.NewAuditStore(db),
	}
	if publisher != nil {
		deps.Publisher = publisher
	}
	if hermesClient != nil {
		deps.Bus = hermesClient
	}
	if ch := newChannel(cfg, logger); ch != nil {
		deps.Channel = ch
	}

	// Server
	srv := server.New(cfg, deps, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      srv.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down gracefully...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	logger.Info("Sadhana starting", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("Sadhana stopped")
}

// newProvider wraps the configured backend in a lazy loader.
func newProvider(cfg *config.Config, logger *slog.Logger) *embeddings.Lazy {
	switch cfg.EmbeddingBackend {
	case "openai":
		return embeddings.NewLazy("openai", cfg.OpenAIModel, func(context.Context) (embeddings.Provider, error) {
			return embeddings.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
		}, logger)
	case "simple":
		simple := embeddings.NewSimpleProvider()
		return embeddings.NewLazy("simple", simple.Model(), func(context.Context) (embeddings.Provider, error) {
			return simple, nil
		}, logger)
	default:
		return embeddings.NewLazy("local", cfg.EmbeddingModel, func(ctx context.Context) (embeddings.Provider, error) {
			p := embeddings.NewLocalProvider(cfg.EmbeddingSidecarURL, cfg.EmbeddingModel)
			if err := p.Load(ctx); err != nil {
				return nil, err
			}
			return p, nil
		}, logger)
	}
}

// newChannel builds the SMTP channel, or nil when delivery is not configured.
func newChannel(cfg *config.Config, logger *slog.Logger) delivery.Channel {
	if !cfg.SMTPConfigured() {
		logger.Warn("SMTP not configured, report delivery disabled")
		return nil
	}

	password, err := encryption.ResolveSecret(cfg.SMTPPassword, cfg.SMTPPasswordEncrypted, cfg.EncryptionKey)
	if err != nil {
		logger.Error("failed to decrypt SMTP password, report delivery disabled", "error", err)
		return nil
	}

	return delivery.NewSMTPChannel(delivery.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: password,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
}

// runCommand handles the operator subcommands:
//
//	sadhana genkey   print a new encryption key
//	sadhana seal     read a secret from stdin and print it sealed with the
//	                 key from ENCRYPTION_KEY or ENCRYPTION_KEY_PATH
func runCommand(name string) int {
	switch name {
	case "genkey":
		key, err := encryption.GenerateKey()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println(key)
		return 0
	case "seal":
		enc, err := encryption.NewEncryptor(config.EncryptionKey())
		if err != nil {
			fmt.Fprintln(os.Stderr, "encryption key:", err)
			return 1
		}
		secret, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && secret == "" {
			fmt.Fprintln(os.Stderr, "reading secret:", err)
			return 1
		}
		tok, err := enc.Encrypt(strings.TrimRight(secret, "\r\n"))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println(tok)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want genkey or seal)\n", name)
		return 2
	}
}
