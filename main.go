package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"outreach/api/pkg/clients/email"
	"outreach/api/pkg/clients/mailboxlayer"
	"outreach/api/pkg/clients/prospeo"
	"outreach/api/pkg/clients/website"
	"outreach/api/pkg/db"
	"outreach/api/pkg/events"
	"outreach/api/pkg/metrics"
	"outreach/api/pkg/secrets"
	"outreach/api/services/campaign"
	"outreach/api/services/enrichment"
	"outreach/api/services/leads"
	"outreach/api/services/storage"
)

type config struct {
	HTTP struct {
		Host            string        `conf:"default:0.0.0.0:8080,env:HTTP_HOST"`
		ReadTimeout     time.Duration `conf:"default:10s,env:HTTP_READ_TIMEOUT"`
		WriteTimeout    time.Duration `conf:"default:30s,env:HTTP_WRITE_TIMEOUT"`
		ShutdownTimeout time.Duration `conf:"default:10s,env:HTTP_SHUTDOWN_TIMEOUT"`
		CORSOrigins     []string      `conf:"default:http://localhost:3000;http://localhost:5173,env:HTTP_CORS_ORIGINS"`
	}
	Log struct {
		Level string `conf:"default:info,env:LOG_LEVEL"`
	}
	DB struct {
		Driver     string `conf:"default:memory,env:DB_DRIVER"`
		URL        string `conf:"env:DB_URL,mask"`
		SQLitePath string `conf:"default:outreach.db,env:DB_SQLITE_PATH"`
	}
	Sender struct {
		Name  string `conf:"default:Outreach,env:SENDER_NAME"`
		Email string `conf:"env:SENDER_EMAIL"`
	}
	Mail struct {
		Provider          string `conf:"default:stub,env:MAIL_PROVIDER"`
		SendinblueAPIKey  string `conf:"env:SENDINBLUE_API_KEY,mask"`
		SendinblueBaseURL string `conf:"env:SENDINBLUE_BASE_URL"`
		SMTPHost          string `conf:"env:SMTP_HOST"`
		SMTPPort          int    `conf:"default:587,env:SMTP_PORT"`
		SMTPUser          string `conf:"env:SMTP_USER"`
		SMTPPassword      string `conf:"env:SMTP_PASSWORD,mask"`
	}
	Enrich struct {
		MailboxlayerAPIKey  string `conf:"env:MAILBOXLAYER_API_KEY,mask"`
		MailboxlayerBaseURL string `conf:"env:MAILBOXLAYER_BASE_URL"`
		ProspeoAPIKey       string `conf:"env:PROSPEO_API_KEY,mask"`
		ProspeoBaseURL      string `conf:"env:PROSPEO_BASE_URL"`
		BatchSize           int    `conf:"default:5,env:ENRICH_BATCH_SIZE"`
		ScrapeWebsites      bool   `conf:"default:true,env:ENRICH_SCRAPE_WEBSITES"`
	}
	Secrets struct {
		Keyring bool `conf:"default:false,env:SECRETS_KEYRING"`
	}
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
	}

	if len(os.Args) > 1 && os.Args[1] == "secret" {
		if err := runSecret(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("startup", "error", err)
		os.Exit(1)
	}
}

// runSecret stores or removes a provider key in the OS keychain:
//
//	api secret set <account> <value>
//	api secret delete <account>
func runSecret(args []string) error {
	switch {
	case len(args) == 3 && args[0] == "set":
		return secrets.Store(args[1], args[2])
	case len(args) == 2 && args[0] == "delete":
		return secrets.Delete(args[1])
	}
	return fmt.Errorf("usage: secret set <account> <value> | secret delete <account>")
}

func run() error {
	var cfg config
	help, err := conf.Parse("", &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(logHandler))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// =========================================================================
	// Storage

	store, health, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// =========================================================================
	// Integrations

	httpClient := &http.Client{Timeout: 15 * time.Second}
	useKeyring := cfg.Secrets.Keyring

	mailer, err := newMailer(cfg, httpClient, useKeyring)
	if err != nil {
		return err
	}
	health["email"] = func(context.Context) error { return email.Validate(mailer) }

	checker := mailboxlayer.NewClient(
		secrets.Resolve(cfg.Enrich.MailboxlayerAPIKey, secrets.AccountMailboxlayer, useKeyring),
		cfg.Enrich.MailboxlayerBaseURL, httpClient)
	finder := prospeo.NewClient(
		secrets.Resolve(cfg.Enrich.ProspeoAPIKey, secrets.AccountProspeo, useKeyring),
		cfg.Enrich.ProspeoBaseURL, httpClient)
	var scraper enrichment.Scraper
	if cfg.Enrich.ScrapeWebsites {
		scraper = website.NewClient(httpClient)
	}
	if !checker.Configured() {
		slog.Warn("mailboxlayer API key not set; pattern verification disabled")
	}

	// =========================================================================
	// Services

	hub := events.NewHub()
	identity := campaign.Identity{Name: cfg.Sender.Name, Email: cfg.Sender.Email}

	sender, err := campaign.NewSender(store, mailer, identity, hub)
	if err != nil {
		return fmt.Errorf("creating sender: %w", err)
	}
	templater, err := campaign.NewTemplater(store, cfg.Sender.Name)
	if err != nil {
		return fmt.Errorf("creating templater: %w", err)
	}
	verifier := enrichment.NewVerifier(checker, enrichment.DefaultProbeInterval)
	enricher, err := enrichment.NewEnricher(store, verifier, finder, scraper, hub,
		enrichment.Options{BatchSize: cfg.Enrich.BatchSize})
	if err != nil {
		return fmt.Errorf("creating enricher: %w", err)
	}

	leadsService, err := leads.NewService(leads.Deps{
		Store:     store,
		Sender:    sender,
		Templater: templater,
		Enricher:  enricher,
		Hub:       hub,
		Health:    health,
	})
	if err != nil {
		return fmt.Errorf("creating leads service: %w", err)
	}

	// =========================================================================
	// Router

	mainRouter := mux.NewRouter()
	mainRouter.Use(leads.RequestID)
	mainRouter.Use(metrics.Middleware)

	apiRouter := mainRouter.PathPrefix("/api").Subrouter()
	leadsService.LoadRoutes(apiRouter)
	leadsService.LoadHealthRoutes(mainRouter)
	mainRouter.Handle("/metrics", metrics.Handler()).Methods("GET")

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins(cfg.HTTP.CORSOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Request-ID"}),
		handlers.AllowCredentials(),
	)(mainRouter)

	srv := &http.Server{
		Addr:         cfg.HTTP.Host,
		Handler:      handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(corsHandler),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	// Event streams never go idle on their own.
	srv.RegisterOnShutdown(hub.Close)

	// =========================================================================
	// Start

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting server", "addr", srv.Addr, "db", cfg.DB.Driver, "mail", cfg.Mail.Provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown started")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := sender.Shutdown(shutdownCtx); err != nil {
			slog.Warn("bulk sends still running at shutdown", "error", err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("shutdown complete")
	return nil
}

// openStore builds the configured Storage and the health check for it.
func openStore(ctx context.Context, cfg config) (storage.Storage, map[string]leads.HealthCheck, func(), error) {
	health := map[string]leads.HealthCheck{}
	switch strings.ToLower(cfg.DB.Driver) {
	case "memory":
		slog.Info("using in-memory lead store")
		return storage.NewMemory(), health, func() {}, nil

	case "postgres":
		if cfg.DB.URL == "" {
			return nil, nil, nil, fmt.Errorf("DB_URL is required for the postgres driver")
		}
		pool, err := db.Connect(ctx, db.DefaultConfig(cfg.DB.URL))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("applying schema: %w", err)
		}
		store, err := storage.NewInstance(pool)
		if err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("creating store: %w", err)
		}
		health["database"] = pool.Ping
		return store, health, pool.Close, nil

	case "sqlite":
		conn, err := db.OpenSQLite(ctx, cfg.DB.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening sqlite: %w", err)
		}
		store, err := storage.NewSQLite(conn)
		if err != nil {
			conn.Close()
			return nil, nil, nil, fmt.Errorf("creating store: %w", err)
		}
		health["database"] = conn.PingContext
		return store, health, func() { conn.Close() }, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DB.Driver)
}

// newMailer builds the configured email provider.
func newMailer(cfg config, httpClient *http.Client, useKeyring bool) (email.Client, error) {
	switch strings.ToLower(cfg.Mail.Provider) {
	case "sendinblue":
		key := secrets.Resolve(cfg.Mail.SendinblueAPIKey, secrets.AccountSendinblue, useKeyring)
		return email.NewSendinblueClient(key, cfg.Mail.SendinblueBaseURL, cfg.Sender.Name, cfg.Sender.Email, httpClient), nil
	case "smtp":
		password := secrets.Resolve(cfg.Mail.SMTPPassword, secrets.AccountSMTPPassword, useKeyring)
		return email.NewSMTPClient(cfg.Mail.SMTPHost, cfg.Mail.SMTPPort, cfg.Mail.SMTPUser, password, cfg.Sender.Name, cfg.Sender.Email), nil
	case "stub":
		slog.Warn("using stub mail provider; emails are logged, not delivered")
		return email.NewStubClient(cfg.Sender.Email), nil
	}
	return nil, fmt.Errorf("unknown MAIL_PROVIDER %q", cfg.Mail.Provider)
}
