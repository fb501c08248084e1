package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smorand/slides-team-hub/internal/auth"
	"github.com/smorand/slides-team-hub/internal/cache"
	"github.com/smorand/slides-team-hub/internal/config"
	"github.com/smorand/slides-team-hub/internal/middleware"
	"github.com/smorand/slides-team-hub/internal/permissions"
	"github.com/smorand/slides-team-hub/internal/ratelimit"
	"github.com/smorand/slides-team-hub/internal/registry"
	"github.com/smorand/slides-team-hub/internal/report"
	"github.com/smorand/slides-team-hub/internal/retry"
	"github.com/smorand/slides-team-hub/internal/slides"
	"github.com/smorand/slides-team-hub/internal/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the team hub server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, err := registry.Open(cfg.Database.Path, logger)
	if err != nil {
		return err
	}
	defer reg.Close()

	sessions := auth.NewSessionManager(cfg.Auth.SessionTTL)
	defer sessions.Stop()

	oauthMgr, cleanup, err := buildOAuth(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	checker := permissions.NewChecker(permissions.CheckerConfig{
		CacheTTL: cfg.Cache.TTL,
		Logger:   logger,
	}, nil)

	service := slides.NewService(
		slides.ServiceConfig{
			Logger:   logger,
			CacheTTL: cfg.Cache.TTL,
			CacheMax: cfg.Cache.MaxEntries,
		},
		reg, oauthMgr, checker, nil, nil,
		retry.New(retry.Config{Logger: logger}),
	)

	cacheMgr := cache.NewManager(time.Minute, logger)
	cacheMgr.Register("deck_details", service.DetailsCache())
	cacheMgr.Register("thumbnails", service.ThumbnailCache())
	defer cacheMgr.Stop()
	defer cacheMgr.LogStats()

	translator := buildTranslator(ctx, logger)
	if translator != nil {
		defer translator.Close()
	}
	reports := report.NewGenerator(report.GeneratorConfig{
		Logger:  logger,
		TempDir: cfg.Report.TempDir,
	}, reg, service, translator)

	embedCheck := func(ctx context.Context, username, presentationID string) (bool, error) {
		ts, err := oauthMgr.TokenSource(ctx, username)
		if err != nil {
			return false, err
		}
		return checker.IsLinkShared(ctx, ts, presentationID)
	}

	limiter := ratelimit.New(ratelimit.DefaultConfig())
	// Report generation exports every deck; keep those routes scarce.
	limiter.SetEndpointLimit("/api/reports/pdf", 0.2, 2)
	limiter.SetEndpointLimit("/api/reports/html", 0.2, 2)

	server := transport.NewServer(transport.ServerConfig{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		Logger:          logger,
	}, transport.Deps{
		Registry:   reg,
		Sessions:   sessions,
		OAuth:      oauthMgr,
		Slides:     service,
		Reports:    reports,
		SessionMW:  middleware.NewSessionMiddleware(middleware.SessionMiddlewareConfig{Sessions: sessions, Logger: logger}),
		RateLimit:  limiter,
		EmbedCheck: embedCheck,

		DefaultReportLanguage: cfg.Report.Language,
	})

	return server.Start(ctx)
}

// buildOAuth assembles the Google OAuth manager from the configured
// sources: client credentials from config or Secret Manager, refresh
// tokens in Firestore or in memory.
func buildOAuth(ctx context.Context, cfg config.Config, logger *slog.Logger) (*auth.OAuthManager, func(), error) {
	cleanups := []func(){}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	oauthCfg := auth.OAuthConfig{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURI:  cfg.Google.RedirectURL,
	}

	if cfg.Google.SecretName != "" {
		loader, err := auth.NewSecretLoader(ctx, cfg.Google.ProjectID)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to create secret loader: %w", err)
		}
		defer loader.Close()

		loaded, err := loader.LoadOAuthConfig(ctx, cfg.Google.SecretName)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to load oauth secret: %w", err)
		}
		loaded.RedirectURI = oauthCfg.RedirectURI
		oauthCfg = loaded
	}

	var store auth.CredentialStore
	if cfg.Google.TokenCollection != "" && cfg.Google.ProjectID != "" {
		fs, err := auth.NewFirestoreCredentialStore(ctx, cfg.Google.ProjectID, cfg.Google.TokenCollection)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to create firestore store: %w", err)
		}
		cleanups = append(cleanups, func() { fs.Close() })
		store = fs
	} else {
		logger.Warn("no firestore token collection configured, google connections will not survive restarts")
		store = auth.NewMemoryCredentialStore()
	}

	return auth.NewOAuthManager(oauthCfg, store, logger), cleanup, nil
}

// buildTranslator creates the report translator. A translator failure
// is not fatal; reports simply stay in English.
func buildTranslator(ctx context.Context, logger *slog.Logger) *report.GoogleTranslator {
	translator, err := report.NewGoogleTranslator(ctx)
	if err != nil {
		logger.Warn("translation unavailable, reports will not be localized",
			slog.Any("error", err),
		)
		return nil
	}
	return translator
}
