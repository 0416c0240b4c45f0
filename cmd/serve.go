package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/waseemkhan00777/askify-gemini/internal/api"
	"github.com/waseemkhan00777/askify-gemini/internal/buildinfo"
	"github.com/waseemkhan00777/askify-gemini/internal/chat"
	"github.com/waseemkhan00777/askify-gemini/internal/config"
	"github.com/waseemkhan00777/askify-gemini/internal/logging"
	"github.com/waseemkhan00777/askify-gemini/internal/middleware"
	"github.com/waseemkhan00777/askify-gemini/internal/paramstore"
	"github.com/waseemkhan00777/askify-gemini/internal/provider"
	"github.com/waseemkhan00777/askify-gemini/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web page and the streaming chat API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		return runServe(cmd.Context(), cfg)
	},
}

func init() {
	f := serveCmd.Flags()
	f.String("addr", "8080", "HTTP listen port or host:port")
	f.String("log-level", "info", "log level: debug|info|warn|error")
	f.Bool("log-json", false, "log as JSON")
	f.String("provider", provider.NameGemini, "model provider: gemini|openai|anthropic|ollama|echo")
	f.String("model", "", "model name (provider default when empty)")
	f.String("base-url", "", "override the provider API base URL")
	f.String("framing", "raw", "default stream framing: raw|sse")
	f.Duration("provider-timeout", 0, "upper bound for one provider stream (0 = none)")

	_ = v.BindPFlag("server.addr", f.Lookup("addr"))
	_ = v.BindPFlag("log.level", f.Lookup("log-level"))
	_ = v.BindPFlag("log.json", f.Lookup("log-json"))
	_ = v.BindPFlag("provider.name", f.Lookup("provider"))
	_ = v.BindPFlag("provider.model", f.Lookup("model"))
	_ = v.BindPFlag("provider.base_url", f.Lookup("base-url"))
	_ = v.BindPFlag("server.framing", f.Lookup("framing"))
	_ = v.BindPFlag("provider.timeout", f.Lookup("provider-timeout"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(cfg.Log.Level, cfg.Log.JSON)
	logger.Info("build", "version", buildinfo.Version, "commit", buildinfo.Commit, "built_at", buildinfo.BuiltAt)

	p, err := newProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}

	handler, err := newHandler(logger, cfg, p)
	if err != nil {
		return err
	}

	server := http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// Replies stream for as long as the provider talks; no write deadline.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() { errChan <- server.ListenAndServe() }()
	logger.Info("askify listening", "addr", server.Addr, "provider", p.Name(), "framing", cfg.Server.Framing)

	select {
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}

// newProvider builds the provider named in cfg, pulling its API key from
// Parameter Store when one is configured.
func newProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (provider.Provider, error) {
	key := cfg.Provider.APIKey
	if cfg.Provider.APIKeyParam != "" {
		ps, err := paramstore.NewFromEnv(ctx, cfg.Provider.AWSRegion)
		if err != nil {
			return nil, err
		}
		key, err = ps.APIKey(ctx, cfg.Provider.APIKeyParam)
		if err != nil {
			return nil, err
		}
		logger.Info("api key loaded from parameter store", "param", cfg.Provider.APIKeyParam)
	}

	p, err := provider.New(ctx, provider.Config{
		Name:      cfg.Provider.Name,
		APIKey:    key,
		Model:     cfg.Provider.Model,
		BaseURL:   cfg.Provider.BaseURL,
		EchoDelay: cfg.Provider.EchoDelay,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init provider: %w", err)
	}

	if o, ok := p.(*provider.Ollama); ok && cfg.Ollama.Wait {
		logger.Info("waiting for Ollama",
			"timeout", cfg.Ollama.WaitTimeout.String(),
			"interval", cfg.Ollama.WaitInterval.String(),
			"models", cfg.Ollama.WaitModels,
		)
		waitCtx, cancel := context.WithTimeout(ctx, cfg.Ollama.WaitTimeout)
		err := o.Client().WaitReady(waitCtx, cfg.Ollama.WaitModels, cfg.Ollama.WaitInterval)
		cancel()
		if err != nil {
			logger.Warn("Ollama not ready; requests will fail until it is", "err", err.Error())
		} else {
			logger.Info("Ollama is ready (API + required models present)")
		}
	}
	return p, nil
}

func newHandler(logger *slog.Logger, cfg *config.Config, p provider.Provider) (http.Handler, error) {
	framing, err := api.ParseFraming(cfg.Server.Framing)
	if err != nil {
		return nil, err
	}

	uih, err := ui.New(logger, p.Name())
	if err != nil {
		return nil, fmt.Errorf("ui init: %w", err)
	}

	relay := chat.NewRelay(logger, p, cfg.Provider.Timeout)
	h := api.NewHandlers(logger, relay, api.Options{
		Framing:        framing,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		OriginPatterns: originHosts(cfg.Server.CORSOrigins),
	})

	mux := chi.NewRouter()
	ui.RegisterRoutes(mux, uih)
	api.RegisterRoutes(mux, h)

	var handler http.Handler = mux
	handler = middleware.CORS(cfg.Server.CORSOrigins)(handler)
	handler = middleware.Recoverer(logger)(handler)
	// AccessLog sits inside RequestID and RealIP so it logs both.
	handler = middleware.AccessLog(logger)(handler)
	handler = middleware.RequestID()(handler)
	handler = chimw.RealIP(handler)
	handler = middleware.VersionHeader()(handler)
	return handler, nil
}

// originHosts turns CORS origins ("https://app.example.com") into the host
// patterns the websocket handshake checks against.
func originHosts(origins []string) []string {
	var out []string
	for _, o := range origins {
		if o == "*" {
			out = append(out, o)
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			out = append(out, o)
			continue
		}
		out = append(out, u.Host)
	}
	return out
}
