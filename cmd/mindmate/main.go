// Command mindmate is the main entry point for the MindMate companion server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/mindmate-app/mindmate/internal/analysis"
	"github.com/mindmate-app/mindmate/internal/auth"
	"github.com/mindmate-app/mindmate/internal/chat"
	"github.com/mindmate-app/mindmate/internal/config"
	"github.com/mindmate-app/mindmate/internal/crisis"
	"github.com/mindmate-app/mindmate/internal/dashboard"
	"github.com/mindmate-app/mindmate/internal/health"
	"github.com/mindmate-app/mindmate/internal/observe"
	"github.com/mindmate-app/mindmate/internal/resilience"
	"github.com/mindmate-app/mindmate/internal/server"
	"github.com/mindmate-app/mindmate/pkg/provider/llm"
	"github.com/mindmate-app/mindmate/pkg/provider/llm/anyllm"
	oai "github.com/mindmate-app/mindmate/pkg/provider/llm/openai"
	"github.com/mindmate-app/mindmate/pkg/store/postgres"
)

// perplexityBaseURL is the OpenAI-compatible endpoint Perplexity serves.
const perplexityBaseURL = "https://api.perplexity.ai"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "mindmate: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "mindmate: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, logLevel, closeLog := config.SetupLogger(cfg.Server.LogFile, cfg.Server.LogLevel)
	defer closeLog()
	slog.SetDefault(logger)

	slog.Info("mindmate starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "mindmate"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Storage ───────────────────────────────────────────────────────────────
	if cfg.Storage.PostgresDSN == "" {
		slog.Error("storage.postgres_dsn is required to run the server")
		return 1
	}
	st, err := postgres.NewStore(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		slog.Error("failed to connect to database", "err", err)
		return 1
	}
	defer st.Close()

	// ── Model providers ───────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	provider, err := buildProvider(cfg, reg)
	if err != nil {
		slog.Error("failed to build model provider", "err", err)
		return 1
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	analyzer := analysis.NewAnalyzer(provider, analysis.NewResponder(), metrics, chatSettings(cfg.Chat))
	policy := crisis.NewPolicy(st, metrics, cfg.Chat.CrisisThreshold)
	orch := chat.NewOrchestrator(st, analyzer, policy, metrics)
	dash := dashboard.NewService(st)
	verifier := auth.NewTokenVerifier(cfg.Server.AuthToken)

	srv := server.New(cfg.Server, verifier, orch, dash, st, metrics)

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			logLevel.Set(d.NewLogLevel.SlogLevel())
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.ChatChanged {
			analyzer.UpdateSettings(chatSettings(d.NewChat))
			policy.SetThreshold(d.NewChat.CrisisThreshold)
			slog.Info("chat settings reloaded")
		}
	})
	if err != nil {
		slog.Warn("config hot reload unavailable", "err", err)
	} else {
		defer watcher.Stop()
	}

	printStartupSummary(cfg)
	slog.Info("server ready — press Ctrl+C to shut down")

	dbCheck := health.Checker{Name: "database", Check: st.Ping}
	if err := srv.Run(ctx, dbCheck); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// chatSettings maps the chat config block to analyzer settings.
func chatSettings(c config.ChatConfig) analysis.Settings {
	return analysis.Settings{
		HistoryWindow: c.HistoryWindow,
		Temperature:   c.Temperature,
		MaxTokens:     c.MaxTokens,
		ModelTimeout:  c.ModelTimeout,
		Persona:       c.Persona,
	}
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in model provider factories into
// reg. Each factory receives a config.ProviderEntry and constructs the
// appropriate provider.
func registerBuiltinProviders(reg *config.Registry) {
	// openai and perplexity use the native OpenAI-compatible client; perplexity
	// only differs in its default endpoint.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oai.Option
		if entry.BaseURL != "" {
			opts = append(opts, oai.WithBaseURL(entry.BaseURL))
		}
		return oai.New(entry.APIKey, entry.Model, opts...)
	})
	reg.RegisterLLM("perplexity", func(entry config.ProviderEntry) (llm.Provider, error) {
		baseURL := entry.BaseURL
		if baseURL == "" {
			baseURL = perplexityBaseURL
		}
		return oai.New(entry.APIKey, entry.Model,
			oai.WithBaseURL(baseURL),
			oai.WithTopP(0.9),
			oai.WithFrequencyPenalty(1),
		)
	})

	// anthropic, gemini, deepseek, mistral, groq all share the same pattern:
	// optional APIKey + optional BaseURL.
	for _, providerName := range []string{"anthropic", "gemini", "deepseek", "mistral", "groq"} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})
}

// buildProvider instantiates the configured provider chain: the primary
// wrapped in a failover group with each configured fallback behind its own
// circuit breaker. With no provider configured, every exchange degrades to
// the offline responder.
func buildProvider(cfg *config.Config, reg *config.Registry) (llm.Provider, error) {
	if cfg.Providers.LLM.Name == "" {
		return offlineProvider{}, nil
	}

	primary, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name)

	failover := resilience.NewModelFailover(primary, cfg.Providers.LLM.Name, resilience.FallbackConfig{})
	for _, entry := range cfg.Providers.Fallbacks {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("create fallback provider %q: %w", entry.Name, err)
		}
		failover.AddFallback(entry.Name, p)
		slog.Info("fallback provider created", "kind", "llm", "name", entry.Name)
	}
	return failover, nil
}

// offlineProvider fails every completion, forcing the analyzer onto the
// canned fallback responder. Used when no model provider is configured.
type offlineProvider struct{}

func (offlineProvider) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return nil, errors.New("no model provider configured")
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         MindMate — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printEntry("Model", providerLabel(cfg.Providers.LLM))
	printEntry("Fallbacks", fmt.Sprintf("%d", len(cfg.Providers.Fallbacks)))
	printEntry("Crisis thresh.", fmt.Sprintf("%.2f", cfg.Chat.CrisisThreshold))
	printEntry("History window", fmt.Sprintf("%d turns", cfg.Chat.HistoryWindow))
	printEntry("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func providerLabel(entry config.ProviderEntry) string {
	if entry.Name == "" {
		return "(not configured)"
	}
	if entry.Model != "" {
		return entry.Name + " / " + entry.Model
	}
	return entry.Name
}

func printEntry(kind, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", kind, value)
}
