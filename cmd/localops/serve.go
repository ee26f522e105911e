package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/localops/assist"
	"github.com/jonwraymond/localops/cache"
	"github.com/jonwraymond/localops/command"
	"github.com/jonwraymond/localops/config"
	"github.com/jonwraymond/localops/fileops"
	"github.com/jonwraymond/localops/govern"
	"github.com/jonwraymond/localops/health"
	"github.com/jonwraymond/localops/mcpserver"
	"github.com/jonwraymond/localops/observe"
	"github.com/jonwraymond/localops/secret"
	"github.com/jonwraymond/localops/sysinfo"
	"github.com/jonwraymond/localops/validate"
)

func newServeCommand() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, logLevel)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (default: XDG config dir)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug|info|warn|error)")
	return cmd
}

func runServe(ctx context.Context, configPath, logLevel string) error {
	var (
		cfg config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Observe.LogLevel = logLevel
	}

	version := cfg.Server.Version
	if version == "" {
		version = Version
	}

	logger := observe.NewLogger(cfg.Observe.LogLevel)

	obs, err := observe.NewObserver(ctx, observe.Config{
		ServiceName: cfg.Server.Name,
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   cfg.Observe.TracingExporter != "" && cfg.Observe.TracingExporter != "none",
			Exporter:  cfg.Observe.TracingExporter,
			SamplePct: cfg.Observe.TracingSamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  cfg.Observe.MetricsExporter != "" && cfg.Observe.MetricsExporter != "none",
			Exporter: cfg.Observe.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   cfg.Observe.LogLevel,
		},
	})
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obs.Shutdown(sctx); err != nil {
			logger.Warn(sctx, "telemetry shutdown failed", observe.Field{Key: "error", Value: err.Error()})
		}
	}()

	metrics, err := observe.NewMetrics(obs.Meter())
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	tracer := observe.NewTracer(obs.Tracer())

	validator, err := validate.New(validate.Config{
		AllowedDirs:       cfg.Security.AllowedDirs,
		BlockedDirs:       cfg.Security.BlockedDirs,
		BlockedExtensions: cfg.Security.BlockedExtensions,
		AllowedExtensions: cfg.Security.AllowedExtensions,
		MaxPathLength:     cfg.Security.MaxPathLength,
		DenyAbsolute:      cfg.Security.DenyAbsolute,
		BlockedCommands:   append(validate.DefaultBlockedCommands(), cfg.Command.ExtraBlocked...),
	})
	if err != nil {
		return fmt.Errorf("validator: %w", err)
	}

	// Each store reports its lookups to the op.cache.* counters under the
	// operation it serves.
	cacheCfg := func(op string) cache.Config {
		return cache.Config{
			MaxSize:       cfg.Cache.MaxSize,
			TTL:           cfg.Cache.TTL.Std(),
			SweepInterval: cfg.Cache.TTL.Std() / 2,
			Disabled:      !cfg.Cache.Enabled,
			OnAccess: func(hit bool) {
				metrics.RecordCacheAccess(context.Background(), op, hit)
			},
		}
	}
	reads := cache.NewStore[string](cacheCfg("read_file"))
	defer reads.Close()
	listings := cache.NewStore[[]fileops.Entry](cacheCfg("list_directory"))
	defer listings.Close()
	responses := cache.NewStore[assist.Response](cacheCfg("ai_assist"))
	defer responses.Close()

	// System snapshots go stale fast; cap their TTL at 30 seconds.
	snapCfg := cacheCfg("system_info")
	if snapCfg.TTL > 30*time.Second {
		snapCfg.TTL = 30 * time.Second
		snapCfg.SweepInterval = snapCfg.TTL
	}
	snapshots := cache.NewStore[sysinfo.Snapshot](snapCfg)
	defer snapshots.Close()

	var limiter *govern.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = govern.NewRateLimiter(govern.RateLimiterConfig{
			Window:        cfg.RateLimit.Window.Std(),
			MaxRequests:   cfg.RateLimit.MaxRequests,
			SweepInterval: cfg.RateLimit.Window.Std(),
		})
		defer limiter.Close()
	}

	bulkhead, err := govern.NewBulkhead(govern.BulkheadConfig{Categories: cfg.Categories()})
	if err != nil {
		return fmt.Errorf("bulkhead: %w", err)
	}

	files := fileops.New(fileops.Config{}, reads, listings)
	runner := command.New(command.Config{
		Timeout:   cfg.Command.Timeout.Std(),
		MaxOutput: cfg.Command.MaxOutput,
	})
	system := sysinfo.New("/", snapshots)

	assistSvc, err := buildAssist(ctx, cfg, responses)
	if err != nil {
		return err
	}

	srv := mcpserver.New(mcpserver.Config{
		Name:             cfg.Server.Name,
		Version:          version,
		CommandTimeout:   cfg.Command.Timeout.Std(),
		AssistTimeout:    cfg.Assist.Timeout.Std(),
		FileOpsCategory:  config.CategoryFileOps,
		SearchesCategory: config.CategorySearches,
		CommandsCategory: config.CategoryCommands,
		AssistCategory:   config.CategoryAssist,
	}, mcpserver.Deps{
		Gate:     govern.NewGate(validator, limiter, bulkhead),
		Files:    files,
		Commands: runner,
		System:   system,
		Assist:   assistSvc,
		Limiter:  limiter,
		Bulkhead: bulkhead,
		Stats: []mcpserver.StatusSource{
			{Name: "read_cache", Collect: func() any { return reads.Stats() }},
			{Name: "listing_cache", Collect: func() any { return listings.Stats() }},
			{Name: "assist_cache", Collect: func() any { return responses.Stats() }},
			{Name: "assist_breaker", Collect: func() any { return assistSvc.BreakerState().String() }},
		},
		Logger:  logger,
		Metrics: metrics,
		Tracer:  tracer,
	})

	if cfg.Ops.Enabled {
		opsSrv := startOps(cfg, logger, reads, bulkhead, limiter, assistSvc)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			opsSrv.Shutdown(sctx)
		}()
	}

	logger.Info(ctx, "serving on stdio",
		observe.Field{Key: "name", Value: cfg.Server.Name},
		observe.Field{Key: "version", Value: version},
	)
	return srv.ServeStdio()
}

// buildAssist wires the AI backend when enabled. The API key reference is
// resolved through the env and keyring providers so the config file never
// holds the literal key.
func buildAssist(ctx context.Context, cfg config.Config, store *cache.Store[assist.Response]) (*assist.Service, error) {
	if !cfg.Assist.Enabled {
		return assist.New(assist.Config{}, nil, nil, store), nil
	}

	resolver := secret.NewResolver(true,
		secret.NewEnvProvider(),
		secret.NewKeyringProvider(secret.DefaultKeyringService),
	)
	apiKey, err := resolver.ResolveValue(ctx, cfg.Assist.APIKeyRef)
	if err != nil {
		return nil, fmt.Errorf("resolving assist API key: %w", err)
	}

	client := assist.NewClient(cfg.Assist.BaseURL, cfg.Assist.Model, apiKey, cfg.Assist.Timeout.Std())
	breaker := assist.NewBreaker(assist.BreakerConfig{})
	return assist.New(assist.Config{Model: cfg.Assist.Model}, client, breaker, store), nil
}

// startOps serves health and metrics on a loopback listener, away from
// the stdio protocol stream.
func startOps(cfg config.Config, logger observe.Logger, reads *cache.Store[string], bulkhead *govern.Bulkhead, limiter *govern.RateLimiter, assistSvc *assist.Service) *http.Server {
	agg := health.NewAggregator()
	agg.Register("memory", health.NewMemoryChecker(health.MemoryCheckerConfig{}))
	agg.Register("disk", health.NewDiskChecker("/", 0.85, 0.95))
	agg.Register("read_cache", health.NewCacheChecker("read_cache", reads, 0.1))
	agg.Register("bulkhead", health.NewBulkheadChecker(bulkhead))
	if limiter != nil {
		agg.Register("rate_limit", health.NewRateLimitChecker(limiter))
	}
	agg.Register("assist", health.NewCheckerFunc("assist", func(ctx context.Context) health.Result {
		state := assistSvc.BreakerState()
		details := map[string]any{"breaker": state.String()}
		if state == assist.StateOpen {
			return health.Result{Status: health.StatusDegraded, Message: "assist backend circuit open", Details: details}
		}
		return health.Result{Status: health.StatusHealthy, Message: "assist available", Details: details}
	}))

	mux := http.NewServeMux()
	health.RegisterHandlers(mux, agg)
	if cfg.Observe.MetricsExporter == "prometheus" {
		mux.Handle("/metrics", promhttp.Handler())
	}

	srv := &http.Server{Addr: cfg.Ops.Addr, Handler: mux}
	go func() {
		logger.Info(context.Background(), "ops listener started",
			observe.Field{Key: "addr", Value: cfg.Ops.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "ops listener failed",
				observe.Field{Key: "error", Value: err.Error()})
		}
	}()
	return srv
}
