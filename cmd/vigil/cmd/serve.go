package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vigilwaf/vigil/internal/adapter/inbound/admin"
	"github.com/vigilwaf/vigil/internal/adapter/inbound/health"
	"github.com/vigilwaf/vigil/internal/adapter/inbound/proxy"
	vigilcel "github.com/vigilwaf/vigil/internal/adapter/outbound/cel"
	"github.com/vigilwaf/vigil/internal/adapter/outbound/journal"
	"github.com/vigilwaf/vigil/internal/adapter/outbound/llm"
	"github.com/vigilwaf/vigil/internal/adapter/outbound/memory"
	"github.com/vigilwaf/vigil/internal/adapter/outbound/mlclient"
	"github.com/vigilwaf/vigil/internal/adapter/outbound/sqlstore"
	"github.com/vigilwaf/vigil/internal/adapter/outbound/ti"
	"github.com/vigilwaf/vigil/internal/config"
	"github.com/vigilwaf/vigil/internal/domain/controlplane"
	"github.com/vigilwaf/vigil/internal/domain/mlscore"
	"github.com/vigilwaf/vigil/internal/domain/ratelimit"
	"github.com/vigilwaf/vigil/internal/domain/signature"
	domainti "github.com/vigilwaf/vigil/internal/domain/ti"
	"github.com/vigilwaf/vigil/internal/domain/verdict"
	"github.com/vigilwaf/vigil/internal/observability"
	"github.com/vigilwaf/vigil/internal/service"

	"github.com/alexedwards/argon2id"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Detection Pipeline and Control Plane",
	Long: `Start Vigil's two HTTP listeners: the Detection Pipeline (the inspecting
reverse proxy) and the Control Plane (the admin JSON API). A third listener
serves /healthz for operational monitoring.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.Server.LogLevel)}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, cfg, logger)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// ===== Detection Pipeline: static signature engine =====
	sigDoc, err := loadSignatureDocument(cfg.Pipeline.SignaturesFile)
	if err != nil {
		return fmt.Errorf("failed to load signatures file: %w", err)
	}
	sigEngine, err := signature.NewEngine(sigDoc)
	if err != nil {
		return fmt.Errorf("failed to compile signature engine: %w", err)
	}
	logger.Info("signature engine loaded", "rules", len(sigEngine.List()), "file", cfg.Pipeline.SignaturesFile)

	celEvaluator, err := vigilcel.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to build CEL evaluator: %w", err)
	}
	customSigs := proxy.NewCustomSignatureSet(celEvaluator)

	// ===== Detection Pipeline: journal =====
	j, err := journal.Open(cfg.Pipeline.JournalPath)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer func() { _ = j.Close() }()

	// ===== Control Plane: Event Store =====
	store, err := sqlstore.Open(cfg.ControlPlane.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := bootstrapAdmin(ctx, store, cfg, logger); err != nil {
		return fmt.Errorf("failed to bootstrap admin user: %w", err)
	}

	if err := reloadCustomSignatures(ctx, store, customSigs); err != nil {
		logger.Warn("failed to load custom signatures at startup", "error", err)
	}

	// ===== ML scoring client + score cache =====
	// mlClient is declared as the mlscore.Client interface, not *mlclient.Client:
	// assigning a nil *mlclient.Client to an interface variable would leave a
	// non-nil interface wrapping a nil pointer, so the pipeline's
	// "if h.mlClient != nil" check would wrongly take the configured branch.
	mlTimeout := parseDurationDefault(cfg.Pipeline.MLServiceTimeout, 2*time.Second, logger, "ml_service_timeout")
	var mlClient mlscore.Client
	if cfg.Pipeline.MLServiceURL != "" {
		mlClient = mlclient.New(cfg.Pipeline.MLServiceURL, mlTimeout)
	}
	scoreCache := memory.NewScoreCache(cfg.Pipeline.ScoreCacheCapacity)

	// ===== Live thresholds, shared between pipeline and control plane =====
	initialThresholds := verdict.Thresholds{
		VeryHigh: cfg.Pipeline.Thresholds.VeryHigh,
		High:     cfg.Pipeline.Thresholds.High,
		Medium:   cfg.Pipeline.Thresholds.Medium,
		Low:      cfg.Pipeline.Thresholds.Low,
	}
	liveThresholds := service.NewLiveThresholds(initialThresholds)

	// ===== Live settings (upstream/ML-service URLs, safe-traffic logging),
	// shared between pipeline and control plane the same way =====
	liveSettings := service.NewLiveSettings(service.SettingsSnapshot{
		UpstreamURL:    cfg.Pipeline.Upstream,
		MLServiceURL:   cfg.Pipeline.MLServiceURL,
		LogSafeTraffic: true, // matches the reference implementation's WAF_SETTINGS default
	})

	// ===== TI providers, cache, and rate limiter =====
	tiProviders := map[string]domainti.Provider{}
	if cfg.ThreatIntel.VirusTotalAPIKey != "" {
		tiProviders["virustotal"] = ti.NewVirusTotalProvider(cfg.ThreatIntel.VirusTotalAPIKey)
	}
	if cfg.ThreatIntel.OTXAPIKey != "" {
		tiProviders["otx"] = ti.NewOTXProvider(cfg.ThreatIntel.OTXAPIKey)
	}
	if cfg.ThreatIntel.AbuseIPDBAPIKey != "" {
		tiProviders["abuseipdb"] = ti.NewAbuseIPDBProvider(cfg.ThreatIntel.AbuseIPDBAPIKey)
	}
	tiCache := memory.NewTICache()
	tiLimiter := memory.NewSlidingWindowLimiter()
	tiLimiter.StartCleanup(ctx)
	defer tiLimiter.Stop()
	// Each TI provider has its own cap, per the reference implementation
	// (HYDRA_Website/backend/app.py: vt_limiter = RateLimiter(4, 60),
	// abuse_limiter = RateLimiter(1000, 86400)); OTX has no entry here and
	// is therefore never rate-limited.
	tiLimits := map[string]ratelimit.Config{
		"virustotal": {Limit: cfg.RateLimit.TILookupPerMinute, Window: time.Minute},
		"abuseipdb":  {Limit: cfg.RateLimit.TIFeedPerDay, Window: 24 * time.Hour},
	}

	tiLookupService := service.NewTILookupService(store, tiCache, tiLimiter, tiLimits, tiProviders, logger)

	// ===== Analysis Service (LLM-backed virtual patching) =====
	analysisProvider, err := buildAnalysisProvider(cfg.Analysis)
	if err != nil {
		return fmt.Errorf("failed to build analysis provider: %w", err)
	}
	reportCache := memory.NewReportCache(cfg.Pipeline.ScoreCacheCapacity)
	analysisLimiter := memory.NewSlidingWindowLimiter()
	analysisLimiter.StartCleanup(ctx)
	defer analysisLimiter.Stop()
	analysisLimit := ratelimit.Config{Limit: cfg.RateLimit.AnalysisPerMinute, Window: time.Minute}
	analysisService := service.NewAnalysisService(store, reportCache, analysisLimiter, analysisLimit, analysisProvider, logger)

	// ===== Detection Pipeline handler =====
	upstream, err := url.Parse(cfg.Pipeline.Upstream)
	if err != nil {
		return fmt.Errorf("invalid pipeline upstream URL: %w", err)
	}
	upstreamTimeout := parseDurationDefault(cfg.Pipeline.UpstreamTimeout, 30*time.Second, logger, "upstream_timeout")

	var ingestForwarder proxy.IngestForwarder
	if cfg.Pipeline.IngestURL != "" {
		ingestForwarder = service.NewHTTPIngestForwarder(cfg.Pipeline.IngestURL, cfg.Pipeline.IngestToken)
	}

	pipelineHandler := proxy.New(upstream, upstreamTimeout, sigEngine, customSigs, mlClient, scoreCache, initialThresholds, j, ingestForwarder, logger)

	// ===== Observability: metrics and tracing wrap the pipeline's entry point =====
	metrics := observability.NewMetrics()
	tracing, err := observability.NewTracing(cfg.Server.TracingEnabled)
	if err != nil {
		return fmt.Errorf("failed to build tracing provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.Shutdown(shutdownCtx)
	}()
	instrumentedPipeline := metrics.Wrap(tracing.Wrap(pipelineHandler))

	// ===== Control Plane admin handler =====
	sessionTTL := parseDurationDefault(cfg.ControlPlane.SessionTimeout, 30*time.Minute, logger, "session_timeout")
	sessionStore := memory.NewSessionStore()
	// The pipeline's static ingest token is accepted by /api/ingest_log as a
	// user-role session that does not expire in practice.
	if cfg.Pipeline.IngestToken != "" {
		sessionStore.Create(cfg.Pipeline.IngestToken, "pipeline", string(controlplane.RoleUser), 100*365*24*time.Hour)
	}

	adminHandler := admin.New(store, store, sessionStore,
		admin.WithSessionTTL(sessionTTL),
		admin.WithSignatureEngine(sigEngine),
		admin.WithCustomSignatures(customSignatureReloaderAdapter{set: customSigs}),
		admin.WithTI(tiLookupService),
		admin.WithAnalysis(analysisService),
		admin.WithThresholds(liveThresholds),
		admin.WithSettings(liveSettings),
		admin.WithLogger(logger),
	)

	// ===== Keep the pipeline's live thresholds and settings synced with the control plane =====
	go syncThresholds(ctx, liveThresholds, pipelineHandler, logger)
	go syncSettings(ctx, liveSettings, pipelineHandler, mlTimeout, logger)

	// ===== HTTP listeners =====
	healthChecker := health.NewChecker(store, sessionStore, tiLimiter, sigEngine, Version)
	opsMux := http.NewServeMux()
	opsMux.Handle("/healthz", healthChecker.Handler())
	opsMux.Handle("/metrics", metrics.Handler())

	proxyServer := &http.Server{Addr: cfg.Server.ProxyAddr, Handler: instrumentedPipeline}
	adminServer := &http.Server{Addr: cfg.Server.AdminAddr, Handler: adminHandler.Routes()}
	metricsServer := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: opsMux}

	errCh := make(chan error, 3)
	go func() { errCh <- serveOrNil(proxyServer, "proxy", logger) }()
	go func() { errCh <- serveOrNil(adminServer, "admin", logger) }()
	go func() { errCh <- serveOrNil(metricsServer, "metrics", logger) }()

	logger.Info("vigil starting",
		"version", Version,
		"proxy_addr", cfg.Server.ProxyAddr,
		"admin_addr", cfg.Server.AdminAddr,
		"metrics_addr", cfg.Server.MetricsAddr,
		"upstream", cfg.Pipeline.Upstream,
	)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = proxyServer.Shutdown(shutdownCtx)
	_ = adminServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("vigil stopped")
	return nil
}

func serveOrNil(srv *http.Server, name string, logger *slog.Logger) error {
	logger.Info("listener starting", "server", name, "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server: %w", name, err)
	}
	return nil
}

// syncThresholds polls the live thresholds wrapper shared with the admin
// handler and pushes any change into the pipeline handler's atomic value.
// The two sit behind independent ports (admin.ThresholdsView vs.
// proxy.Handler.SetThresholds) so this loop is the one place that bridges
// them, rather than giving either package a dependency on the other's type.
func syncThresholds(ctx context.Context, live *service.LiveThresholds, pipeline *proxy.Handler, logger *slog.Logger) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	current := live.Snapshot()
	pipeline.SetThresholds(current)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			next := live.Snapshot()
			if next != current {
				pipeline.SetThresholds(next)
				current = next
				logger.Info("verdict thresholds updated", "very_high", next.VeryHigh, "high", next.High, "medium", next.Medium, "low", next.Low)
			}
		}
	}
}

// syncSettings polls the live settings wrapper shared with the admin
// handler and pushes any upstream/ML-service/log-safe-traffic change into
// the pipeline handler. A changed ML-service URL means building a brand
// new mlclient.Client (or clearing it to nil if the URL was blanked out);
// this is the one place that happens, for the same reason syncThresholds
// is the one place that bridges ThresholdsView to proxy.Handler.
func syncSettings(ctx context.Context, live *service.LiveSettings, pipeline *proxy.Handler, mlTimeout time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	current := live.Snapshot()
	applySettings(pipeline, current, mlTimeout, logger)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			next := live.Snapshot()
			if next != current {
				applySettings(pipeline, next, mlTimeout, logger)
				current = next
				logger.Info("settings updated", "upstream_url", next.UpstreamURL, "ml_service_url", next.MLServiceURL, "log_safe_traffic", next.LogSafeTraffic)
			}
		}
	}
}

func applySettings(pipeline *proxy.Handler, s service.SettingsSnapshot, mlTimeout time.Duration, logger *slog.Logger) {
	if u, err := url.Parse(s.UpstreamURL); err == nil {
		pipeline.SetUpstream(u)
	} else {
		logger.Error("invalid upstream_url from live settings, keeping previous upstream", "error", err)
	}

	var mlClient mlscore.Client
	if s.MLServiceURL != "" {
		mlClient = mlclient.New(s.MLServiceURL, mlTimeout)
	}
	pipeline.SetMLClient(mlClient)

	pipeline.SetLogSafeTraffic(s.LogSafeTraffic)
}

// customSignatureReloaderAdapter bridges admin.ReloadEntry to
// proxy.CustomSignatureEntry so neither inbound adapter package imports
// the other.
type customSignatureReloaderAdapter struct {
	set *proxy.CustomSignatureSet
}

func (a customSignatureReloaderAdapter) Reload(entries []admin.ReloadEntry) {
	converted := make([]proxy.CustomSignatureEntry, 0, len(entries))
	for _, e := range entries {
		converted = append(converted, proxy.CustomSignatureEntry{ID: e.ID, Expression: e.Expression, Enabled: e.Enabled})
	}
	a.set.Reload(converted)
}

func reloadCustomSignatures(ctx context.Context, store *sqlstore.Store, set *proxy.CustomSignatureSet) error {
	sigs, err := store.CustomSignatures(ctx)
	if err != nil {
		return err
	}
	entries := make([]proxy.CustomSignatureEntry, 0, len(sigs))
	for _, s := range sigs {
		entries = append(entries, proxy.CustomSignatureEntry{ID: strconv.FormatInt(s.ID, 10), Expression: s.Expression, Enabled: s.Enabled})
	}
	set.Reload(entries)
	return nil
}

func bootstrapAdmin(ctx context.Context, store *sqlstore.Store, cfg *config.Config, logger *slog.Logger) error {
	if cfg.ControlPlane.BootstrapAdminUsername == "" {
		return nil
	}
	if _, err := store.UserByUsername(ctx, cfg.ControlPlane.BootstrapAdminUsername); err == nil {
		return nil
	}
	hash, err := argon2id.CreateHash(cfg.ControlPlane.BootstrapAdminPassword, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("hash bootstrap password: %w", err)
	}
	_, err = store.CreateUser(ctx, controlplane.User{
		Username:     cfg.ControlPlane.BootstrapAdminUsername,
		PasswordHash: hash,
		Role:         controlplane.RoleAdmin,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		return err
	}
	logger.Info("bootstrap admin user created", "username", cfg.ControlPlane.BootstrapAdminUsername)
	return nil
}

func buildAnalysisProvider(cfg config.AnalysisConfig) (llmProvider, error) {
	switch cfg.Provider {
	case "remote":
		return llm.NewRemoteProvider(cfg.Endpoint, cfg.APIKey, cfg.Model), nil
	case "local":
		return llm.NewLocalProvider(cfg.Endpoint, cfg.Model), nil
	case "mock", "":
		return llm.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown analysis provider %q", cfg.Provider)
	}
}

// llmProvider mirrors analysis.Provider locally so this file doesn't need to
// import the domain package solely for a type alias on the return value.
type llmProvider interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

func loadSignatureDocument(path string) (signature.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return signature.Document{}, err
	}
	var doc signature.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return signature.Document{}, fmt.Errorf("parse signatures yaml: %w", err)
	}
	return doc, nil
}

func parseDurationDefault(s string, def time.Duration, logger *slog.Logger, field string) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		logger.Warn("invalid duration, using default", "field", field, "value", s, "default", def)
		return def
	}
	return d
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
