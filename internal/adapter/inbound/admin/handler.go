// Package admin implements the Control Plane's JSON API: authentication,
// rule/settings management, analytics, CRUD over the event store, threat
// intelligence lookups, and the LLM-backed analysis service.
package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/vigilwaf/vigil/internal/adapter/outbound/memory"
	"github.com/vigilwaf/vigil/internal/adapter/outbound/sqlstore"
	"github.com/vigilwaf/vigil/internal/domain/controlplane"
	"github.com/vigilwaf/vigil/internal/domain/signature"
	"github.com/vigilwaf/vigil/internal/domain/ti"
	outbound "github.com/vigilwaf/vigil/internal/port/outbound"
)

// SignatureEngine is the subset of signature.Engine the rules endpoints need.
type SignatureEngine interface {
	SetEnabled(id string, on bool)
	List() []signature.RuleView
}

// CustomSignatureReloader is notified after a custom signature CRUD mutation
// so the Detection Pipeline picks up the change without a restart.
type CustomSignatureReloader interface {
	Reload(entries []ReloadEntry)
}

// ReloadEntry mirrors proxy.CustomSignatureEntry without importing the
// inbound proxy package from admin (keeps the two inbound adapters independent).
type ReloadEntry struct {
	ID         string
	Expression string
	Enabled    bool
}

// TIOrchestrator resolves a single indicator lookup through the restriction
// short-circuit, cache, rate limiter, and provider call.
type TIOrchestrator interface {
	Lookup(ctx context.Context, provider string, ind ti.Indicator) (ti.LookupResult, error)
}

// AnalysisOrchestrator runs the sanitize -> cache -> rate-limit -> provider
// -> validate/fallback -> persist flow for a single WAFLog.
type AnalysisOrchestrator interface {
	Recommend(ctx context.Context, wafLogID int64, description string) (controlplane.PatchingReport, error)
}

// Handler is the Control Plane's JSON API.
type Handler struct {
	store        outbound.EventStore
	db           *sqlstore.Store // concrete handle for analytics + generic table access
	sessions     *memory.SessionStore
	sessionTTL   time.Duration
	signatures   SignatureEngine
	customSigs   CustomSignatureReloader
	ti           TIOrchestrator
	analysis     AnalysisOrchestrator
	thresholds   *ThresholdsView
	settings     *SettingsView
	logger       *slog.Logger
}

// ThresholdsView lets the admin API read and update the live verdict
// thresholds the Detection Pipeline classifies against.
type ThresholdsView interface {
	Get() (veryHigh, high, medium, low float64)
	Set(veryHigh, high, medium, low float64) error
}

// SettingsView lets the admin API read and update the live upstream/
// ML-service URLs and the safe-traffic logging flag the Detection Pipeline
// forwards and scores against.
type SettingsView interface {
	Get() (upstreamURL, mlServiceURL string, logSafeTraffic bool)
	Set(upstreamURL, mlServiceURL string, logSafeTraffic bool) error
}

// Option configures a Handler dependency.
type Option func(*Handler)

func WithSessionTTL(d time.Duration) Option         { return func(h *Handler) { h.sessionTTL = d } }
func WithSignatureEngine(e SignatureEngine) Option  { return func(h *Handler) { h.signatures = e } }
func WithCustomSignatures(r CustomSignatureReloader) Option {
	return func(h *Handler) { h.customSigs = r }
}
func WithTI(o TIOrchestrator) Option             { return func(h *Handler) { h.ti = o } }
func WithAnalysis(o AnalysisOrchestrator) Option { return func(h *Handler) { h.analysis = o } }
func WithThresholds(t ThresholdsView) Option     { return func(h *Handler) { h.thresholds = &t } }
func WithSettings(s SettingsView) Option         { return func(h *Handler) { h.settings = &s } }
func WithLogger(l *slog.Logger) Option           { return func(h *Handler) { h.logger = l } }

// New creates a Handler backed by store (for the core entity operations) and
// db (for analytics queries and the generic table registry, which the
// EventStore port intentionally doesn't expose).
func New(store outbound.EventStore, db *sqlstore.Store, sessions *memory.SessionStore, opts ...Option) *Handler {
	h := &Handler{
		store:      store,
		db:         db,
		sessions:   sessions,
		sessionTTL: 30 * time.Minute,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes builds the full admin API mux: an unauthenticated login endpoint
// plus every route behind the bearer+role middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", h.handleLogin)

	protected := http.NewServeMux()
	protected.HandleFunc("GET /api/rules", h.requireRole("user", h.handleListRules))
	protected.HandleFunc("PUT /api/rules/{id}", h.requireRole("admin", h.handleSetRuleEnabled))

	protected.HandleFunc("GET /api/settings", h.requireRole("user", h.handleGetSettings))
	protected.HandleFunc("PUT /api/settings", h.requireRole("admin", h.handlePutSettings))

	protected.HandleFunc("POST /api/ingest_log", h.requireRole("user", h.handleIngestLog))

	protected.HandleFunc("GET /api/logs", h.requireRole("user", h.handleLogs))
	protected.HandleFunc("GET /api/logs/export", h.requireRole("analyst", h.handleExportLogsCSV))
	protected.HandleFunc("GET /api/alerts", h.requireRole("user", h.handleAlerts))
	protected.HandleFunc("PUT /api/alerts/{id}/ack", h.requireRole("user", h.handleAcknowledgeAlert))
	protected.HandleFunc("GET /api/kpis", h.requireRole("user", h.handleKPIs))
	protected.HandleFunc("GET /api/traffic", h.requireRole("user", h.handleTraffic))
	protected.HandleFunc("GET /api/owasp", h.requireRole("user", h.handleOWASP))
	protected.HandleFunc("GET /api/heatmap", h.requireRole("user", h.handleHeatmap))

	protected.HandleFunc("GET /api/restrictions", h.requireRole("analyst", h.handleListRestrictions))
	protected.HandleFunc("POST /api/restrictions", h.requireRole("admin", h.handleCreateRestriction))
	protected.HandleFunc("DELETE /api/restrictions/{id}", h.requireRole("admin", h.handleDeleteRestriction))

	protected.HandleFunc("GET /api/signatures", h.requireRole("analyst", h.handleListCustomSignatures))
	protected.HandleFunc("POST /api/signatures", h.requireRole("admin", h.handleCreateCustomSignature))
	protected.HandleFunc("PUT /api/signatures/{id}", h.requireRole("admin", h.handleSetCustomSignatureEnabled))

	protected.HandleFunc("POST /api/profiles", h.requireRole("analyst", h.handleCreateSuspiciousProfile))
	protected.HandleFunc("POST /api/whitelist", h.requireRole("analyst", h.handleCreateWhitelistEntry))

	protected.HandleFunc("POST /api/users", h.requireRole("admin", h.handleCreateUser))

	protected.HandleFunc("GET /api/syslogs", h.requireRole("analyst", h.handleSysLogs))

	protected.HandleFunc("GET /api/ti/{provider}", h.requireRole("analyst", h.handleTILookup))

	protected.HandleFunc("POST /api/patch/recommend", h.requireRole("analyst", h.handlePatchRecommend))
	protected.HandleFunc("GET /api/reports/{id}", h.requireRole("analyst", h.handleGetReport))
	protected.HandleFunc("GET /api/reports/{id}/download", h.requireRole("analyst", h.handleDownloadReport))

	protected.HandleFunc("GET /api/db/{table}", h.requireRole("admin", h.handleGenericList))
	protected.HandleFunc("POST /api/db/{table}", h.requireRole("admin", h.handleGenericCreate))
	protected.HandleFunc("GET /api/db/{table}/{id}", h.requireRole("admin", h.handleGenericGet))
	protected.HandleFunc("PUT /api/db/{table}/{id}", h.requireRole("admin", h.handleGenericUpdate))
	protected.HandleFunc("DELETE /api/db/{table}/{id}", h.requireRole("admin", h.handleGenericDelete))

	mux.Handle("/api/", protected)
	return mux
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("encode json response failed", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) readJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
