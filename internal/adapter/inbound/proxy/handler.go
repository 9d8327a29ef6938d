// Package proxy implements the Detection Pipeline: the reverse-proxy HTTP
// handler that inspects every inbound request, classifies it against the
// verdict ladder, journals it (safe requests only while log_safe_traffic is
// on), and forwards everything it doesn't block to the single protected
// upstream.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	vigilcel "github.com/vigilwaf/vigil/internal/adapter/outbound/cel"
	"github.com/vigilwaf/vigil/internal/domain/mlscore"
	"github.com/vigilwaf/vigil/internal/domain/record"
	"github.com/vigilwaf/vigil/internal/domain/signature"
	"github.com/vigilwaf/vigil/internal/domain/verdict"
	outbound "github.com/vigilwaf/vigil/internal/port/outbound"
)

// hopByHopHeaders must never be forwarded to the upstream (RFC 2616 §13.5.1).
var hopByHopHeaders = []string{
	"Connection", "Proxy-Authorization", "Proxy-Connection",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

// maxBodyBytes bounds how much of a request body the pipeline will buffer
// for inspection; larger bodies are still forwarded, but only the captured
// prefix is scanned and scored. The journal keeps the first 8 KiB of the body.
const maxBodyBytes = 1 << 20 // 1MiB

// IngestForwarder posts a Request Record to the Control Plane's ingest
// endpoint. Implemented over plain net/http in the service wiring layer.
type IngestForwarder interface {
	Forward(ctx context.Context, rec record.Record) error
}

// mlClientBox wraps mlscore.Client so it can live in an atomic.Value: the
// concrete type stored there must never change between Store calls, which a
// bare interface field can't guarantee once mlClient becomes swappable at
// runtime (it may hold a live *mlclient.Client or be nil).
type mlClientBox struct{ client mlscore.Client }

// Handler is the Detection Pipeline's single entry point.
type Handler struct {
	upstream       atomic.Value // *url.URL
	client         *http.Client
	signatures     *signature.Engine
	custom         *CustomSignatureSet
	mlClient       atomic.Value // *mlClientBox
	scoreCache     mlscore.Cache
	thresholds     atomic.Value // verdict.Thresholds
	logSafeTraffic atomic.Bool
	journal        outbound.Journal
	ingest         IngestForwarder
	logger         *slog.Logger
}

// New builds a Handler forwarding to upstream.
func New(upstream *url.URL, timeout time.Duration, sig *signature.Engine, custom *CustomSignatureSet, mlClient mlscore.Client, scoreCache mlscore.Cache, thresholds verdict.Thresholds, journal outbound.Journal, ingest IngestForwarder, logger *slog.Logger) *Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	h := &Handler{
		client:     &http.Client{Timeout: timeout, CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }},
		signatures: sig,
		custom:     custom,
		scoreCache: scoreCache,
		journal:    journal,
		ingest:     ingest,
		logger:     logger,
	}
	h.upstream.Store(upstream)
	h.mlClient.Store(&mlClientBox{client: mlClient})
	h.thresholds.Store(thresholds)
	h.logSafeTraffic.Store(true) // matches the reference implementation's WAF_SETTINGS default
	return h
}

// SetThresholds atomically replaces the thresholds the next request
// classifies against. Called by serve.go's syncThresholds loop with the
// values set through the Control Plane's settings endpoint.
func (h *Handler) SetThresholds(t verdict.Thresholds) {
	h.thresholds.Store(t)
}

// SetUpstream atomically replaces the reverse-proxy target the next request
// forwards to. Called by serve.go's syncSettings loop with the values set
// through the Control Plane's settings endpoint.
func (h *Handler) SetUpstream(u *url.URL) {
	h.upstream.Store(u)
}

// SetMLClient atomically replaces the ML scoring backend; client may be nil
// to disable ML scoring entirely (signature-only mode).
func (h *Handler) SetMLClient(client mlscore.Client) {
	h.mlClient.Store(&mlClientBox{client: client})
}

// SetLogSafeTraffic controls whether verdict-safe records are journaled and
// ingested, alongside the always-journaled non-safe ones.
func (h *Handler) SetLogSafeTraffic(on bool) {
	h.logSafeTraffic.Store(on)
}

// ServeHTTP runs the full detection pipeline: capture, scan, score,
// classify, forward, journal.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	// body holds the full request body, forwarded to the upstream unmodified
	// regardless of size; inspectBody is the (possibly truncated) prefix
	// that signature scanning and ML scoring actually look at. The journaled
	// record keeps only the first 8 KiB of body.
	var body []byte
	if r.Body != nil {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "read_body_failed", err.Error())
			return
		}
		body = data
		r.Body = io.NopCloser(bytes.NewReader(body))
	}
	inspectBody := body
	if len(inspectBody) > maxBodyBytes {
		inspectBody = inspectBody[:maxBodyBytes]
	}

	decodedPath := decodeOrRaw(r.URL.Path)
	decodedQuery := decodeOrRaw(r.URL.RawQuery)
	decodedPathAndQuery := decodedPath
	if decodedQuery != "" {
		decodedPathAndQuery += "?" + decodedQuery
	}

	signatureID := ""
	if match, hit := h.signatures.Scan(r.URL.Path, r.URL.RawQuery, inspectBody); hit {
		signatureID = match.SignatureID
	}
	if signatureID == "" && h.custom != nil {
		if id, hit := h.custom.Scan(vigilcel.RequestAttributes{
			Method:      r.Method,
			Path:        decodedPath,
			Query:       decodedQuery,
			Body:        string(inspectBody),
			ContentType: r.Header.Get("Content-Type"),
			Headers:     flattenHeaders(r.Header),
		}); hit {
			signatureID = id
		}
	}

	var score float64
	var band verdict.Band
	var v record.Verdict
	var scorePtr *float64

	if signatureID != "" {
		thresholds := h.thresholds.Load().(verdict.Thresholds)
		v, band = verdict.Classify(thresholds, signatureID, 0)
	} else {
		fingerprint := mlscore.Fingerprint(decodedPathAndQuery, inspectBody)
		cached, hit := h.scoreCache.Get(fingerprint)
		mlClient := h.mlClient.Load().(*mlClientBox).client
		if hit {
			score = cached
		} else if mlClient != nil {
			s, unavailable, err := mlClient.Score(r.Context(), decodedPathAndQuery, inspectBody)
			if err != nil {
				h.logger.Error("ml score call failed", "error", err)
			}
			if !unavailable && err == nil {
				score = s
				h.scoreCache.Put(fingerprint, score)
			}
		}
		thresholds := h.thresholds.Load().(verdict.Thresholds)
		v, band = verdict.Classify(thresholds, "", score)
		scorePtr = &score
	}

	var reason string
	if signatureID != "" {
		reason = verdict.ReasonForSignature(signatureID)
	} else {
		reason = verdict.ReasonForScore(score, band)
	}

	rec := record.Record{
		Timestamp: started,
		ClientIP:  clientIP(r),
		Method:    r.Method,
		URL:       decodedPathAndQuery,
		Headers:   flattenHeaders(r.Header),
		Body:      truncate(body, 8192),
		Verdict:   v,
		Reason:    reason,
		Score:     scorePtr,
	}

	if v == record.VerdictBlocked {
		h.block(w, signatureID, scorePtr)
		h.journalAndForwardIngest(r.Context(), rec)
		return
	}

	rec.UpstreamStatus = h.forward(w, r, body)
	h.journalAndForwardIngest(r.Context(), rec)
}

// journalAndForwardIngest appends rec to the journal and, if it's non-safe,
// forwards it to the Control Plane's ingest endpoint. A safe-verdict record
// is only journaled when the live log_safe_traffic setting is on; it's
// never forwarded to ingest regardless, since ingest only carries
// non-safe traffic into the Event Store's alerting path.
func (h *Handler) journalAndForwardIngest(ctx context.Context, rec record.Record) {
	if rec.Verdict == record.VerdictSafe && !h.logSafeTraffic.Load() {
		return
	}
	if err := h.journal.Append(rec); err != nil {
		h.logger.Error("journal append failed", "error", err)
	}
	if rec.NonSafe() && h.ingest != nil {
		if err := h.ingest.Forward(ctx, rec); err != nil {
			h.logger.Warn("ingest forward failed", "error", err)
		}
	}
}

// block writes the 403 wire response: {"detail": "<why>", "id"|"score": ...}.
// id is the signature that matched; score is the ML score that crossed a
// blocking threshold. Exactly one of the two is present, never both.
func (h *Handler) block(w http.ResponseWriter, signatureID string, score *float64) {
	body := map[string]any{}
	if signatureID != "" {
		body["detail"] = "Blocked by signature"
		body["id"] = signatureID
	} else {
		body["detail"] = "Blocked and reported"
		if score != nil {
			body["score"] = *score
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(body)
}

// forward proxies the request to the single configured upstream, returning
// the upstream status code (0 if the upstream request could not be built,
// 502 if the upstream was unreachable).
func (h *Handler) forward(w http.ResponseWriter, r *http.Request, body []byte) int {
	upstream := h.upstream.Load().(*url.URL)
	target := *upstream
	target.Path = singleJoiningSlash(upstream.Path, r.URL.Path)
	target.RawQuery = r.URL.RawQuery

	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), bytes.NewReader(body))
	if err != nil {
		h.logger.Error("build upstream request failed", "error", err)
		writeJSONError(w, http.StatusBadGateway, "gateway_error", "failed to create upstream request")
		return 0
	}

	for key, values := range r.Header {
		for _, v := range values {
			outReq.Header.Add(key, v)
		}
	}
	for _, hh := range hopByHopHeaders {
		outReq.Header.Del(hh)
	}

	ip, _, _ := net.SplitHostPort(r.RemoteAddr)
	if ip == "" {
		ip = r.RemoteAddr
	}
	if prior := outReq.Header.Get("X-Forwarded-For"); prior != "" {
		outReq.Header.Set("X-Forwarded-For", prior+", "+ip)
	} else {
		outReq.Header.Set("X-Forwarded-For", ip)
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	outReq.Header.Set("X-Forwarded-Proto", scheme)
	outReq.Header.Set("X-Forwarded-Host", r.Host)

	resp, err := h.client.Do(outReq)
	if err != nil {
		h.logger.Error("upstream unreachable", "error", err, "upstream", upstream.String())
		writeJSONError(w, http.StatusBadGateway, "gateway_error", "upstream unreachable")
		return http.StatusBadGateway
	}
	defer func() { _ = resp.Body.Close() }()

	for key, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Debug("error copying upstream response body", "error", err)
	}
	return resp.StatusCode
}

func writeJSONError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": errType, "message": message})
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func decodeOrRaw(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func truncate(b []byte, max int) []byte {
	if len(b) <= max {
		return b
	}
	return b[:max]
}

func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}
