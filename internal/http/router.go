package httpx

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taskdeck/taskdeck/internal/repository"
	"github.com/taskdeck/taskdeck/internal/service/activity"
	"github.com/taskdeck/taskdeck/internal/service/auth"
	"github.com/taskdeck/taskdeck/internal/service/billing"
	"github.com/taskdeck/taskdeck/internal/service/category"
	"github.com/taskdeck/taskdeck/internal/service/stats"
	"github.com/taskdeck/taskdeck/internal/service/task"
	"github.com/taskdeck/taskdeck/internal/service/workspace"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	auth      auth.Service
	workspace workspace.Service
	category  category.Service
	task      task.Service
	activity  activity.Service
	billing   billing.Service
	stats     stats.Service
	upgrader  websocket.Upgrader
	limiter   RateLimiter
	dbHealth  func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateWindowRealtime = 30 * time.Second
	rateLimitSignup    = 5
	rateLimitLogin     = 12
	rateLimitRefresh   = 30
	rateLimitUserWrite = 60
	rateLimitUserRead  = 120
	rateLimitExport    = 10
	rateLimitWebhook   = 120
	rateLimitWebsocket = 30
	healthCheckTimeout = 2 * time.Second
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc auth.Service, workspaceSvc workspace.Service, categorySvc category.Service, taskSvc task.Service, activitySvc activity.Service, billingSvc billing.Service, statsSvc stats.Service, limiter RateLimiter, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:       http.NewServeMux(),
		logger:    logger,
		auth:      authSvc,
		workspace: workspaceSvc,
		category:  categorySvc,
		task:      taskSvc,
		activity:  activitySvc,
		billing:   billingSvc,
		stats:     statsSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:  limiter,
		dbHealth: dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/auth/signup", r.audit("/auth/signup", r.withRateLimit("/auth/signup", rateLimitSignup, rateWindowDefault, rateLimitKeyIP, r.handleSignup)))
	r.mux.HandleFunc("/auth/login", r.audit("/auth/login", r.withRateLimit("/auth/login", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleLogin)))
	r.mux.HandleFunc("/auth/refresh", r.audit("/auth/refresh", r.withRateLimit("/auth/refresh", rateLimitRefresh, rateWindowDefault, rateLimitKeyIP, r.handleRefresh)))
	r.mux.HandleFunc("/me", r.audit("/me", r.handlerAuthRate("/me", rateLimitUserWrite, rateWindowDefault, r.handleMe)))
	r.mux.HandleFunc("/workspaces", r.audit("/workspaces", r.handlerAuthRate("/workspaces", rateLimitUserWrite, rateWindowDefault, r.handleWorkspaces)))
	r.mux.HandleFunc("/workspaces/", r.audit("/workspaces/", r.handlerAuthRate("/workspaces/", rateLimitUserWrite, rateWindowDefault, r.handleWorkspaceSubroutes)))
	r.mux.HandleFunc("/invitations/accept", r.audit("/invitations/accept", r.handlerAuthRate("/invitations/accept", rateLimitUserWrite, rateWindowDefault, r.handleAcceptInvitation)))
	r.mux.HandleFunc("/categories/", r.audit("/categories/", r.handlerAuthRate("/categories/", rateLimitUserWrite, rateWindowDefault, r.handleCategorySubroutes)))
	r.mux.HandleFunc("/tasks/", r.audit("/tasks/", r.handlerAuthRate("/tasks/", rateLimitUserWrite, rateWindowDefault, r.handleTaskSubroutes)))
	r.mux.HandleFunc("/billing/webhook", r.audit("/billing/webhook", r.withRateLimit("/billing/webhook", rateLimitWebhook, rateWindowDefault, rateLimitKeyIP, r.handleBillingWebhook)))
	r.mux.HandleFunc("/billing/", r.audit("/billing/", r.handlerAuthRate("/billing/", rateLimitUserWrite, rateWindowDefault, r.handleBilling)))
	r.mux.HandleFunc("/admin/stats", r.audit("/admin/stats", r.handlerAuthRate("/admin/stats", rateLimitUserRead, rateWindowDefault, r.handleAdminStats)))
	r.mux.HandleFunc("/ws/activity", r.audit("/ws/activity", r.handlerAuthRate("/ws/activity", rateLimitWebsocket, rateWindowRealtime, r.handleActivityWS)))
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

// serviceError maps service sentinels to HTTP statuses. Unmatched errors are
// treated as request problems; repositories surface infrastructure failures
// through their own error types.
func (r *Router) serviceError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, workspace.ErrNotMember), errors.Is(err, workspace.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, workspace.ErrWorkspaceQuota), errors.Is(err, workspace.ErrMemberQuota), errors.Is(err, task.ErrTaskQuota):
		status = http.StatusPaymentRequired
	case errors.Is(err, workspace.ErrInvitationExpired):
		status = http.StatusGone
	case errors.Is(err, workspace.ErrInvitationUsed):
		status = http.StatusConflict
	case errors.Is(err, workspace.ErrInvitationEmailMismatch):
		status = http.StatusForbidden
	// Cross-workspace references read as absent entities.
	case errors.Is(err, task.ErrWrongWorkspace), errors.Is(err, category.ErrWrongWorkspace):
		status = http.StatusNotFound
	case errors.Is(err, billing.ErrBillingDisabled):
		status = http.StatusServiceUnavailable
	case errors.Is(err, billing.ErrNoCustomer):
		status = http.StatusConflict
	case errors.Is(err, auth.ErrEmailTaken):
		status = http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	}
	writeError(w, status, err.Error())
}

// requireResourceMember checks workspace membership for a resource addressed
// by its own id. Non-members get the same 404 as a missing id so tenants
// cannot probe for foreign identifiers.
func (r *Router) requireResourceMember(w http.ResponseWriter, req *http.Request, workspaceID string, info authInfo) bool {
	if _, err := r.workspace.RequireMember(req.Context(), workspaceID, info.UserID); err != nil {
		if errors.Is(err, workspace.ErrNotMember) {
			r.notFound(w)
		} else {
			r.serviceError(w, err)
		}
		return false
	}
	return true
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)
		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", info.UserID)
		} else if strings.HasPrefix(req.URL.Path, "/billing/webhook") {
			actor = "stripe"
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (sr *statusRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := sr.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
