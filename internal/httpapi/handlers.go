package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"chat-pipeline/internal/audit"
	"chat-pipeline/internal/auth"
	"chat-pipeline/internal/campaigns"
	"chat-pipeline/internal/gateway"
	"chat-pipeline/internal/pipeline"
	"chat-pipeline/internal/rbac"
	"chat-pipeline/internal/reporting"
	"chat-pipeline/pkg/logger"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

// GatewayProbe reports the gateway's connection state and send probing order.
type GatewayProbe interface {
	State(ctx context.Context) gateway.InstanceState
	Variants() []gateway.Variant
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	Pipeline  *pipeline.Pipeline
	Campaigns *campaigns.Engine
	Templates campaigns.TemplateStore
	Settings  campaigns.SettingsStore
	Records   campaigns.Repository
	Reports   *reporting.Service
	Audit     *audit.Service
	Gateway   GatewayProbe

	// Checks run on /healthz; any failure turns the response into 503.
	Checks map[string]func(context.Context) error

	Now func() time.Time
	Log *slog.Logger
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h Handlers) log(c *gin.Context) *slog.Logger {
	if _, ok := c.Get("logger"); ok || h.Log == nil {
		return logger.FromGin(c)
	}
	return h.Log
}

// --- Webhook ---

// Webhook always answers 200 so the gateway does not retry; failures are
// reported in the body.
func (h Handlers) Webhook(c *gin.Context) {
	if h.Pipeline == nil {
		c.JSON(http.StatusOK, pipeline.Result{OK: false, Ignored: "pipeline_not_configured"})
		return
	}
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		h.log(c).Warn("webhook body unreadable", "err", err)
		c.JSON(http.StatusOK, pipeline.Result{OK: false, Ignored: "unreadable_body"})
		return
	}
	c.JSON(http.StatusOK, h.Pipeline.Handle(c.Request.Context(), raw))
}

func (h Handlers) Health(c *gin.Context) {
	status := http.StatusOK
	checks := gin.H{}
	for name, check := range h.Checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		err := check(ctx)
		cancel()
		if err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = "down"
			h.log(c).Warn("health check failed", "check", name, "err", err)
			continue
		}
		checks[name] = "ok"
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}

// --- Auth ---

type tokenRequest struct {
	APIKey     string `json:"api_key"`
	OperatorID string `json:"operator_id"`
	Role       string `json:"role"`
}

// Token exchanges the operator API key for a token pair. The key grants
// admin; a lower role may be requested.
func (h Handlers) Token(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req tokenRequest
	// An empty body is fine when the key comes in X-API-Key.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.APIKey == "" {
		req.APIKey = c.GetHeader("X-API-Key")
	}
	if req.OperatorID == "" {
		req.OperatorID = "operator"
	}
	if req.Role == "" {
		req.Role = rbac.RoleAdmin
	}
	if !rbac.Valid(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}
	pair, err := h.Auth.Exchange(req.APIKey, h.now(), req.OperatorID, req.Role)
	if errors.Is(err, auth.ErrInvalidAPIKey) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h Handlers) Refresh(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}
	pair, err := h.Auth.Refresh(req.RefreshToken, h.now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

// --- helpers ---

func actor(c *gin.Context) audit.Actor {
	id, _ := auth.OperatorID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	return audit.Actor{ID: id, Role: role, IP: c.ClientIP()}
}

// record writes an audit event. Failures are logged and never fail the request.
func (h Handlers) record(c *gin.Context, fn func(*audit.Service, audit.Actor) error) {
	if h.Audit == nil {
		return
	}
	if err := fn(h.Audit, actor(c)); err != nil {
		h.log(c).Warn("audit append failed", "err", err)
	}
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, campaigns.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, campaigns.ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, campaigns.ErrInvalidArgument),
		errors.Is(err, reporting.ErrInvalidRequest),
		errors.Is(err, pipeline.ErrInvalidReply):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
