package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"chat-pipeline/internal/audit"
	"chat-pipeline/internal/campaigns"
	"chat-pipeline/internal/gateway"
	"chat-pipeline/internal/reporting"

	"github.com/gin-gonic/gin"
)

const defaultStatsRange = 7 * 24 * time.Hour

// --- Settings ---

func (h Handlers) GetSettings(c *gin.Context) {
	s, err := h.Settings.Get(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// PutSettings replaces the automation settings. RBAC: admin.
func (h Handlers) PutSettings(c *gin.Context) {
	var s campaigns.Settings
	if err := c.ShouldBindJSON(&s); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	s.UpdatedAt = h.now().UTC()
	if err := h.Settings.Put(c.Request.Context(), s); err != nil {
		writeError(c, err)
		return
	}
	h.record(c, func(svc *audit.Service, a audit.Actor) error {
		meta, _ := json.Marshal(s)
		return svc.LogSettingsUpdated(c.Request.Context(), a, string(meta))
	})
	saved, err := h.Settings.Get(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// --- Templates ---

func (h Handlers) ListTemplates(c *gin.Context) {
	typ := campaigns.Type(c.Query("type"))
	if typ != "" && !typ.Valid() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown campaign type"})
		return
	}
	list, err := h.Templates.List(c.Request.Context(), typ)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}

func (h Handlers) CreateTemplate(c *gin.Context) {
	var t campaigns.Template
	if err := c.ShouldBindJSON(&t); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	t.ID = ""
	h.saveTemplate(c, t, http.StatusCreated)
}

func (h Handlers) UpdateTemplate(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.Templates.Get(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	var t campaigns.Template
	if err := c.ShouldBindJSON(&t); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	t.ID = id
	h.saveTemplate(c, t, http.StatusOK)
}

func (h Handlers) saveTemplate(c *gin.Context, t campaigns.Template, status int) {
	saved, err := h.Templates.Save(c.Request.Context(), t)
	if err != nil {
		writeError(c, err)
		return
	}
	h.record(c, func(s *audit.Service, a audit.Actor) error {
		return s.LogTemplateSaved(c.Request.Context(), a, string(saved.Type), saved.ID)
	})
	c.JSON(status, saved)
}

func (h Handlers) DeleteTemplate(c *gin.Context) {
	id := c.Param("id")
	if err := h.Templates.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	h.record(c, func(s *audit.Service, a audit.Actor) error {
		return s.LogTemplateDeleted(c.Request.Context(), a, id)
	})
	c.Status(http.StatusNoContent)
}

// --- Test send ---

type testCampaignRequest struct {
	Type         campaigns.Type    `json:"type"`
	TemplateID   string            `json:"template_id"`
	Phone        string            `json:"phone"`
	CustomerName string            `json:"customer_name"`
	Variables    map[string]string `json:"variables"`
	DryRun       *bool             `json:"dry_run"`
}

// TestCampaign renders a campaign outside the automation rules. It is a dry
// run unless dry_run is explicitly false.
func (h Handlers) TestCampaign(c *gin.Context) {
	var req testCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	dry := req.DryRun == nil || *req.DryRun
	rec, err := h.Campaigns.Test(c.Request.Context(), campaigns.TestRequest{
		Type:         req.Type,
		TemplateID:   req.TemplateID,
		Phone:        req.Phone,
		CustomerName: req.CustomerName,
		Variables:    req.Variables,
		DryRun:       dry,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	h.record(c, func(s *audit.Service, a audit.Actor) error {
		return s.LogCampaignTest(c.Request.Context(), a, rec.Phone, string(rec.Type), rec.TemplateID)
	})
	c.JSON(http.StatusOK, rec)
}

// --- History and stats ---

func (h Handlers) CampaignHistory(c *gin.Context) {
	f := campaigns.Filter{
		Type:  campaigns.Type(c.Query("type")),
		Phone: c.Query("phone"),
		State: campaigns.State(c.Query("state")),
	}
	var err error
	if f.From, err = parseTime(c.Query("from")); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
		return
	}
	if f.To, err = parseTime(c.Query("to")); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
		return
	}
	f.Limit, _ = strconv.Atoi(c.Query("limit"))
	f.Offset, _ = strconv.Atoi(c.Query("offset"))

	items, total, err := h.Records.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "limit": f.Limit, "offset": f.Offset})
}

// CampaignStats summarizes records in [from, to). The range defaults to the
// last seven days.
func (h Handlers) CampaignStats(c *gin.Context) {
	from, err := parseTime(c.Query("from"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
		return
	}
	to, err := parseTime(c.Query("to"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
		return
	}
	if to.IsZero() {
		to = h.now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-defaultStatsRange)
	}
	out, err := h.Reports.CampaignStats(c.Request.Context(), reporting.CampaignStatsRequest{
		Range: reporting.TimeRange{From: from, To: to},
		Type:  c.Query("type"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) CampaignTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": campaigns.Types})
}

func (h Handlers) CampaignVariables(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"groups": campaigns.VariableCatalogue})
}

// --- Gateway and audit ---

func (h Handlers) GatewayState(c *gin.Context) {
	if h.Gateway == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "gateway not configured"})
		return
	}
	vs := h.Gateway.Variants()
	ids := make([]string, 0, len(vs))
	for _, v := range vs {
		ids = append(ids, v.ID)
	}
	c.JSON(http.StatusOK, gatewayStateResponse{
		InstanceState: h.Gateway.State(c.Request.Context()),
		Variants:      ids,
	})
}

type gatewayStateResponse struct {
	gateway.InstanceState
	// Variants is the order Send probes request shapes in.
	Variants []string `json:"variants"`
}

// AuditLog lists recent operator actions. RBAC: admin.
func (h Handlers) AuditLog(c *gin.Context) {
	if h.Audit == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "audit not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	evs, err := h.Audit.Recent(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": evs})
}
