package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chat-pipeline/internal/audit"
	"chat-pipeline/internal/auth"
	"chat-pipeline/internal/campaigns"
	"chat-pipeline/internal/config"
	"chat-pipeline/internal/gateway"
	"chat-pipeline/internal/pipeline"
	"chat-pipeline/internal/reporting"

	"github.com/gin-gonic/gin"
)

var fixedNow = time.Unix(1700000000, 0).UTC()

type okSender struct{ calls int }

func (s *okSender) Send(context.Context, string, string) gateway.DeliveryResult {
	s.calls++
	return gateway.DeliveryResult{Sent: true, Variant: "v1"}
}

type stubProbe struct{}

func (stubProbe) State(context.Context) gateway.InstanceState {
	return gateway.InstanceState{Instance: "inst-1", State: "open", Status: 200}
}

func (stubProbe) Variants() []gateway.Variant {
	return []gateway.Variant{{ID: "apikey/path/number/text"}, {ID: "bearer/body/phone/message"}}
}

type fixture struct {
	h       Handlers
	sender  *okSender
	audit   *audit.MemoryRepo
	records *campaigns.MemoryRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
		OperatorAPIKey:  "op-key",
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	f := &fixture{sender: &okSender{}, audit: audit.NewMemoryRepo(), records: campaigns.NewMemoryRepo()}
	templates := campaigns.NewMemoryTemplates()
	if err := campaigns.SeedDefaults(context.Background(), templates); err != nil {
		t.Fatalf("seed: %v", err)
	}
	settings := campaigns.NewMemorySettings(campaigns.DefaultSettings())
	engine := campaigns.NewEngine(campaigns.Deps{
		Records:   f.records,
		Templates: templates,
		Settings:  settings,
		Sender:    f.sender,
		Now:       func() time.Time { return fixedNow },
	})
	f.h = Handlers{
		Auth:      m,
		Pipeline:  pipeline.New(pipeline.Deps{Sender: f.sender, Now: func() time.Time { return fixedNow }}),
		Campaigns: engine,
		Templates: templates,
		Settings:  settings,
		Records:   f.records,
		Reports:   reporting.NewService(reporting.CampaignSource{Records: f.records}),
		Audit:     audit.NewService(f.audit),
		Gateway:   stubProbe{},
		Now:       func() time.Time { return fixedNow },
	}
	return f
}

// asOperator mounts handler behind a middleware that injects an identity.
func asOperator(method, path string, handler gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Handle(method, path, func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), "op-1", "admin"))
		c.Next()
	}, handler)
	return r
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return out
}

func TestWebhook_AlwaysOK(t *testing.T) {
	f := newFixture(t)
	r := gin.New()
	r.POST("/webhook", f.h.Webhook)

	w := do(r, http.MethodPost, "/webhook", `garbage`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if res := decode[pipeline.Result](t, w); !res.OK || res.Ignored != pipeline.SkipNoEvents {
		t.Fatalf("unexpected result %+v", res)
	}

	body := `{"data":{"key":{"remoteJid":"5511987654321@s.whatsapp.net","id":"E1"},"message":{"conversation":"quero 2kg de picanha"}}}`
	w = do(r, http.MethodPost, "/webhook", body)
	res := decode[pipeline.Result](t, w)
	if w.Code != http.StatusOK || len(res.Processed) != 1 || !res.Processed[0].Sent {
		t.Fatalf("unexpected result %d %+v", w.Code, res)
	}

	f.h.Pipeline = nil
	if w := do(r, http.MethodPost, "/webhook", body); w.Code != http.StatusOK {
		t.Fatalf("unconfigured pipeline must still answer 200, got %d", w.Code)
	}
}

func TestHealth_ReportsFailingChecks(t *testing.T) {
	f := newFixture(t)
	f.h.Checks = map[string]func(context.Context) error{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("down") },
	}
	r := gin.New()
	r.GET("/healthz", f.h.Health)
	w := do(r, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), `"redis":"down"`) {
		t.Fatalf("unexpected %d %s", w.Code, w.Body.String())
	}
}

func TestToken_ExchangeAndRefresh(t *testing.T) {
	f := newFixture(t)
	r := gin.New()
	r.POST("/token", f.h.Token)
	r.POST("/refresh", f.h.Refresh)

	if w := do(r, http.MethodPost, "/token", `{"api_key":"nope"}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/token", `{"api_key":"op-key","role":"root"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown role, got %d", w.Code)
	}
	w := do(r, http.MethodPost, "/token", `{"api_key":"op-key","operator_id":"joao","role":"analyst"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	pair := decode[auth.TokenPair](t, w)
	claims, err := f.h.Auth.Verify(pair.AccessToken, auth.TokenTypeAccess, time.Now())
	if err != nil || claims.OperatorID != "joao" || claims.Role != "analyst" {
		t.Fatalf("unexpected claims %+v err=%v", claims, err)
	}

	w = do(r, http.MethodPost, "/refresh", `{"refresh_token":"`+pair.RefreshToken+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected refresh 200, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/refresh", `{"refresh_token":"`+pair.AccessToken+`"}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("access token must not refresh, got %d", w.Code)
	}
}

func TestToken_HeaderKeyWithEmptyBody(t *testing.T) {
	f := newFixture(t)
	r := gin.New()
	r.POST("/token", f.h.Token)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/token", nil)
	req.Header.Set("X-API-Key", "op-key")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	pair := decode[auth.TokenPair](t, w)
	if claims, err := f.h.Auth.Verify(pair.AccessToken, auth.TokenTypeAccess, time.Now()); err != nil || claims.Role != "admin" {
		t.Fatalf("unexpected claims %+v err=%v", claims, err)
	}

	if w := do(r, http.MethodPost, "/token", `{"api_key":`); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed json must still be rejected, got %d", w.Code)
	}
}

func TestManualReply_SendsAuditsAndSilencesBot(t *testing.T) {
	f := newFixture(t)
	r := asOperator(http.MethodPost, "/v1/conversations/:phone/reply", f.h.ManualReply)

	if w := do(r, http.MethodPost, "/v1/conversations/5511987654321/reply", `{"text":""}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	w := do(r, http.MethodPost, "/v1/conversations/5511987654321/reply", `{"text":"Oi, aqui é o João"}`)
	if w.Code != http.StatusOK || f.sender.calls != 1 {
		t.Fatalf("unexpected %d %s", w.Code, w.Body.String())
	}
	evs := f.audit.Events()
	if len(evs) != 1 || evs[0].Type != audit.EventTypeManualReply || evs[0].ActorID != "op-1" {
		t.Fatalf("unexpected audit %+v", evs)
	}

	hr := asOperator(http.MethodGet, "/v1/conversations/:phone/history", f.h.ConversationHistory)
	w = do(hr, http.MethodGet, "/v1/conversations/5511987654321/history", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"operator":true`) {
		t.Fatalf("unexpected history %d %s", w.Code, w.Body.String())
	}
}

func TestSettings_PutValidatesAndAudits(t *testing.T) {
	f := newFixture(t)
	r := asOperator(http.MethodPut, "/settings", f.h.PutSettings)

	if w := do(r, http.MethodPut, "/settings", `{"send_window":{"start":"25:00","end":"18:00"}}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	w := do(r, http.MethodPut, "/settings", `{"automation_enabled":true,"max_per_phone_per_day":2,"types":{"cross_sell":{"enabled":true}}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	s := decode[campaigns.Settings](t, w)
	if !s.AutomationEnabled || s.MaxPerPhonePerDay != 2 || s.RepeatWindowHours != 24 {
		t.Fatalf("unexpected settings %+v", s)
	}
	if evs := f.audit.Events(); len(evs) != 1 || evs[0].Type != audit.EventTypeSettingsUpdated {
		t.Fatalf("unexpected audit %+v", evs)
	}
}

func TestTemplates_CRUD(t *testing.T) {
	f := newFixture(t)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), "op-1", "admin"))
		c.Next()
	})
	r.GET("/templates", f.h.ListTemplates)
	r.POST("/templates", f.h.CreateTemplate)
	r.PUT("/templates/:id", f.h.UpdateTemplate)
	r.DELETE("/templates/:id", f.h.DeleteTemplate)

	if w := do(r, http.MethodPost, "/templates", `{"type":"nope","name":"x","body":"y"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	w := do(r, http.MethodPost, "/templates", `{"type":"cross_sell","name":"Combo","title":"Oi {customer_name}","body":"Leve {product_interest}","active":true,"default":true}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", w.Code, w.Body.String())
	}
	created := decode[campaigns.Template](t, w)
	if created.ID == "" || len(created.Variables) != 2 {
		t.Fatalf("unexpected template %+v", created)
	}

	w = do(r, http.MethodGet, "/templates?type=cross_sell", "")
	list := decode[struct{ Items []campaigns.Template }](t, w)
	defaults := 0
	for _, tpl := range list.Items {
		if tpl.Default {
			defaults++
		}
	}
	if defaults != 1 {
		t.Fatalf("expected exactly one default, got %d", defaults)
	}

	if w := do(r, http.MethodPut, "/templates/missing", `{"type":"cross_sell","name":"x","body":"y"}`); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := do(r, http.MethodDelete, "/templates/"+created.ID, ""); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if evs := f.audit.Events(); len(evs) != 2 || evs[1].Type != audit.EventTypeTemplateDeleted {
		t.Fatalf("unexpected audit %+v", evs)
	}
}

func TestTestCampaign_DryRunByDefault(t *testing.T) {
	f := newFixture(t)
	r := asOperator(http.MethodPost, "/test", f.h.TestCampaign)

	w := do(r, http.MethodPost, "/test", `{"type":"cross_sell","phone":"5511987654321","customer_name":"Ana"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	rec := decode[campaigns.Record](t, w)
	if !rec.DryRun || rec.Reason != campaigns.ReasonDryRun || f.sender.calls != 0 {
		t.Fatalf("unexpected record %+v (sends=%d)", rec, f.sender.calls)
	}

	w = do(r, http.MethodPost, "/test", `{"type":"cross_sell","phone":"5511987654321","dry_run":false}`)
	rec = decode[campaigns.Record](t, w)
	if rec.State != campaigns.StateSent || f.sender.calls != 1 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if w := do(r, http.MethodPost, "/test", `{"type":"bogus","phone":"1"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCampaignHistoryAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i, st := range []campaigns.State{campaigns.StateSent, campaigns.StateFailed, campaigns.StateIneligible} {
		_ = f.records.Append(ctx, campaigns.Record{
			ID: string(rune('a' + i)), Type: campaigns.TypeCrossSell, Phone: "5511987654321",
			State: st, CreatedAt: fixedNow.Add(-time.Hour),
		})
	}

	r := gin.New()
	r.GET("/history", f.h.CampaignHistory)
	r.GET("/stats", f.h.CampaignStats)

	w := do(r, http.MethodGet, "/history?state=Sent&limit=10", "")
	hist := decode[struct {
		Items []campaigns.Record
		Total int
	}](t, w)
	if w.Code != http.StatusOK || hist.Total != 1 || len(hist.Items) != 1 {
		t.Fatalf("unexpected history %d %+v", w.Code, hist)
	}
	if w := do(r, http.MethodGet, "/history?from=yesterday", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	w = do(r, http.MethodGet, "/stats", "")
	stats := decode[reporting.CampaignStats](t, w)
	if w.Code != http.StatusOK || stats.Total != 3 || stats.SuccessRate != 0.5 {
		t.Fatalf("unexpected stats %d %+v", w.Code, stats)
	}
	if w := do(r, http.MethodGet, "/stats?type=bogus", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCatalogueEndpointsAndGatewayState(t *testing.T) {
	f := newFixture(t)
	r := gin.New()
	r.GET("/types", f.h.CampaignTypes)
	r.GET("/variables", f.h.CampaignVariables)
	r.GET("/gateway", f.h.GatewayState)

	types := decode[struct{ Items []campaigns.TypeInfo }](t, do(r, http.MethodGet, "/types", ""))
	if len(types.Items) != 8 {
		t.Fatalf("expected 8 types, got %d", len(types.Items))
	}
	vars := decode[struct{ Groups map[string][]string }](t, do(r, http.MethodGet, "/variables", ""))
	if len(vars.Groups["offer"]) == 0 {
		t.Fatalf("expected offer variables")
	}
	st := decode[struct {
		gateway.InstanceState
		Variants []string
	}](t, do(r, http.MethodGet, "/gateway", ""))
	if st.State != "open" || len(st.Variants) != 2 || st.Variants[0] != "apikey/path/number/text" {
		t.Fatalf("unexpected state %+v", st)
	}
}
