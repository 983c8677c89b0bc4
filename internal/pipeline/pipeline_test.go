package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chat-pipeline/internal/agents"
	"chat-pipeline/internal/campaigns"
	"chat-pipeline/internal/conversations"
	"chat-pipeline/internal/gateway"
	"chat-pipeline/internal/inbound"
	"chat-pipeline/internal/keywords"
	"chat-pipeline/internal/leads"
	"chat-pipeline/internal/routing"
)

type stubSender struct {
	mu    sync.Mutex
	sent  []string
	reply gateway.DeliveryResult
}

func (s *stubSender) Send(_ context.Context, phone, text string) gateway.DeliveryResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, phone+"|"+text)
	if s.reply.Reason == "" && !s.reply.Sent {
		return gateway.DeliveryResult{Sent: true, Variant: "v1"}
	}
	return s.reply
}

type countingRouter struct {
	calls int
	inner *routing.Router
}

func (c *countingRouter) Route(ctx context.Context, msg string, h []conversations.Turn, o string) routing.Decision {
	c.calls++
	return c.inner.Route(ctx, msg, h, o)
}

type stubCampaigns struct {
	triggers []campaigns.Trigger
}

func (s *stubCampaigns) Trigger(_ context.Context, t campaigns.Trigger) (campaigns.Record, bool) {
	s.triggers = append(s.triggers, t)
	return campaigns.Record{ID: "c1", Type: campaigns.TypeOrderFollowUp, State: campaigns.StateSent}, true
}

type failingStore struct{}

func (failingStore) FetchRecent(context.Context, string, int) ([]conversations.Turn, error) {
	return nil, errors.New("db down")
}
func (failingStore) Append(context.Context, conversations.Turn) error { return errors.New("db down") }

var fixedNow = time.Unix(1700000000, 0).UTC()

func evolution(id, phone, text string, fromMe bool) []byte {
	from := "false"
	if fromMe {
		from = "true"
	}
	return []byte(`{"event":"messages.upsert","data":{"key":{"remoteJid":"` + phone + `@s.whatsapp.net","fromMe":` + from + `,"id":"` + id + `"},"pushName":"Ana","message":{"conversation":"` + text + `"}}}`)
}

type fixture struct {
	p         *Pipeline
	sender    *stubSender
	router    *countingRouter
	history   *conversations.MemoryRepo
	campaigns *stubCampaigns
}

func newFixture() *fixture {
	f := &fixture{
		sender:    &stubSender{},
		router:    &countingRouter{inner: routing.NewRouter(nil, nil, 0, nil)},
		history:   conversations.NewMemoryRepo(),
		campaigns: &stubCampaigns{},
	}
	n := inbound.New("", nil)
	n.Now = func() time.Time { return fixedNow }
	f.p = New(Deps{
		Normalizer: n,
		History:    f.history,
		Router:     f.router,
		Campaigns:  f.campaigns,
		Sender:     f.sender,
		Now:        func() time.Time { return fixedNow },
	})
	return f
}

func TestHandle_OrdersMessageIsRoutedSentAndPersisted(t *testing.T) {
	f := newFixture()
	res := f.p.Handle(context.Background(), evolution("E1", "5511987654321", "quero 2kg de picanha", false))
	if !res.OK || len(res.Processed) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	out := res.Processed[0]
	if out.Topic != string(keywords.TopicOrders) || out.Confidence != 1 || !out.Sent {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if len(f.sender.sent) != 1 {
		t.Fatalf("expected one send, got %d", len(f.sender.sent))
	}
	turns, _ := f.history.FetchRecent(context.Background(), "5511987654321", 10)
	if len(turns) != 1 || turns[0].Topic != keywords.TopicOrders || turns[0].BotText == "" {
		t.Fatalf("unexpected turns %+v", turns)
	}
}

func TestHandle_FromMeNeverReachesRouter(t *testing.T) {
	f := newFixture()
	res := f.p.Handle(context.Background(), evolution("E1", "5511987654321", "oi", true))
	if !res.OK || res.Ignored != SkipFromMe || len(res.Processed) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if f.router.calls != 0 || len(f.sender.sent) != 0 {
		t.Fatalf("from-me event must not be routed or answered")
	}
}

func TestHandle_DuplicatesByEventIDAndContent(t *testing.T) {
	f := newFixture()
	f.p.Handle(context.Background(), evolution("E1", "5511987654321", "oi tudo bem", false))

	if res := f.p.Handle(context.Background(), evolution("E1", "5511987654321", "outra coisa", false)); res.Ignored != SkipDuplicate {
		t.Fatalf("same event id must be duplicate, got %+v", res)
	}
	if res := f.p.Handle(context.Background(), evolution("E2", "5511987654321", "  OI TUDO BEM ", false)); res.Ignored != SkipDuplicate {
		t.Fatalf("same content must be duplicate, got %+v", res)
	}
	if f.router.calls != 1 {
		t.Fatalf("expected one routed message, got %d", f.router.calls)
	}
}

func TestHandle_NoEventsAndGarbage(t *testing.T) {
	f := newFixture()
	for _, body := range []string{``, `not json`, `{"event":"presence.update"}`, `[1,2]`} {
		res := f.p.Handle(context.Background(), []byte(body))
		if !res.OK || res.Ignored != SkipNoEvents {
			t.Fatalf("%q: unexpected result %+v", body, res)
		}
	}
}

func TestHandle_ActionTriggersCampaign(t *testing.T) {
	f := newFixture()
	f.p.d.Agents = agents.HandlerFunc(func(context.Context, agents.Request) agents.Reply {
		return agents.Reply{Text: "Bem-vindo!", Action: agents.ActionWelcome}
	})
	res := f.p.Handle(context.Background(), evolution("E1", "5511987654321", "olá", false))
	if len(f.campaigns.triggers) != 1 {
		t.Fatalf("expected one trigger, got %d", len(f.campaigns.triggers))
	}
	tr := f.campaigns.triggers[0]
	if tr.Action != agents.ActionWelcome || tr.Phone != "5511987654321" || tr.CustomerName != "Ana" {
		t.Fatalf("unexpected trigger %+v", tr)
	}
	if c := res.Processed[0].Campaign; c == nil || c.ID != "c1" {
		t.Fatalf("expected campaign outcome, got %+v", res.Processed[0])
	}
}

func TestHandle_DryRunDirectiveSkipsSend(t *testing.T) {
	f := newFixture()
	body := `{"dryRun":"yes","data":{"key":{"remoteJid":"5511987654321@s.whatsapp.net","id":"E9"},"message":{"conversation":"quero 2kg de picanha"}}}`
	res := f.p.Handle(context.Background(), []byte(body))
	if len(res.Processed) != 1 || res.Processed[0].Sent || res.Processed[0].Reason != ReasonDryRun {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(f.sender.sent) != 0 {
		t.Fatalf("dry run must not send")
	}
}

func TestHandle_TargetTopicOverride(t *testing.T) {
	f := newFixture()
	body := `{"target_agent":"Marketing","data":{"key":{"remoteJid":"5511987654321@s.whatsapp.net","id":"E9"},"message":{"conversation":"quero 2kg de picanha"}}}`
	res := f.p.Handle(context.Background(), []byte(body))
	if len(res.Processed) != 1 || res.Processed[0].Topic != string(keywords.TopicMarketing) || res.Processed[0].Source != routing.SourceOverride {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestHandle_OutboundDedupSuppressesRepeatedReply(t *testing.T) {
	f := newFixture()
	f.p.d.Agents = agents.HandlerFunc(func(context.Context, agents.Request) agents.Reply {
		return agents.Reply{Text: "mesma resposta"}
	})
	f.p.Handle(context.Background(), evolution("E1", "5511987654321", "primeira", false))
	res := f.p.Handle(context.Background(), evolution("E2", "5511987654321", "segunda", false))
	if res.Processed[0].Sent || res.Processed[0].Reason != ReasonDuplicateReply {
		t.Fatalf("unexpected outcome %+v", res.Processed[0])
	}
	if len(f.sender.sent) != 1 {
		t.Fatalf("expected one send, got %d", len(f.sender.sent))
	}
}

func TestHandle_TransportFailureStillPersists(t *testing.T) {
	f := newFixture()
	f.sender.reply = gateway.DeliveryResult{Reason: gateway.ReasonExhausted, Classification: gateway.InstanceOffline}
	res := f.p.Handle(context.Background(), evolution("E1", "5511987654321", "quero 2kg de picanha", false))
	out := res.Processed[0]
	if out.Sent || out.Classification != gateway.InstanceOffline {
		t.Fatalf("unexpected outcome %+v", out)
	}
	turns, _ := f.history.FetchRecent(context.Background(), "5511987654321", 10)
	if len(turns) != 1 {
		t.Fatalf("turn must be persisted after a failed send")
	}
}

func TestHandle_StoreDownDoesNotBlockReply(t *testing.T) {
	f := newFixture()
	f.p.d.History = failingStore{}
	res := f.p.Handle(context.Background(), evolution("E1", "5511987654321", "quero 2kg de picanha", false))
	if !res.OK || len(res.Processed) != 1 || !res.Processed[0].Sent {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestHandle_PanicIsFoldedIntoResult(t *testing.T) {
	f := newFixture()
	f.p.d.Extractor = panicExtractor{}
	res := f.p.Handle(context.Background(), evolution("E1", "5511987654321", "oi", false))
	if res.OK || res.Ignored != SkipInternalError {
		t.Fatalf("unexpected result %+v", res)
	}
}

type panicExtractor struct{}

func (panicExtractor) Extract(string, []conversations.Turn) *leads.Insight { panic("boom") }

func TestManualReply_OpensManualSession(t *testing.T) {
	f := newFixture()
	if _, err := f.p.ManualReply(context.Background(), "+55 (11) 98765-4321", "  "); !errors.Is(err, ErrInvalidReply) {
		t.Fatalf("expected invalid reply, got %v", err)
	}
	res, err := f.p.ManualReply(context.Background(), "+55 (11) 98765-4321", "Oi Ana, aqui é o João")
	if err != nil || !res.Sent {
		t.Fatalf("unexpected reply result %+v err=%v", res, err)
	}

	out := f.p.Handle(context.Background(), evolution("E1", "5511987654321", "obrigada!", false))
	if out.Ignored != SkipManualSession || f.router.calls != 0 {
		t.Fatalf("expected bot silenced, got %+v", out)
	}
	if len(f.sender.sent) != 1 {
		t.Fatalf("bot must not answer during a manual session")
	}

	turns, _ := f.p.History(context.Background(), "5511987654321", 0)
	if len(turns) != 2 || !turns[1].Operator || turns[0].CustomerText != "obrigada!" {
		t.Fatalf("unexpected history %+v", turns)
	}

	f.p.d.Now = func() time.Time { return fixedNow.Add(16 * time.Minute) }
	if out := f.p.Handle(context.Background(), evolution("E2", "5511987654321", "e o frete?", false)); len(out.Processed) != 1 {
		t.Fatalf("manual session must expire, got %+v", out)
	}
}
