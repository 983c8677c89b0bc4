package agents

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chat-pipeline/internal/keywords"
	"chat-pipeline/internal/leads"
	"chat-pipeline/internal/textgen"
)

type stubGenerator struct {
	text    string
	reason  textgen.Reason
	prompts []string
}

func (s *stubGenerator) Generate(_ context.Context, prompt, _ string) textgen.Result {
	s.prompts = append(s.prompts, prompt)
	return textgen.Result{Text: s.text, Reason: s.reason}
}

type stubCatalog struct {
	preview string
	err     error
}

func (s stubCatalog) Preview(context.Context) (string, error) { return s.preview, s.err }

const preview = "Picanha - R$ 89,90/kg\nLinguiça toscana - R$ 29,90/kg\nQueijo minas - R$ 39,90/kg"

func TestDispatcher_GeneratorTextWins(t *testing.T) {
	gen := &stubGenerator{text: "Claro, temos picanha.", reason: textgen.ReasonOK}
	d := NewDispatcher(Deps{Generator: gen, Catalog: stubCatalog{preview: preview}})

	r := d.Respond(context.Background(), Request{Topic: keywords.TopicSupport, Message: "preciso trocar o endereço"})
	if !r.FromGenerator || r.Text != "Claro, temos picanha." || r.Action != ActionUpdateAddress {
		t.Fatalf("unexpected reply %+v", r)
	}
	if !strings.Contains(gen.prompts[0], "3A Frios") {
		t.Fatalf("expected company name in prompt")
	}
}

func TestDispatcher_FallbackCopyWhenGeneratorDisabled(t *testing.T) {
	d := NewDispatcher(Deps{})
	cases := []struct {
		topic  keywords.Topic
		msg    string
		action string
		text   string
	}{
		{keywords.TopicSupport, "qual o prazo de entrega?", "", "Entregas: normalmente 24-48h"},
		{keywords.TopicSupport, "quero fazer uma troca", ActionStartReturn, "troca ou devolução"},
		{keywords.TopicOrders, "quero finalizar o pedido", ActionOrder, ordersAction},
		{keywords.TopicOrders, "oi", "", ordersDefault},
		{keywords.TopicQualification, "tenho interesse", ActionQualifyLead, qualificationAction},
		{keywords.TopicQualification, "oi", "", qualificationDefault},
		{keywords.TopicCatalog, "me manda o catálogo", ActionSendCatalog, catalogDefault},
		{keywords.TopicCatalog, "vocês tem cupim?", "", catalogCheckLater},
	}
	for _, c := range cases {
		r := d.Respond(context.Background(), Request{Topic: c.topic, Message: c.msg})
		if r.FromGenerator {
			t.Fatalf("%s/%q: generator is disabled", c.topic, c.msg)
		}
		if r.Action != c.action || !strings.Contains(r.Text, c.text) {
			t.Fatalf("%s/%q: unexpected reply %+v", c.topic, c.msg, r)
		}
	}
}

func TestDispatcher_UnknownTopicGoesToSupport(t *testing.T) {
	d := NewDispatcher(Deps{})
	if r := d.Respond(context.Background(), Request{Topic: "Weather", Message: "oi"}); r.Text != supportDefault {
		t.Fatalf("unexpected reply %+v", r)
	}
}

func TestDispatcher_RecoversFromHandlerPanic(t *testing.T) {
	d := NewDispatcher(Deps{})
	d.Register(keywords.TopicOrders, HandlerFunc(func(context.Context, Request) Reply { panic("boom") }))
	if r := d.Respond(context.Background(), Request{Topic: keywords.TopicOrders, Message: "x"}); r.Text != supportDefault {
		t.Fatalf("unexpected reply %+v", r)
	}
}

func TestCatalog_ListAndSpecificProduct(t *testing.T) {
	d := NewDispatcher(Deps{Catalog: stubCatalog{preview: preview}})

	r := d.Respond(context.Background(), Request{Topic: keywords.TopicCatalog, Message: "me manda a lista de produtos"})
	if r.Action != ActionSendCatalog || !strings.Contains(r.Text, "Queijo minas") {
		t.Fatalf("unexpected list reply %+v", r)
	}

	r = d.Respond(context.Background(), Request{Topic: keywords.TopicCatalog, Message: "vocês tem picanha?"})
	if !strings.Contains(r.Text, "Picanha - R$ 89,90/kg") || strings.Contains(r.Text, "Queijo") {
		t.Fatalf("unexpected match reply %+v", r)
	}
}

func TestCatalog_PreviewErrorFallsBack(t *testing.T) {
	d := NewDispatcher(Deps{Catalog: stubCatalog{err: errors.New("disk")}})
	r := d.Respond(context.Background(), Request{Topic: keywords.TopicCatalog, Message: "bom dia"})
	if r.Text != catalogUnavailable {
		t.Fatalf("unexpected reply %+v", r)
	}
}

func TestOrders_PromptCarriesCatalogPreview(t *testing.T) {
	gen := &stubGenerator{text: "Anotado!", reason: textgen.ReasonOK}
	d := NewDispatcher(Deps{Generator: gen, Catalog: stubCatalog{preview: preview}})
	r := d.Respond(context.Background(), Request{Topic: keywords.TopicOrders, Message: "quero 2kg de picanha"})
	if r.Action != ActionOrder || !r.FromGenerator {
		t.Fatalf("unexpected reply %+v", r)
	}
	if len(gen.prompts) != 1 || !strings.Contains(gen.prompts[0], "Linguiça toscana") {
		t.Fatalf("expected catalog preview in prompt")
	}
}

func TestMarketing_Actions(t *testing.T) {
	hot := &leads.Insight{Segment: leads.SegmentIndividual, Qualification: leads.Hot, Urgency: leads.UrgencyLow}
	warm := &leads.Insight{Segment: leads.SegmentIndividual, Qualification: leads.Warm, Urgency: leads.UrgencyLow}
	biz := &leads.Insight{Segment: leads.SegmentBusiness, Qualification: leads.Warm, Urgency: leads.UrgencyLow}
	event := &leads.Insight{Segment: leads.SegmentSpecialEvent, Qualification: leads.Hot, Urgency: leads.UrgencyHigh}
	plannedEvent := &leads.Insight{Segment: leads.SegmentSpecialEvent, Qualification: leads.Warm, Urgency: leads.UrgencyMedium}

	cases := []struct {
		msg     string
		insight *leads.Insight
		want    string
	}{
		{"tem promoção para a festa?", event, ActionEventExpress},
		{"tem promoção para a festa?", plannedEvent, ActionEventPlanning},
		{"quero desconto para o restaurante", biz, ActionB2BCampaign},
		{"quero conhecer vocês", biz, ActionB2BPresentation},
		{"tem alguma promoção?", hot, ActionPremiumCustomer},
		{"tem alguma promoção?", warm, ActionWelcome},
		{"tem alguma promoção?", nil, ActionNewsletterOffers},
		{"bom dia", warm, ActionContextualOffers},
	}
	d := NewDispatcher(Deps{})
	for _, c := range cases {
		r := d.Respond(context.Background(), Request{Topic: keywords.TopicMarketing, Message: c.msg, Insight: c.insight})
		if r.Action != c.want {
			t.Fatalf("%q: expected %s, got %s", c.msg, c.want, r.Action)
		}
		if r.Text == "" {
			t.Fatalf("%q: empty fallback text", c.msg)
		}
	}
}

func TestFileCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.txt")
	if err := os.WriteFile(path, []byte("\n"+preview+"\n\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := FileCatalog{Path: path}.Preview(context.Background())
	if err != nil || got != preview {
		t.Fatalf("unexpected preview %q err=%v", got, err)
	}
	if _, err := (FileCatalog{Path: filepath.Join(t.TempDir(), "missing")}).Preview(context.Background()); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	if got := truncate("ação", 2); got != "a" {
		t.Fatalf("unexpected %q", got)
	}
}
