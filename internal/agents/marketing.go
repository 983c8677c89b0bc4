package agents

import (
	"context"
	"fmt"

	"chat-pipeline/internal/leads"
)

var (
	marketingTerms = []string{
		"campanha", "promoção", "promocao", "desconto", "marketing", "anúncio", "anuncio",
		"newsletter", "oferta", "ofertas", "cupom", "promotion", "discount", "coupon", "offer", "deal",
	}
	marketingForceTerms = []string{"desconto", "parceria", "restaurante", "discount", "partnership"}
	eventTerms          = []string{"evento", "festa", "churrasco", "aniversário", "aniversario", "casamento", "confraternização", "party", "event", "barbecue"}
	expressTerms        = []string{"amanhã", "amanha", "urgente", "hoje", "tomorrow", "urgent", "today"}
	firstTimeTerms      = []string{"primeira", "primeira vez", "first time"}
)

// marketingHandler picks an offer based on the lead insight:
// events first, then business accounts, then individuals by qualification.
type marketingHandler struct{ deps Deps }

func (h *marketingHandler) Respond(ctx context.Context, req Request) Reply {
	text := lower(req.Message)
	in := req.Insight

	intent := containsAny(text, marketingTerms...)
	forced := containsAny(text, marketingForceTerms...)
	event := (in != nil && in.Segment == leads.SegmentSpecialEvent) ||
		(containsAny(text, eventTerms...) && !containsAny(text, firstTimeTerms...))

	action, fallback := h.decide(text, in, intent || forced, event)

	prompt := fmt.Sprintf("Você é do marketing da %s. Responda em português do Brasil, sem emojis, em até 3 frases. "+
		"Contexto do cliente: %s. Seja comercial e objetivo, sem prometer valores que não estão no catálogo.",
		h.deps.CompanyName, describe(in))
	if res := h.deps.Generator.Generate(ctx, prompt, req.Message); res.OK() {
		return Reply{Text: res.Text, Action: action, FromGenerator: true}
	}
	return Reply{Text: fallback, Action: action}
}

func (h *marketingHandler) decide(text string, in *leads.Insight, intent, event bool) (string, string) {
	switch {
	case event:
		if (in != nil && in.Urgency == leads.UrgencyHigh) || containsAny(text, expressTerms...) {
			return ActionEventExpress, "Atendemos eventos com entrega expressa. Me diga a data, o local e o número de convidados."
		}
		return ActionEventPlanning, "Montamos pacotes para eventos com antecedência e condição especial. Quantas pessoas e para quando?"
	case in != nil && in.Segment == leads.SegmentBusiness:
		if intent {
			return ActionB2BCampaign, "Temos condições exclusivas para empresas e restaurantes. Posso montar uma proposta com desconto por volume."
		}
		return ActionB2BPresentation, "Atendemos empresas com tabela diferenciada e entrega programada. Posso enviar nossa apresentação comercial."
	case !intent:
		return ActionContextualOffers, "Separei algumas ofertas da semana que combinam com o que você procura."
	case in == nil && !containsAny(text, firstTimeTerms...):
		return ActionNewsletterOffers, "Posso te incluir na nossa lista de ofertas semanais. Quer receber as promoções por aqui?"
	case in != nil && in.Qualification == leads.Hot:
		return ActionPremiumCustomer, "Para clientes especiais temos condições exclusivas nesta semana. Posso reservar para você?"
	default:
		return ActionWelcome, "Seja bem-vindo! Na primeira compra você ganha uma condição especial. Quer ver as ofertas?"
	}
}

func describe(in *leads.Insight) string {
	if in == nil {
		return "sem sinais de perfil"
	}
	s := fmt.Sprintf("segmento %s, urgência %s, qualificação %s", in.Segment, in.Urgency, in.Qualification)
	if in.Headcount != nil {
		s += fmt.Sprintf(", %d pessoas", *in.Headcount)
	}
	if in.BusinessType != "" {
		s += ", negócio " + in.BusinessType
	}
	return s
}
