package agents

import (
	"context"
	"fmt"
	"strings"
)

const (
	supportDefault       = "Sou o atendimento. Ajudo com prazos, entregas, trocas e suporte."
	ordersDefault        = "Sou do time de pedidos. Ajudo a criar e atualizar pedidos."
	ordersAction         = "Vamos criar ou atualizar seu pedido. Informe os itens e quantidades."
	qualificationDefault = "Quero entender melhor seu interesse e perfil para te atender bem."
	qualificationAction  = "Vou te fazer algumas perguntas rápidas para entender sua necessidade."
	catalogDefault       = "Aqui está nosso catálogo atualizado com produtos e preços."
	catalogUnavailable   = "No momento não consegui acessar o catálogo. Posso enviar a lista completa em seguida."
	catalogCheckLater    = "Vou verificar a disponibilidade deste produto e retorno em seguida."
)

type supportHandler struct{ deps Deps }

func (h *supportHandler) Respond(ctx context.Context, req Request) Reply {
	text := lower(req.Message)
	var action string
	switch {
	case containsAny(text, "endereço", "endereco", "address"):
		action = ActionUpdateAddress
	case containsAny(text, "troca", "devolução", "devolucao", "return", "refund", "exchange"):
		action = ActionStartReturn
	}

	prompt := fmt.Sprintf("Você é o atendimento da %s. Trate prazos e status de entrega, trocas e devoluções, "+
		"atualização de endereço e orientações gerais. Responda em português do Brasil, de forma breve e objetiva. "+
		"Peça apenas os dados mínimos necessários e não invente informações.", h.deps.CompanyName)
	if res := h.deps.Generator.Generate(ctx, prompt, req.Message); res.OK() {
		return Reply{Text: res.Text, Action: action, FromGenerator: true}
	}

	reply := supportDefault
	switch {
	case action == ActionUpdateAddress:
		reply = "Posso atualizar seu endereço. Me informe o novo endereço completo."
	case action == ActionStartReturn:
		reply = "Vamos iniciar o processo de troca ou devolução e checar a elegibilidade."
	case containsAny(text, "prazo", "entrega", "horário", "horario", "delivery"):
		reply = "Entregas: normalmente 24-48h na região. Quer confirmar seu CEP?"
	}
	return Reply{Text: reply, Action: action}
}

type ordersHandler struct{ deps Deps }

func (h *ordersHandler) Respond(ctx context.Context, req Request) Reply {
	text := lower(req.Message)
	var action string
	if containsAny(text, "pedido", "comprar", "finalizar", "ordem", "adicionar", "carrinho", "quero", "order", "buy", "cart") {
		action = ActionOrder
	}

	if preview, err := h.deps.Catalog.Preview(ctx); err == nil && preview != "" {
		prompt := fmt.Sprintf("Você é do time de pedidos da %s. Quando pedirem itens, valide nomes e quantidades "+
			"com base na prévia do catálogo. Se faltar informação, peça de forma objetiva.\n\nCatálogo (prévia):\n%s",
			h.deps.CompanyName, truncate(preview, 1200))
		if res := h.deps.Generator.Generate(ctx, prompt, req.Message); res.OK() {
			return Reply{Text: res.Text, Action: action, FromGenerator: true}
		}
	}
	if action != "" {
		return Reply{Text: ordersAction, Action: action}
	}
	return Reply{Text: ordersDefault}
}

type qualificationHandler struct{}

func (qualificationHandler) Respond(_ context.Context, req Request) Reply {
	if containsAny(lower(req.Message), "qualificar", "interesse", "orçamento", "orcamento", "perfil", "segmento", "quote", "budget") {
		return Reply{Text: qualificationAction, Action: ActionQualifyLead}
	}
	return Reply{Text: qualificationDefault}
}

type catalogHandler struct{ deps Deps }

func (h *catalogHandler) Respond(ctx context.Context, req Request) Reply {
	text := lower(req.Message)
	specific := containsAny(text, "tem", "possui", "vende", "quanto custa", "preço de", "valor do", "do you have", "how much")
	listRequest := containsAny(text, "catálogo", "catalogo", "produtos", "preços", "disponibilidade", "lista", "catalog", "menu", "cardápio")
	var action string
	if listRequest {
		action = ActionSendCatalog
	}

	preview, err := h.deps.Catalog.Preview(ctx)
	if err != nil {
		h.deps.Log.Warn("catalog preview unavailable", "err", err)
	}
	lines := previewLines(preview)

	switch {
	case len(lines) == 0 && listRequest:
		return Reply{Text: catalogDefault, Action: action}
	case len(lines) == 0 && specific:
		return Reply{Text: catalogCheckLater}
	case len(lines) == 0:
		return Reply{Text: catalogUnavailable}
	case listRequest:
		return Reply{Text: catalogDefault + "\n" + strings.Join(head(lines, 12), "\n"), Action: action}
	case specific:
		if matches := matchLines(text, lines, 6); len(matches) > 0 {
			return Reply{Text: "Encontrei estes itens relacionados:\n" + strings.Join(matches, "\n")}
		}
		prompt := fmt.Sprintf("Você é o catálogo da %s. Procure no catálogo abaixo o produto que o cliente pergunta. "+
			"Se encontrar, informe descrição e preço. Se não encontrar, diga que verificará a disponibilidade.\n\n"+
			"Catálogo (produtos e preços):\n%s", h.deps.CompanyName, truncate(preview, 1500))
		if res := h.deps.Generator.Generate(ctx, prompt, req.Message); res.OK() {
			return Reply{Text: res.Text, FromGenerator: true}
		}
		return Reply{Text: catalogCheckLater}
	default:
		prompt := fmt.Sprintf("Você é o catálogo da %s. Use o catálogo abaixo para apresentar os principais "+
			"produtos e preços de forma organizada e clara.\n\nCatálogo (produtos e preços):\n%s",
			h.deps.CompanyName, truncate(preview, 1500))
		if res := h.deps.Generator.Generate(ctx, prompt, req.Message); res.OK() {
			return Reply{Text: res.Text, FromGenerator: true}
		}
		return Reply{Text: catalogDefault + "\n" + strings.Join(head(lines, 12), "\n")}
	}
}

// matchLines returns preview lines sharing a word of 3+ letters with text.
func matchLines(text string, lines []string, limit int) []string {
	var tokens []string
	for _, f := range strings.Fields(text) {
		f = strings.Trim(f, "?!.,;:")
		if len([]rune(f)) >= 3 {
			tokens = append(tokens, f)
		}
	}
	var out []string
	for _, l := range lines {
		ll := strings.ToLower(l)
		for _, tok := range tokens {
			if strings.Contains(ll, tok) {
				out = append(out, l)
				break
			}
		}
		if len(out) >= limit {
			break
		}
	}
	return out
}

func head(lines []string, n int) []string {
	if len(lines) > n {
		return lines[:n]
	}
	return lines
}
