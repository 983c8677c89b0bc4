package keywords

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Version identifies the keyword table. Bump it whenever a list changes so routing
// decisions and lead insights can be traced back to the table that produced them.
const Version = "2024.11.1"

// Topic is a business topic a message can be routed to.
type Topic string

const (
	TopicCatalog       Topic = "Catalog"
	TopicOrders        Topic = "Orders"
	TopicSupport       Topic = "Support"
	TopicQualification Topic = "Qualification"
	TopicMarketing     Topic = "Marketing"

	// TopicOperator marks turns answered by a human; it is never a routing target.
	TopicOperator Topic = "Operator"
)

// Topics lists routable topics in tie-break order.
var Topics = []Topic{TopicCatalog, TopicOrders, TopicSupport, TopicQualification, TopicMarketing}

// ParseTopic accepts canonical names and the legacy Portuguese labels.
func ParseTopic(s string) (Topic, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "catalog", "catálogo", "catalogo":
		return TopicCatalog, true
	case "orders", "pedidos":
		return TopicOrders, true
	case "support", "atendimento":
		return TopicSupport, true
	case "qualification", "qualificação", "qualificacao":
		return TopicQualification, true
	case "marketing":
		return TopicMarketing, true
	default:
		return "", false
	}
}

func (t Topic) Valid() bool {
	_, ok := ParseTopic(string(t))
	return ok
}

// Table is the single source of keyword heuristics shared by the router and the
// lead extractor. All terms are lower-case.
type Table struct {
	Version string

	// Router tiers.
	PurchaseTriggers     []string
	ProductTokens        []string
	ProductQuestions     []string
	CatalogRequests      []string
	StrongCatalogSignals []string
	TopicKeywords        map[Topic][]string
	QuantityUnit         *regexp.Regexp

	// Lead signal.
	BusinessTokens []string
	EventTokens    []string
	UrgentTokens   []string
	WeekTokens     []string
	PurchaseVerbs  []string
	PriceQuestions []string
	Headcount      *regexp.Regexp

	// Campaign copy.
	BusinessTypes []BusinessType
}

// BusinessType maps a detected business context to a label used in campaign copy.
type BusinessType struct {
	Label  string
	Tokens []string
}

var defaultTable = buildDefault()

// Default returns the current keyword table. Callers must not mutate it.
func Default() *Table { return defaultTable }

func buildDefault() *Table {
	products := []string{
		"carne", "carnes", "frango", "peixe", "peixes", "porco", "boi",
		"galinha", "aves", "frios", "queijo", "queijos", "presunto",
		"mortadela", "salame", "linguiça", "linguica", "picanha", "maminha",
		"fraldinha", "costela", "alcatra", "contrafilé", "contrafile", "cupim", "bacon",
		"beef", "chicken", "fish", "pork", "cheese", "ham", "sausage", "steak", "ribs", "meat",
	}
	catalogRequests := []string{
		"catálogo", "catalogo", "cardápio", "cardapio", "menu",
		"lista de produtos", "lista de preços", "lista de precos", "tabela de preços",
		"manda a lista", "me manda a lista",
		"catalog", "catalogue", "price list", "product list", "send me the list",
	}

	return &Table{
		Version: Version,

		PurchaseTriggers: []string{
			"quero", "vou querer", "vou levar", "vou pegar", "quero comprar",
			"pode separar", "preciso de", "gostaria de comprar", "encomendar",
			"i want", "i'll take", "i will take", "i'd like", "i would like",
			"i need", "i'll have", "give me",
		},
		ProductTokens: products,
		ProductQuestions: []string{
			"tem", "têm", "teria", "teriam",
			"vocês tem", "vcs tem", "voces tem", "vocês têm", "vcs têm", "voces têm",
			"quais tipos", "que tipos", "vendem", "vende", "trabalha com",
			"quanto custa", "qual valor", "qual preço", "qual o preço",
			"do you have", "do you sell", "have you got", "how much",
		},
		CatalogRequests: catalogRequests,
		StrongCatalogSignals: []string{
			"catálogo", "catalogo", "produto", "produtos", "cardápio", "cardapio",
			"lista", "menu", "catalog", "catalogue", "product", "products",
		},
		TopicKeywords: map[Topic][]string{
			TopicCatalog: {
				"catálogo", "catalogo", "produto", "produtos", "disponibilidade",
				"possui", "vende", "cardápio", "cardapio", "menu", "lista", "oferece",
				"disponível", "disponivel", "catalog", "product", "products", "available",
			},
			TopicOrders: {
				"pedido", "comprar", "finalizar", "ordem", "adicionar", "carrinho",
				"quero", "preciso", "encomenda", "encomendar", "fazer pedido",
				"order", "buy", "purchase", "cart", "checkout",
			},
			TopicSupport: {
				"troca", "devolução", "devolucao", "prazo", "entrega", "horário", "horario",
				"atendimento", "suporte", "reclamação", "reclamacao", "endereço", "endereco",
				"problema", "ajuda", "dúvida", "duvida", "contato", "telefone", "email",
				"delivery", "refund", "return", "exchange", "support", "help", "complaint",
				"address", "problem",
			},
			TopicQualification: {
				"qualificar", "interesse", "orçamento", "orcamento", "perfil", "segmento",
				"informação", "informações", "detalhes", "quote", "budget", "interested",
				"details", "information",
			},
			TopicMarketing: {
				"campanha", "promoção", "promocao", "desconto", "marketing", "anúncio",
				"anuncio", "newsletter", "oferta", "ofertas", "novidade", "novidades", "cupom",
				"promotion", "discount", "coupon", "offer", "deal",
			},
		},
		QuantityUnit: regexp.MustCompile(`\d+(?:[.,]\d+)?\s*(?:kg|kgs|kilos?|quilos?|gr|g|gramas?|grams?|lbs?|pounds?|unidades?|units?|peças|pecas|peça|peca|pieces?|pacotes?|packs?|caixas?|boxes?|bandejas?)\b`),

		BusinessTokens: []string{
			"restaurante", "lanchonete", "bar", "hotel", "pousada", "resort",
			"empresa", "escritório", "escritorio", "corporativo", "cnpj", "buffet",
			"mercado", "açougue", "acougue", "revenda", "atacado",
			"restaurant", "company", "business", "wholesale", "catering",
		},
		EventTokens: []string{
			"evento", "festa", "churrasco", "aniversário", "aniversario", "casamento",
			"confraternização", "confraternizacao", "formatura",
			"party", "event", "barbecue", "bbq", "wedding", "birthday", "celebration",
		},
		UrgentTokens: []string{
			"hoje", "amanhã", "amanha", "urgente", "agora", "o quanto antes",
			"today", "tomorrow", "urgent", "asap", "right now", "tonight",
		},
		WeekTokens: []string{
			"esta semana", "essa semana", "semana que vem", "próxima semana", "proxima semana",
			"fim de semana", "this week", "next week", "weekend",
		},
		PurchaseVerbs: []string{
			"quero", "vou querer", "comprar", "encomendar", "preciso", "vou levar", "pedido",
			"i want", "i need", "buy", "order", "i'll take", "i would like", "i'd like",
		},
		PriceQuestions: []string{
			"preço", "preco", "valor", "quanto custa", "quanto sai", "quanto fica", "orçamento",
			"price", "how much", "cost", "quote",
		},
		Headcount: regexp.MustCompile(`(\d{1,5})\s*-?\s*(?:pessoas|pessoa|convidados|convidado|people|persons|person|guests|guest)\b`),

		BusinessTypes: []BusinessType{
			{Label: "restaurante", Tokens: []string{"restaurante", "bar", "lanchonete", "restaurant"}},
			{Label: "hotelaria", Tokens: []string{"hotel", "pousada", "resort"}},
			{Label: "corporativo", Tokens: []string{"empresa", "escritorio", "escritório", "corporativo", "company"}},
			{Label: "eventos", Tokens: []string{"evento", "festa", "casamento", "event", "party", "wedding"}},
		},
	}
}

// Match returns the terms found in text as whole words or phrases.
// text is expected to be lower-cased already.
func Match(text string, terms []string) []string {
	var out []string
	for _, term := range terms {
		if Contains(text, term) {
			out = append(out, term)
		}
	}
	return out
}

// Any reports whether at least one term occurs in text.
func Any(text string, terms []string) bool {
	for _, term := range terms {
		if Contains(text, term) {
			return true
		}
	}
	return false
}

// Contains reports whether term occurs in text bounded by non-letters on both sides.
func Contains(text, term string) bool {
	if term == "" {
		return false
	}
	from := 0
	for from <= len(text)-len(term) {
		i := strings.Index(text[from:], term)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(term)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		from = start + size
	}
	return false
}

// DetectBusinessType returns the first business label whose tokens appear in text.
func (t *Table) DetectBusinessType(text string) string {
	for _, bt := range t.BusinessTypes {
		if Any(text, bt.Tokens) {
			return bt.Label
		}
	}
	return "comercio_geral"
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
