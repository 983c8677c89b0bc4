package campaigns

import (
	"context"
	"fmt"
)

// DefaultTemplates is the starter set: one default template per type.
func DefaultTemplates() []Template {
	mk := func(t Type, name, title, body string) Template {
		return Template{
			ID:       "default-" + string(t),
			Type:     t,
			Name:     name,
			Title:    title,
			Body:     body,
			Active:   true,
			Default:  true,
			Category: "marketing",
		}
	}
	return []Template{
		mk(TypeQualifiedLead, "Lead qualificado",
			"Olá {customer_name}, obrigado pelo interesse!",
			"Separamos uma condição de {discount_percent}% em {product_interest} válida por {offer_validity_days} dias. Fale com a {company_name} pelo {company_phone}."),
		mk(TypeProductPromotion, "Promoção da semana",
			"{customer_name}, tem promoção na {company_name}",
			"Ofertas em {product_category} com {discount_percent}% de desconto até {offer_valid_until}. Entrega em até {delivery_window}."),
		mk(TypeOrderFollowUp, "Follow-up de pedido",
			"{customer_name}, seu pedido está quase pronto",
			"Notamos que você estava montando um pedido de {product_interest}. Posso finalizar para você? Entrega prevista até {delivery_deadline}."),
		mk(TypeCustomerReactivation, "Reativação",
			"Sentimos sua falta, {customer_name}",
			"Volte a comprar na {company_name} com {discount_percent}% de desconto até {offer_valid_until}."),
		mk(TypeCrossSell, "Cross-sell",
			"{customer_name}, que tal completar seu pedido?",
			"Quem leva {product_interest} costuma aproveitar nossos frios e acompanhamentos. Hoje com {discount_percent}% de desconto."),
		mk(TypePostSaleFeedback, "Feedback pós-venda",
			"Como foi sua compra, {customer_name}?",
			"Sua opinião ajuda a {company_name} a melhorar. Responda com uma nota de 1 a 5."),
		mk(TypePersonalizedOffer, "Oferta personalizada",
			"Uma oferta exclusiva para você, {customer_name}",
			"Para {business_type} preparamos {discount_percent}% de desconto em {product_category}, válido por {offer_validity_days} dias."),
		mk(TypeSpecialEvent, "Evento especial",
			"Seu evento com a {company_name}",
			"Montamos o pacote de {product_interest} para o seu evento. Valor estimado {estimated_value}, entrega em até {delivery_window}."),
	}
}

// SeedDefaults saves DefaultTemplates when store has no template of a type.
func SeedDefaults(ctx context.Context, store TemplateStore) error {
	for _, tpl := range DefaultTemplates() {
		existing, err := store.List(ctx, tpl.Type)
		if err != nil {
			return fmt.Errorf("campaigns: list %s templates: %w", tpl.Type, err)
		}
		if len(existing) > 0 {
			continue
		}
		if _, err := store.Save(ctx, tpl); err != nil {
			return fmt.Errorf("campaigns: seed %s template: %w", tpl.Type, err)
		}
	}
	return nil
}
