package campaigns

import "chat-pipeline/internal/agents"

var actionTypes = map[string]Type{
	agents.ActionQualifyLead:      TypeQualifiedLead,
	agents.ActionB2BPresentation:  TypeQualifiedLead,
	agents.ActionOrder:            TypeOrderFollowUp,
	agents.ActionEventExpress:     TypeSpecialEvent,
	agents.ActionEventPlanning:    TypeSpecialEvent,
	agents.ActionB2BCampaign:      TypePersonalizedOffer,
	agents.ActionPremiumCustomer:  TypePersonalizedOffer,
	agents.ActionWelcome:          TypeProductPromotion,
	agents.ActionNewsletterOffers: TypeProductPromotion,
	agents.ActionContextualOffers: TypeCrossSell,
}

// TypeForAction maps a handler action tag to its campaign type.
func TypeForAction(action string) (Type, bool) {
	t, ok := actionTypes[action]
	return t, ok
}
