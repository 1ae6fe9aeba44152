package billing

import "inkwell/internal/model"

// Stripe price ids for the paid plans. Unknown prices intentionally have no
// entry: they fall back to the free tier so an unmapped price can never block
// reconciliation.
const (
	PriceIDProMonthly  = "price_pro_monthly"
	PriceIDProYearly   = "price_pro_yearly"
	PriceIDTeamMonthly = "price_team_monthly"
	PriceIDTeamYearly  = "price_team_yearly"
)

var priceCatalog = map[string]model.PlanTier{
	PriceIDProMonthly:  model.PlanTierPro,
	PriceIDProYearly:   model.PlanTierPro,
	PriceIDTeamMonthly: model.PlanTierTeam,
	PriceIDTeamYearly:  model.PlanTierTeam,
}

// PlanForPrice maps a provider price id to the internal plan tier and its
// word quota. Unknown prices resolve to the free tier.
func PlanForPrice(priceID string) (model.PlanTier, int) {
	tier, ok := priceCatalog[priceID]
	if !ok {
		tier = model.PlanTierFree
	}
	return tier, tier.WordLimit()
}
