package billing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"inkwell/internal/billing"
	"inkwell/internal/model"
)

func TestPlanForPrice(t *testing.T) {
	tests := []struct {
		name      string
		priceID   string
		wantTier  model.PlanTier
		wantLimit int
	}{
		{
			name:      "pro_monthly",
			priceID:   billing.PriceIDProMonthly,
			wantTier:  model.PlanTierPro,
			wantLimit: model.WordLimitPro,
		},
		{
			name:      "pro_yearly",
			priceID:   billing.PriceIDProYearly,
			wantTier:  model.PlanTierPro,
			wantLimit: model.WordLimitPro,
		},
		{
			name:      "team_monthly",
			priceID:   billing.PriceIDTeamMonthly,
			wantTier:  model.PlanTierTeam,
			wantLimit: model.WordLimitTeam,
		},
		{
			name:      "team_yearly",
			priceID:   billing.PriceIDTeamYearly,
			wantTier:  model.PlanTierTeam,
			wantLimit: model.WordLimitTeam,
		},
		{
			name:      "unknown_price_falls_back_to_free",
			priceID:   "price_enterprise_monthly",
			wantTier:  model.PlanTierFree,
			wantLimit: model.WordLimitFree,
		},
		{
			name:      "empty_price_falls_back_to_free",
			priceID:   "",
			wantTier:  model.PlanTierFree,
			wantLimit: model.WordLimitFree,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tier, limit := billing.PlanForPrice(tt.priceID)
			assert.Equal(t, tt.wantTier, tier)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}
