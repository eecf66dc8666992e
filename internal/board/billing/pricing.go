package billing

import "fmt"

// PricingTier maps a listing duration to its price and display description.
type PricingTier struct {
	Days        int    `json:"days"`
	Price       int64  `json:"price"` // whole USD
	Description string `json:"description"`
}

var pricingTiers = []PricingTier{
	{Days: 30, Price: 99, Description: "30 Day Standard Listing"},
	{Days: 60, Price: 179, Description: "60 Day Extended Listing"},
	{Days: 90, Price: 249, Description: "90 Day Premium Listing"},
}

// PriceForDuration returns the pricing tier for an exact listing duration.
// Durations are never rounded: an absent duration is an error.
func PriceForDuration(days int) (PricingTier, error) {
	for _, tier := range pricingTiers {
		if tier.Days == days {
			return tier, nil
		}
	}
	return PricingTier{}, fmt.Errorf("no pricing tier for a %d day listing", days)
}

// Durations lists the catalog's known listing durations in ascending order.
func Durations() []int {
	days := make([]int, 0, len(pricingTiers))
	for _, tier := range pricingTiers {
		days = append(days, tier.Days)
	}
	return days
}
