package calc

import "github.com/angelmondragon/profitlens/pkg/enums"

// DefaultMinMarginAlert is the alert threshold used until the user sets one.
const DefaultMinMarginAlert = 15.0

// DefaultPlatformIDs lists the built-in platforms in display order.
var DefaultPlatformIDs = []string{
	"amazon_fba",
	"rk_world",
	"blinkit",
	"zepto",
	"instamart",
	"firstcry",
	"nykaa",
	"meesho",
	"myntra",
	"flipkart",
}

// DefaultPlatforms returns a fresh copy of the built-in platform set.
func DefaultPlatforms() []Platform {
	return []Platform{
		{ID: "amazon_fba", Name: "Amazon FBA", Type: enums.PlatformTypeAmazonFBA, FeesExclTax: boolPtr(true)},
		{ID: "rk_world", Name: "RK World", Type: enums.PlatformTypeSPCommission, CommissionPercent: floatPtr(32), FeesExclTax: boolPtr(false)},
		{ID: "blinkit", Name: "Blinkit", Type: enums.PlatformTypeBlinkit, FeesExclTax: boolPtr(true)},
		{ID: "zepto", Name: "Zepto", Type: enums.PlatformTypeMRPCommission, CommissionPercent: floatPtr(36), FeesExclTax: boolPtr(false)},
		{ID: "instamart", Name: "Instamart", Type: enums.PlatformTypeSPCommission, CommissionPercent: floatPtr(35), FeesExclTax: boolPtr(false)},
		{ID: "firstcry", Name: "FirstCry", Type: enums.PlatformTypeSPCommission, CommissionPercent: floatPtr(35), FeesExclTax: boolPtr(false)},
		{ID: "nykaa", Name: "Nykaa", Type: enums.PlatformTypeMRPCommission, CommissionPercent: floatPtr(38), FeesExclTax: boolPtr(false)},
		{ID: "meesho", Name: "Meesho", Type: enums.PlatformTypeZeroCommission, CommissionPercent: floatPtr(0), FeesExclTax: boolPtr(false)},
		{ID: "myntra", Name: "Myntra", Type: enums.PlatformTypeFixedSettlement},
		{ID: "flipkart", Name: "Flipkart", Type: enums.PlatformTypeFixedSettlement},
	}
}

// DefaultSettings returns the initial application settings.
func DefaultSettings() Settings {
	return Settings{MinMarginAlert: DefaultMinMarginAlert}
}

func floatPtr(v float64) *float64 { return &v }

func boolPtr(v bool) *bool { return &v }
