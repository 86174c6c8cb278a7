package enums

import "fmt"

// PlatformType selects the fee schedule a marketplace uses.
type PlatformType string

const (
	PlatformTypeAmazonFBA       PlatformType = "amazon_fba"
	PlatformTypeBlinkit         PlatformType = "blinkit"
	PlatformTypeSPCommission    PlatformType = "sp_commission"
	PlatformTypeMRPCommission   PlatformType = "mrp_commission"
	PlatformTypeZeroCommission  PlatformType = "zero_commission"
	PlatformTypeFixedSettlement PlatformType = "fixed_settlement"
)

var validPlatformTypes = []PlatformType{
	PlatformTypeAmazonFBA,
	PlatformTypeBlinkit,
	PlatformTypeSPCommission,
	PlatformTypeMRPCommission,
	PlatformTypeZeroCommission,
	PlatformTypeFixedSettlement,
}

// String implements fmt.Stringer.
func (t PlatformType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known PlatformType.
func (t PlatformType) IsValid() bool {
	for _, candidate := range validPlatformTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// UsesCommissionPercent reports whether the configured flat commission feeds the fee schedule.
func (t PlatformType) UsesCommissionPercent() bool {
	switch t {
	case PlatformTypeSPCommission, PlatformTypeMRPCommission, PlatformTypeZeroCommission:
		return true
	}
	return false
}

// Label returns the human readable fee schedule description.
func (t PlatformType) Label() string {
	switch t {
	case PlatformTypeAmazonFBA:
		return "Amazon FBA (slab fees)"
	case PlatformTypeBlinkit:
		return "Blinkit (slab + shipping + storage)"
	case PlatformTypeSPCommission:
		return "Commission on SP"
	case PlatformTypeMRPCommission:
		return "Commission on MRP"
	case PlatformTypeZeroCommission:
		return "Zero commission"
	case PlatformTypeFixedSettlement:
		return "Fixed settlement"
	}
	return string(t)
}

// ParsePlatformType converts raw input into a PlatformType.
func ParsePlatformType(value string) (PlatformType, error) {
	for _, candidate := range validPlatformTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid platform type %q", value)
}
