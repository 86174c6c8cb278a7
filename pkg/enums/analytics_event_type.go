package enums

import "fmt"

// AnalyticsEventType is the event_type attribute the warehouse worker routes on.
type AnalyticsEventType string

const (
	AnalyticsEventFeeChanged AnalyticsEventType = AnalyticsEventType(EventFeeChanged)
)

var validAnalyticsEventTypes = []AnalyticsEventType{
	AnalyticsEventFeeChanged,
}

// IsValid reports whether the value is a known analytics event type.
func (a AnalyticsEventType) IsValid() bool {
	for _, candidate := range validAnalyticsEventTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAnalyticsEventType converts the raw string to AnalyticsEventType.
func ParseAnalyticsEventType(value string) (AnalyticsEventType, error) {
	for _, candidate := range validAnalyticsEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid analytics event type %q", value)
}
