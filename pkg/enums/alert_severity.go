package enums

import "fmt"

// AlertSeverity classifies a low-margin alert.
type AlertSeverity string

const (
	AlertSeverityLoss AlertSeverity = "loss"
	AlertSeverityLow  AlertSeverity = "low"
)

var validAlertSeverities = []AlertSeverity{
	AlertSeverityLoss,
	AlertSeverityLow,
}

// IsValid reports whether the value matches a known severity.
func (s AlertSeverity) IsValid() bool {
	for _, candidate := range validAlertSeverities {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseAlertSeverity converts raw input into AlertSeverity.
func ParseAlertSeverity(value string) (AlertSeverity, error) {
	for _, candidate := range validAlertSeverities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid alert severity %q", value)
}
