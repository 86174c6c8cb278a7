package payloads

import (
	"errors"
	"strings"
	"time"
)

// FeeChangedEvent is one fee change log entry, shaped like the API's entry JSON.
type FeeChangedEvent struct {
	ID           string    `json:"id"`
	PlatformID   string    `json:"platformId"`
	PlatformName string    `json:"platformName"`
	Field        string    `json:"field"`
	OldValue     float64   `json:"oldValue"`
	NewValue     float64   `json:"newValue"`
	Date         time.Time `json:"date"`
}

// Validate rejects entries the warehouse could not attribute.
func (e *FeeChangedEvent) Validate() error {
	switch {
	case strings.TrimSpace(e.PlatformID) == "":
		return errors.New("platformId is required")
	case strings.TrimSpace(e.Field) == "":
		return errors.New("field is required")
	}
	return nil
}

// AggregateKey is the platform the change belongs to.
func (e *FeeChangedEvent) AggregateKey() string { return e.PlatformID }
