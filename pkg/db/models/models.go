package models

// All lists every model for AutoMigrate on sqlite.
func All() []any {
	return []any{
		&Product{},
		&Platform{},
		&FeeChangeLog{},
		&Snapshot{},
		&AppSetting{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
