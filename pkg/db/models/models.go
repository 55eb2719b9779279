package models

// All lists every persisted model, for sqlite bootstrapping in tests and
// local development.
func All() []any {
	return []any{
		&Medication{},
		&Patient{},
		&MedicationRequest{},
		&StockMovement{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
