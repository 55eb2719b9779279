package medications

import (
	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
	"github.com/google/uuid"
)

// CreateMedicationInput registers a catalog entry with its opening stock.
type CreateMedicationInput struct {
	Code         string
	Name         string
	InitialStock int
	ActorID      string
	ActorRole    enums.ActorRole
}

// AdjustStockInput carries an administrative restock (positive delta) or
// write-off (negative delta).
type AdjustStockInput struct {
	MedicationID uuid.UUID
	Delta        int
	ActorID      string
	ActorRole    enums.ActorRole
}
