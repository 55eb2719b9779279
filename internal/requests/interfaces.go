package requests

import (
	"context"

	"github.com/angelmondragon/mediconnect-backend/pkg/db/models"
	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for medication requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, req *models.MedicationRequest) (*models.MedicationRequest, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.MedicationRequest, error)
	FindStatus(ctx context.Context, id uuid.UUID) (enums.RequestStatus, error)
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to enums.RequestStatus) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteIfStatus(ctx context.Context, id uuid.UUID, status enums.RequestStatus) (bool, error)
	List(ctx context.Context, query ListQuery) ([]models.MedicationRequest, error)
	SumQty(ctx context.Context, medicationID uuid.UUID, statuses []enums.RequestStatus) (int, error)
}
