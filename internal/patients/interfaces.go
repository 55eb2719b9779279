package patients

import (
	"context"

	"github.com/angelmondragon/mediconnect-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for patients.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, patient *models.Patient) (*models.Patient, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Patient, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}
