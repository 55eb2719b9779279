package patients

import (
	"context"

	"github.com/angelmondragon/mediconnect-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a patients repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, patient *models.Patient) (*models.Patient, error) {
	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(patient).Error; err != nil {
		return nil, err
	}
	return patient, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Patient, error) {
	var patient models.Patient
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&patient).Error; err != nil {
		return nil, err
	}
	return &patient, nil
}

func (r *repository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Patient{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}
