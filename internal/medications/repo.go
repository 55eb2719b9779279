package medications

import (
	"context"
	"errors"

	"github.com/angelmondragon/mediconnect-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a medications repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, med *models.Medication) (*models.Medication, error) {
	if med.ID == uuid.Nil {
		med.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(med).Error; err != nil {
		return nil, err
	}
	return med, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Medication, error) {
	var med models.Medication
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&med).Error; err != nil {
		return nil, err
	}
	return &med, nil
}

func (r *repository) List(ctx context.Context) ([]models.Medication, error) {
	var meds []models.Medication
	err := r.db.WithContext(ctx).
		Order("name ASC").
		Order("id ASC").
		Find(&meds).Error
	return meds, err
}

func (r *repository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Medication{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// DecrementStockIfEnough subtracts qty in a single guarded statement. It
// reports false when the row is missing or holds fewer than qty units.
func (r *repository) DecrementStockIfEnough(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE medications
		SET stock = stock - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND stock >= ?
	`, qty, id, qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) IncrementStock(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE medications
		SET stock = stock + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AdjustStock applies a signed delta, refusing to go below zero.
func (r *repository) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE medications
		SET stock = stock + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND stock + ? >= 0
	`, delta, id, delta)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CurrentStock(ctx context.Context, id uuid.UUID) (int, error) {
	var med models.Medication
	err := r.db.WithContext(ctx).Select("stock").Where("id = ?", id).First(&med).Error
	if err != nil {
		return 0, err
	}
	return med.Stock, nil
}

func (r *repository) RecordMovement(ctx context.Context, movement *models.StockMovement) error {
	if movement == nil {
		return errors.New("movement required")
	}
	if movement.ID == uuid.Nil {
		movement.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListMovements(ctx context.Context, medicationID uuid.UUID, limit int) ([]models.StockMovement, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.StockMovement
	err := r.db.WithContext(ctx).
		Where("medication_id = ?", medicationID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
