package requests

import (
	"context"

	"github.com/angelmondragon/mediconnect-backend/pkg/db/models"
	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
	"github.com/angelmondragon/mediconnect-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a requests repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, req *models.MedicationRequest) (*models.MedicationRequest, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		return nil, err
	}
	return req, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.MedicationRequest, error) {
	var req models.MedicationRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repository) FindStatus(ctx context.Context, id uuid.UUID) (enums.RequestStatus, error) {
	var req models.MedicationRequest
	if err := r.db.WithContext(ctx).Select("status").Where("id = ?", id).First(&req).Error; err != nil {
		return "", err
	}
	return req.Status, nil
}

// CompareAndSetStatus writes to only while the row still carries from. It
// reports false when another writer moved the row first or it is gone.
func (r *repository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to enums.RequestStatus) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE medication_requests
		SET status = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, to, id, from)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.MedicationRequest{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteIfStatus removes the row only while it still carries status.
func (r *repository) DeleteIfStatus(ctx context.Context, id uuid.UUID, status enums.RequestStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, status).
		Delete(&models.MedicationRequest{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]models.MedicationRequest, error) {
	tx := r.db.WithContext(ctx).Model(&models.MedicationRequest{})
	if query.Filters.PatientID != nil {
		tx = tx.Where("patient_id = ?", *query.Filters.PatientID)
	}
	if query.Filters.MedicationID != nil {
		tx = tx.Where("medication_id = ?", *query.Filters.MedicationID)
	}
	if query.Filters.Status != nil {
		tx = tx.Where("status = ?", *query.Filters.Status)
	}
	if query.Limit > 0 {
		tx = tx.Limit(query.Limit)
	}

	var rows []models.MedicationRequest
	err := tx.Scopes(pagination.NewestFirst(query.After)).Find(&rows).Error
	return rows, err
}

func (r *repository) SumQty(ctx context.Context, medicationID uuid.UUID, statuses []enums.RequestStatus) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.MedicationRequest{}).
		Select("COALESCE(SUM(qty), 0)").
		Where("medication_id = ? AND status IN ?", medicationID, statuses).
		Scan(&total).Error
	return int(total), err
}
