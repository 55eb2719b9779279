package outbox

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mediconnect-backend/pkg/db/models"
	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
)

const maxDLQErrorLen = 1024

// DLQRepository stores fulfillment and inventory events the publisher gave
// up on. Rows are written in the same transaction that marks the outbox row
// terminal.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.ErrorMessage != nil {
		msg := truncateUTF8(*entry.ErrorMessage, maxDLQErrorLen)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

// CountByReason reports how many dead-lettered events exist per failure
// reason. Every known reason is present, zero included.
func (r *DLQRepository) CountByReason(ctx context.Context) (map[enums.OutboxDLQErrorReason]int64, error) {
	var rows []struct {
		ErrorReason enums.OutboxDLQErrorReason
		Total       int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.OutboxDLQ{}).
		Select("error_reason, COUNT(*) AS total").
		Group("error_reason").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := map[enums.OutboxDLQErrorReason]int64{
		enums.OutboxDLQReasonMaxAttempts:  0,
		enums.OutboxDLQReasonNonRetryable: 0,
	}
	for _, row := range rows {
		counts[row.ErrorReason] = row.Total
	}
	return counts, nil
}

// truncateUTF8 cuts s to at most max bytes without splitting a rune.
func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
