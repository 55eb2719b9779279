package outbox

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/mediconnect-backend/pkg/db/dbtest"
	"github.com/angelmondragon/mediconnect-backend/pkg/db/models"
	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
)

func TestDLQRepositoryInsertAndCount(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewDLQRepository(db)

	long := strings.Repeat("é", maxDLQErrorLen)
	for i, reason := range []enums.OutboxDLQErrorReason{
		enums.OutboxDLQReasonMaxAttempts,
		enums.OutboxDLQReasonMaxAttempts,
		enums.OutboxDLQReasonNonRetryable,
	} {
		msg := long
		require.NoError(t, repo.InsertTx(db, models.OutboxDLQ{
			EventID:       uuid.New(),
			EventType:     enums.EventReservationReleased,
			AggregateType: enums.AggregateMedication,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{"version":1}`),
			ErrorReason:   reason,
			ErrorMessage:  &msg,
			AttemptCount:  i + 1,
		}))
	}

	var stored models.OutboxDLQ
	require.NoError(t, db.First(&stored).Error)
	require.NotNil(t, stored.ErrorMessage)
	assert.LessOrEqual(t, len(*stored.ErrorMessage), maxDLQErrorLen)
	assert.True(t, strings.HasPrefix(long, *stored.ErrorMessage))

	counts, err := repo.CountByReason(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[enums.OutboxDLQReasonMaxAttempts])
	assert.Equal(t, int64(1), counts[enums.OutboxDLQReasonNonRetryable])
}

func TestDLQRepositoryRequiresTx(t *testing.T) {
	assert.Error(t, NewDLQRepository(nil).InsertTx(nil, models.OutboxDLQ{}))
}

func TestTruncateUTF8(t *testing.T) {
	assert.Equal(t, "abc", truncateUTF8("abc", 5))
	assert.Equal(t, "a", truncateUTF8("aé", 2))
	assert.Equal(t, "aé", truncateUTF8("aéb", 3))
}
