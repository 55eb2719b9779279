package stockwatch

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
)

// Envelope is an inventory event as received from Pub/Sub.
type Envelope struct {
	EventID       string
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	OccurredAt    time.Time
	Payload       json.RawMessage
}
