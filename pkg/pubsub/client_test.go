package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/mediconnect-backend/pkg/config"
)

func TestResourceName(t *testing.T) {
	assert.Equal(t, "projects/mc-dev/topics/mc-fulfillment-events", resourceName("mc-dev", "topics", " mc-fulfillment-events "))
	assert.Equal(t, "projects/other/topics/x", resourceName("mc-dev", "topics", "projects/other/topics/x"))
	assert.Empty(t, resourceName("", "topics", "x"))
	assert.Empty(t, resourceName("mc-dev", "topics", "  "))
	assert.Equal(t, "projects/mc-dev/subscriptions/mc-inventory-stockwatch", resourceName("mc-dev", "subscriptions", "mc-inventory-stockwatch"))
}

func TestTopicNamesDeduplicates(t *testing.T) {
	names := topicNames(config.PubSubConfig{FulfillmentTopic: "events", InventoryTopic: "events"})
	assert.Equal(t, []string{"events"}, names)

	names = topicNames(config.PubSubConfig{FulfillmentTopic: "a", InventoryTopic: ""})
	assert.Equal(t, []string{"a"}, names)
}
