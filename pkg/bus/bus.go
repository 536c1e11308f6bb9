// Package bus carries local change notifications from the persistence
// layer to the dispatcher over an in-process Pub/Sub.
package bus

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	json "github.com/goccy/go-json"

	"github.com/openmuni/cashsync/pkg/models"
)

// ChangeTopic is the single topic the persistence layer publishes to.
const ChangeTopic = "local.changes"

// Bus is a thin wrapper over a watermill gochannel Pub/Sub.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// New creates an in-process bus.
func New() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, watermill.NopLogger{}),
	}
}

// PublishChange implements db.Notifier.
func (b *Bus) PublishChange(ev models.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode change event: %w", err)
	}
	return b.pubsub.Publish(ChangeTopic, message.NewMessage(watermill.NewUUID(), payload))
}

// Subscribe returns the change message stream. The channel closes when
// ctx is done or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, ChangeTopic)
}

// Close shuts the Pub/Sub down, closing all subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// DecodeChange parses a change event from a bus message.
func DecodeChange(msg *message.Message) (models.ChangeEvent, error) {
	var ev models.ChangeEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return models.ChangeEvent{}, fmt.Errorf("failed to decode change event: %w", err)
	}
	return ev, nil
}
