package notify

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/open-chat-labs/open-chat-sub005/pkg/codec"
	"github.com/open-chat-labs/open-chat-sub005/pkg/logger"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// Topic carries event notifications to in-process subscribers (index
// maintenance, client push, metrics).
const Topic = "chat.events"

// Event is the notification payload published after a successful
// append. It names the position, not the content; subscribers that need
// the content read the log.
type Event struct {
	Chat       types.ChatID          `cbor:"c"`
	EventIndex types.EventIndex      `cbor:"e"`
	ThreadRoot types.EventIndex      `cbor:"r,omitempty"`
	Kind       string                `cbor:"k"`
	Sender     types.UserID          `cbor:"s,omitempty"`
	Timestamp  types.TimestampMillis `cbor:"ts"`
}

// Notifier publishes append notifications. Publishing is fire and
// forget: a failed or slow notification never fails the append that
// produced it.
type Notifier interface {
	Notify(ev Event)
	Close() error
}

// ChannelNotifier is a Notifier over watermill's in-process pub/sub.
type ChannelNotifier struct {
	pub *gochannel.GoChannel
}

// NewChannelNotifier returns an in-process Notifier. Subscribers attach
// via Subscriber().
func NewChannelNotifier(buffer int64) *ChannelNotifier {
	return &ChannelNotifier{
		pub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            buffer,
			BlockPublishUntilSubscriberAck: false,
		}, watermill.NopLogger{}),
	}
}

// Notify publishes ev; errors are logged and dropped.
func (n *ChannelNotifier) Notify(ev Event) {
	data, err := codec.Marshal(&ev)
	if err != nil {
		logger.Error("notify_marshal_failed", "chat", ev.Chat, "error", err)
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := n.pub.Publish(Topic, msg); err != nil {
		logger.Warn("notify_publish_failed", "chat", ev.Chat, "error", err)
	}
}

// Subscriber exposes the underlying subscriber side for consumers.
func (n *ChannelNotifier) Subscriber() message.Subscriber { return n.pub }

func (n *ChannelNotifier) Close() error { return n.pub.Close() }

// Decode unmarshals a notification payload.
func Decode(data []byte) (Event, error) {
	var ev Event
	err := codec.Unmarshal(data, &ev)
	return ev, err
}

// Nop is a Notifier that drops everything; used where notifications are
// disabled.
type Nop struct{}

func (Nop) Notify(Event) {}

func (Nop) Close() error { return nil }
