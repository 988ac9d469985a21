// Package push carries document Results from the view runtimes to the
// connected display surfaces.
package push

import (
	"context"

	"go.uber.org/zap"

	"livedom/dom/document"
)

// EncodingFormat represents the format used to encode Results.
type EncodingFormat string

const (
	// EncodingFormatJSON represents the JSON envelope encoding.
	EncodingFormatJSON EncodingFormat = "json"
	// EncodingFormatBase64 represents the JSON envelope wrapped in base64.
	EncodingFormatBase64 EncodingFormat = "base64"
)

// Message represents a published, encoded Result.
type Message struct {
	// Topic is the topic the message was published to.
	Topic string
	// Payload is the encoded Result.
	Payload []byte
	// Format is the encoding format used for the payload.
	Format EncodingFormat
	// Metadata is optional metadata associated with the message.
	Metadata map[string]string
}

// SubscriberFunc handles a received message with raw data.
type SubscriberFunc func(ctx context.Context, topic string, data []byte, format EncodingFormat) error

// Publisher defines the interface for publishing Results.
type Publisher interface {
	// Publish encodes result and publishes it to the specified topic.
	Publish(ctx context.Context, topic string, result document.Result, format EncodingFormat) error
	// PublishRaw publishes already encoded data to the specified topic.
	PublishRaw(ctx context.Context, topic string, data []byte, format EncodingFormat) error
	// Close closes the publisher.
	Close() error
}

// Subscriber defines the interface for subscribing to Results.
type Subscriber interface {
	// Subscribe calls handler for each message published to topic. Messages
	// of one subscription are handled in publish order.
	Subscribe(ctx context.Context, topic string, subscriberID string, handler SubscriberFunc) error
	// Unsubscribe removes the subscription of subscriberID from topic.
	Unsubscribe(ctx context.Context, topic string, subscriberID string) error
	// Close closes the subscriber.
	Close() error
}

// PubSub combines the Publisher and Subscriber interfaces.
type PubSub interface {
	Publisher
	Subscriber
}

// Options represents configuration options for a PubSub implementation.
type Options struct {
	// DefaultFormat is used when a publish call passes an empty format.
	DefaultFormat EncodingFormat
	// Logger receives handler and decoding failures. Nil means no logging.
	Logger *zap.Logger
}

// NewOptions creates a new Options with default values.
func NewOptions() *Options {
	return &Options{
		DefaultFormat: EncodingFormatJSON,
	}
}

// Topic returns the topic on which the Results of a view are published.
func Topic(prefix, viewID string) string {
	if prefix == "" {
		return viewID
	}
	return prefix + "." + viewID
}

func newMessage(topic string, data []byte, format EncodingFormat) Message {
	return Message{
		Topic:   topic,
		Payload: data,
		Format:  format,
		Metadata: map[string]string{
			"format": string(format),
		},
	}
}

func (o *Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
