package push

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"livedom/dom/document"
)

// RedisPubSub implements the PubSub interface on Redis channels, so views
// and display surfaces can live in different processes.
type RedisPubSub struct {
	// client is the Redis client.
	client *redis.Client
	// options contains the configuration options.
	options *Options
	// subscriptions maps topic to subscriber id to subscription.
	subscriptions map[string]map[string]*redisSubscription
	// mutex protects subscriptions and closed.
	mutex  sync.RWMutex
	closed bool
	logger *zap.Logger
}

// redisSubscription represents a subscription to a Redis channel.
// Each subscription owns its own Redis PubSub connection.
type redisSubscription struct {
	topic        string
	subscriberID string
	handler      SubscriberFunc
	pubsub       *redis.PubSub
	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewRedisPubSub creates a new RedisPubSub with the specified Redis client and options.
func NewRedisPubSub(client *redis.Client, options *Options) (*RedisPubSub, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}

	if options == nil {
		options = NewOptions()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return &RedisPubSub{
		client:        client,
		options:       options,
		subscriptions: make(map[string]map[string]*redisSubscription),
		logger:        options.logger(),
	}, nil
}

// Publish encodes result and publishes it to the specified topic.
func (ps *RedisPubSub) Publish(ctx context.Context, topic string, result document.Result, format EncodingFormat) error {
	if format == "" {
		format = ps.options.DefaultFormat
	}

	data, err := EncodeResult(result, format)
	if err != nil {
		return errors.Wrap(err, "failed to encode result")
	}

	return ps.PublishRaw(ctx, topic, data, format)
}

// PublishRaw publishes raw data to the specified topic.
func (ps *RedisPubSub) PublishRaw(ctx context.Context, topic string, data []byte, format EncodingFormat) error {
	ps.mutex.RLock()
	closed := ps.closed
	ps.mutex.RUnlock()
	if closed {
		return errClosed
	}

	if format == "" {
		format = ps.options.DefaultFormat
	}

	msgData, err := json.Marshal(newMessage(topic, data, format))
	if err != nil {
		return errors.Wrap(err, "failed to encode message")
	}

	return ps.client.Publish(ctx, topic, msgData).Err()
}

// Subscribe subscribes to the specified topic and calls the handler for each received message.
func (ps *RedisPubSub) Subscribe(ctx context.Context, topic string, subscriberID string, handler SubscriberFunc) error {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	if ps.closed {
		return errClosed
	}

	if _, exists := ps.subscriptions[topic][subscriberID]; exists {
		return errors.Errorf("already subscribed to topic: %s with subscriberID: %s", topic, subscriberID)
	}

	pubsub := ps.client.Subscribe(ctx, topic)
	// wait for the subscription confirmation so no later publish is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return errors.Wrap(err, "failed to subscribe to topic")
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &redisSubscription{
		topic:        topic,
		subscriberID: subscriberID,
		handler:      handler,
		pubsub:       pubsub,
		ctx:          subCtx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	if ps.subscriptions[topic] == nil {
		ps.subscriptions[topic] = make(map[string]*redisSubscription)
	}
	ps.subscriptions[topic][subscriberID] = sub

	go ps.handleMessages(sub)

	return nil
}

// handleMessages handles messages for a subscription.
func (ps *RedisPubSub) handleMessages(sub *redisSubscription) {
	defer close(sub.done)

	ch := sub.pubsub.Channel()
	for {
		select {
		case <-sub.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var message Message
			if err := json.Unmarshal([]byte(msg.Payload), &message); err != nil {
				ps.logger.Warn("Failed to decode message",
					zap.String("topic", msg.Channel),
					zap.Error(err))
				continue
			}

			if err := sub.handler(sub.ctx, message.Topic, message.Payload, message.Format); err != nil {
				ps.logger.Warn("Failed to handle message",
					zap.String("topic", message.Topic),
					zap.String("subscriber", sub.subscriberID),
					zap.Error(err))
			}
		}
	}
}

// Unsubscribe unsubscribes from the specified topic.
func (ps *RedisPubSub) Unsubscribe(ctx context.Context, topic string, subscriberID string) error {
	ps.mutex.Lock()

	if ps.closed {
		ps.mutex.Unlock()
		return errClosed
	}

	sub, ok := ps.subscriptions[topic][subscriberID]
	if !ok {
		ps.mutex.Unlock()
		return errors.Errorf("not subscribed to topic: %s with subscriberID: %s", topic, subscriberID)
	}

	delete(ps.subscriptions[topic], subscriberID)
	if len(ps.subscriptions[topic]) == 0 {
		delete(ps.subscriptions, topic)
	}
	ps.mutex.Unlock()

	return sub.stop()
}

// Close closes all subscriptions and the Redis client.
func (ps *RedisPubSub) Close() error {
	ps.mutex.Lock()
	if ps.closed {
		ps.mutex.Unlock()
		return nil
	}
	ps.closed = true
	subscriptions := ps.subscriptions
	ps.subscriptions = make(map[string]map[string]*redisSubscription)
	ps.mutex.Unlock()

	for _, subs := range subscriptions {
		for _, sub := range subs {
			if err := sub.stop(); err != nil {
				ps.logger.Warn("Failed to close subscription",
					zap.String("topic", sub.topic),
					zap.Error(err))
			}
		}
	}

	if err := ps.client.Close(); err != nil {
		return errors.Wrap(err, "failed to close Redis client")
	}

	return nil
}

func (sub *redisSubscription) stop() error {
	sub.cancel()
	err := sub.pubsub.Close()
	<-sub.done
	if err != nil {
		return errors.Wrap(err, "failed to close pubsub client")
	}
	return nil
}
