package push

import (
	"context"
	"sync"

	"github.com/gammazero/chanqueue"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"livedom/dom/document"
)

var errClosed = errors.New("pubsub is closed")

// MemoryPubSub implements the PubSub interface inside one process.
// Every subscription owns an unbounded queue drained by its own goroutine,
// so a slow subscriber never blocks the publisher or other subscribers.
type MemoryPubSub struct {
	// options contains the configuration options.
	options *Options
	// subscriptions maps topic to subscriber id to subscription.
	subscriptions map[string]map[string]*memorySubscription
	// mutex protects subscriptions and closed.
	mutex  sync.RWMutex
	closed bool
	logger *zap.Logger
}

// memorySubscription represents a subscription to an in-memory topic.
type memorySubscription struct {
	topic        string
	subscriberID string
	handler      SubscriberFunc
	queue        *chanqueue.ChanQueue[Message]
	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewMemoryPubSub creates a new MemoryPubSub with the specified options.
func NewMemoryPubSub(options *Options) *MemoryPubSub {
	if options == nil {
		options = NewOptions()
	}

	return &MemoryPubSub{
		options:       options,
		subscriptions: make(map[string]map[string]*memorySubscription),
		logger:        options.logger(),
	}
}

// Publish encodes result and publishes it to the specified topic.
func (ps *MemoryPubSub) Publish(ctx context.Context, topic string, result document.Result, format EncodingFormat) error {
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
// Publishing to a topic without subscribers drops the message.
func (ps *MemoryPubSub) PublishRaw(ctx context.Context, topic string, data []byte, format EncodingFormat) error {
	if format == "" {
		format = ps.options.DefaultFormat
	}

	ps.mutex.RLock()
	defer ps.mutex.RUnlock()

	if ps.closed {
		return errClosed
	}

	msg := newMessage(topic, data, format)
	for _, sub := range ps.subscriptions[topic] {
		select {
		case <-sub.ctx.Done():
			continue
		default:
			sub.queue.In() <- msg
		}
	}

	return nil
}

// Subscribe subscribes to the specified topic and calls the handler for each received message.
func (ps *MemoryPubSub) Subscribe(ctx context.Context, topic string, subscriberID string, handler SubscriberFunc) error {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	if ps.closed {
		return errClosed
	}

	if _, exists := ps.subscriptions[topic][subscriberID]; exists {
		return errors.Errorf("already subscribed to topic: %s with subscriberID: %s", topic, subscriberID)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &memorySubscription{
		topic:        topic,
		subscriberID: subscriberID,
		handler:      handler,
		queue:        chanqueue.New[Message](),
		ctx:          subCtx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	if ps.subscriptions[topic] == nil {
		ps.subscriptions[topic] = make(map[string]*memorySubscription)
	}
	ps.subscriptions[topic][subscriberID] = sub

	go ps.handleMessages(sub)

	return nil
}

// handleMessages hands queued messages to the handler until the subscription ends.
func (ps *MemoryPubSub) handleMessages(sub *memorySubscription) {
	defer close(sub.done)

	out := sub.queue.Out()
	for {
		select {
		case <-sub.ctx.Done():
			return
		case msg, ok := <-out:
			if !ok {
				return
			}
			if err := sub.handler(sub.ctx, msg.Topic, msg.Payload, msg.Format); err != nil {
				ps.logger.Warn("Failed to handle message",
					zap.String("topic", msg.Topic),
					zap.String("subscriber", sub.subscriberID),
					zap.Error(err))
			}
		}
	}
}

// Unsubscribe unsubscribes from the specified topic.
func (ps *MemoryPubSub) Unsubscribe(ctx context.Context, topic string, subscriberID string) error {
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

	sub.stop()
	return nil
}

// Subscribers returns the number of subscriptions of topic.
func (ps *MemoryPubSub) Subscribers(topic string) int {
	ps.mutex.RLock()
	defer ps.mutex.RUnlock()

	return len(ps.subscriptions[topic])
}

// Close closes the PubSub and ends all subscriptions.
func (ps *MemoryPubSub) Close() error {
	ps.mutex.Lock()
	if ps.closed {
		ps.mutex.Unlock()
		return nil
	}
	ps.closed = true
	subscriptions := ps.subscriptions
	ps.subscriptions = make(map[string]map[string]*memorySubscription)
	ps.mutex.Unlock()

	for _, subs := range subscriptions {
		for _, sub := range subs {
			sub.stop()
		}
	}

	return nil
}

// stop ends the subscription and waits for its handler goroutine.
// A handler must not unsubscribe its own subscription.
func (sub *memorySubscription) stop() {
	sub.cancel()
	sub.queue.Close()
	<-sub.done
}
