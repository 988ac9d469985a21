// Package delivery connects display surfaces to running views.
package delivery

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"livedom/dom/push"
	"livedom/dom/view"
)

const frameBuffer = 64

// Frame is one encoded Result sent to a client.
type Frame struct {
	Data   []byte
	Format push.EncodingFormat
}

// Feed is the stream of one client attached to a view: the full document at
// attach time followed by every Result the view publishes.
type Feed struct {
	runtime      *view.Runtime
	subscriber   push.Subscriber
	subscriberID string

	initial Frame
	frames  chan Frame

	once   sync.Once
	logger *zap.Logger
}

// Open subscribes to the view's topic and serializes its document. The
// subscription is made first, so no Result published after the snapshot is
// missed. A Result applied before the snapshot may arrive again; patches
// carry absolute values, so replaying one is harmless.
func Open(ctx context.Context, rt *view.Runtime, subscriber push.Subscriber, logger *zap.Logger) (*Feed, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &Feed{
		runtime:      rt,
		subscriber:   subscriber,
		subscriberID: uuid.NewString(),
		frames:       make(chan Frame, frameBuffer),
		logger:       logger.With(zap.String("view", rt.ID())),
	}

	err := subscriber.Subscribe(ctx, rt.Topic(), f.subscriberID,
		func(ctx context.Context, _ string, data []byte, format push.EncodingFormat) error {
			select {
			case f.frames <- Frame{Data: data, Format: format}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to subscribe to view %s", rt.ID())
	}

	initial, err := f.Snapshot(ctx)
	if err != nil {
		f.Close()
		return nil, err
	}
	f.initial = initial

	f.logger.Debug("Feed opened", zap.String("subscriber", f.subscriberID))
	return f, nil
}

// Initial returns the frame of the document at attach time.
func (f *Feed) Initial() Frame {
	return f.initial
}

// Frames returns the published Results in publish order.
func (f *Feed) Frames() <-chan Frame {
	return f.frames
}

// Done is closed when the view finished.
func (f *Feed) Done() <-chan struct{} {
	return f.runtime.Done()
}

// Snapshot encodes the current full document of the view.
func (f *Feed) Snapshot(ctx context.Context) (Frame, error) {
	result, err := f.runtime.Serialize(ctx)
	if err != nil {
		return Frame{}, errors.Wrapf(err, "failed to serialize view %s", f.runtime.ID())
	}

	format := f.runtime.Format()
	data, err := push.EncodeResult(result, format)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Data: data, Format: format}, nil
}

// Pending returns the frames that are already buffered, without waiting.
func (f *Feed) Pending() []Frame {
	var frames []Frame
	for {
		select {
		case frame := <-f.frames:
			frames = append(frames, frame)
		default:
			return frames
		}
	}
}

// Close removes the subscription. It is safe to call more than once.
func (f *Feed) Close() {
	f.once.Do(func() {
		if err := f.subscriber.Unsubscribe(context.Background(), f.runtime.Topic(), f.subscriberID); err != nil {
			f.logger.Debug("Failed to unsubscribe feed", zap.Error(err))
		}
		f.logger.Debug("Feed closed", zap.String("subscriber", f.subscriberID))
	})
}
