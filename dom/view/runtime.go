// Package view runs long-lived application logic against a document and
// publishes the resulting changes.
//
// A view is started through a Registry, which schedules its handler as a
// blocking unit. The handler gets a Runtime: its own Document, the context id
// the scheduler assigned to it and a publisher for the view's topic.
package view

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"livedom/dom/common"
	"livedom/dom/document"
	"livedom/dom/html"
	"livedom/dom/push"
	"livedom/dom/scheduling"
)

// Handler is the application logic of a view. It returns when the view is
// done or its context is cancelled.
type Handler func(rt *Runtime) error

// Runtime is the environment of one running view.
type Runtime struct {
	id   string
	name string

	ctx context.Context
	cid common.ContextID

	doc       *document.Document
	scheduler *scheduling.Scheduler
	events    chan InputEvent
	publisher push.Publisher
	topic     string
	format    push.EncodingFormat

	done chan struct{}
	err  error

	logger *zap.Logger
}

// ID returns the id of the view.
func (r *Runtime) ID() string {
	return r.id
}

// Name returns the name the view was started with.
func (r *Runtime) Name() string {
	return r.name
}

// Context returns the context of the running handler.
func (r *Runtime) Context() context.Context {
	return r.ctx
}

// ContextID returns the context id the handler runs under.
func (r *Runtime) ContextID() common.ContextID {
	return r.cid
}

// Document returns the document of the view.
func (r *Runtime) Document() *document.Document {
	return r.doc
}

// Topic returns the topic the view publishes on.
func (r *Runtime) Topic() string {
	return r.topic
}

// Format returns the encoding of the Results the view publishes.
func (r *Runtime) Format() push.EncodingFormat {
	return r.format
}

// Done is closed when the handler returned.
func (r *Runtime) Done() <-chan struct{} {
	return r.done
}

// Err returns the error the handler returned. It is only valid after Done is closed.
func (r *Runtime) Err() error {
	return r.err
}

// Show applies root to the document under the view's lock and publishes the result.
// Nothing is published when the document did not change.
func (r *Runtime) Show(root html.Child) error {
	var result document.Result
	err := r.doc.WithLock(r.ctx, r.cid, func() error {
		result = r.doc.Apply(root)
		return nil
	})
	if err != nil {
		return err
	}

	return r.publish(result)
}

// Update runs fn under the view's lock, then diffs the current root and
// publishes the result. fn mutates nodes of the shown tree in place.
func (r *Runtime) Update(fn func() error) error {
	var result document.Result
	err := r.doc.WithLock(r.ctx, r.cid, func() error {
		if err := fn(); err != nil {
			return err
		}
		if root := r.doc.Root(); root != nil {
			result = r.doc.Apply(root)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return r.publish(result)
}

// Serialize returns the full document. It takes the document lock under a
// fresh context id, so it waits for a running Update.
func (r *Runtime) Serialize(ctx context.Context) (document.Result, error) {
	var result document.Result
	err := r.doc.WithLock(ctx, common.NewContextID(), func() error {
		result = r.doc.Serialize()
		return nil
	})
	return result, err
}

// Schedule runs unit in a zone of the scheduler under the view's context.
// Stopping the view cancels the unit's context.
func (r *Runtime) Schedule(kind scheduling.Kind, zone string, unit scheduling.Unit) (*scheduling.Future, error) {
	return r.scheduler.Schedule(r.ctx, kind, zone, unit)
}

// ScheduleSync runs unit like Schedule and waits for its result.
func (r *Runtime) ScheduleSync(kind scheduling.Kind, zone string, unit scheduling.Unit) (any, error) {
	return r.scheduler.ScheduleSync(r.ctx, kind, zone, unit)
}

// Sleep waits for d. It returns an ErrStopped when the view is stopped first.
func (r *Runtime) Sleep(d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-r.ctx.Done():
		return common.ErrStopped{Context: r.cid, Cause: r.ctx.Err()}
	}
}

func (r *Runtime) publish(result document.Result) error {
	if result == nil {
		return nil
	}
	if update, ok := result.(document.Update); ok && update.Empty() {
		return nil
	}

	if err := r.publisher.Publish(r.ctx, r.topic, result, r.format); err != nil {
		return errors.Wrapf(err, "failed to publish %s result of view %s", result.Kind(), r.id)
	}

	r.logger.Debug("Result published",
		zap.String("kind", string(result.Kind())),
		zap.String("topic", r.topic))
	return nil
}
