package view

import (
	"context"

	"go.uber.org/zap"

	"livedom/dom/common"
	"livedom/dom/html"
	"livedom/dom/scheduling"
)

// InputEvent is an input a display surface sent to a view: a click, a change
// or a custom event, optionally addressed to a node of the view's document.
type InputEvent struct {
	Name   string                 `json:"name"`
	NodeID common.NodeID          `json:"node_id,omitempty"`
	Data   map[string]interface{} `json:"data,omitempty"`

	// Node and Widgets are resolved from NodeID when the event is dispatched.
	Node    html.Element   `json:"-"`
	Widgets []*html.Widget `json:"-"`
}

// AwaitInputEvent blocks until the next input event for the view arrives.
// It returns an ErrStopped when ctx is done or the view is stopped first.
func (r *Runtime) AwaitInputEvent(ctx context.Context) (InputEvent, error) {
	select {
	case ev := <-r.events:
		return ev, nil
	case <-ctx.Done():
		return InputEvent{}, common.ErrStopped{Context: r.cid, Cause: ctx.Err()}
	case <-r.ctx.Done():
		return InputEvent{}, common.ErrStopped{Context: r.cid, Cause: r.ctx.Err()}
	}
}

// deliver queues ev without waiting for the handler.
func (r *Runtime) deliver(ev InputEvent) error {
	select {
	case <-r.done:
		return common.ErrViewNotFound{ID: r.id}
	default:
	}

	select {
	case r.events <- ev:
		return nil
	default:
		return common.ErrInputQueueFull{View: r.id}
	}
}

// Dispatch resolves the node of ev under the document lock and queues the
// event for the view. It runs as a task unit in the event zone and returns
// once the event is queued or rejected.
func (r *Registry) Dispatch(ctx context.Context, viewID string, ev InputEvent) error {
	rt, err := r.Get(viewID)
	if err != nil {
		return err
	}

	_, err = r.scheduler.ScheduleSync(ctx, scheduling.KindTask, r.options.EventZone,
		func(ctx context.Context, cid common.ContextID) (any, error) {
			if ev.NodeID != "" {
				node, widgets, err := rt.doc.Find(ctx, cid, ev.NodeID)
				if err != nil {
					return nil, err
				}
				if node == nil {
					return nil, common.ErrNodeNotFound{ID: ev.NodeID}
				}
				ev.Node, ev.Widgets = node, widgets
			}
			return nil, rt.deliver(ev)
		})
	if err != nil {
		r.logger.Debug("Input event rejected",
			zap.String("view", viewID),
			zap.String("event", ev.Name),
			zap.Error(err))
		return err
	}

	r.logger.Debug("Input event dispatched",
		zap.String("view", viewID),
		zap.String("event", ev.Name),
		zap.String("node", ev.NodeID.String()))
	return nil
}
