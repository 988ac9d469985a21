package view

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"livedom/dom/common"
	"livedom/dom/document"
	"livedom/dom/push"
	"livedom/dom/scheduling"
)

// Options configures a Registry.
type Options struct {
	// Zone is the thread zone view handlers run in. Empty means the
	// scheduler's default thread zone.
	Zone string
	// EventZone is the task zone input events are dispatched in. Empty
	// means the scheduler's default task zone.
	EventZone string
	// EventBuffer is the number of input events a view can have queued.
	EventBuffer int
	// TopicPrefix prefixes the topic of every view.
	TopicPrefix string
	// Format is the encoding of published results.
	Format push.EncodingFormat
	// Logger receives view lifecycle logs. Nil means no logging.
	Logger *zap.Logger
}

// NewOptions returns the default options.
func NewOptions() *Options {
	return &Options{
		Zone:        "",
		EventZone:   "",
		EventBuffer: 32,
		TopicPrefix: "livedom",
		Format:      push.EncodingFormatJSON,
	}
}

// Info describes a running view.
type Info struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Topic string `json:"topic"`
}

type entry struct {
	seq     uint64
	runtime *Runtime
	cancel  context.CancelFunc
}

// Registry holds the running views. A view leaves the registry when its
// handler returns.
type Registry struct {
	mutex sync.RWMutex
	views map[string]*entry
	seq   uint64

	scheduler *scheduling.Scheduler
	publisher push.Publisher
	options   *Options
	logger    *zap.Logger
}

// NewRegistry creates a Registry that runs views on scheduler and publishes through publisher.
func NewRegistry(scheduler *scheduling.Scheduler, publisher push.Publisher, options *Options) *Registry {
	if options == nil {
		options = NewOptions()
	}
	if options.EventBuffer <= 0 {
		options.EventBuffer = NewOptions().EventBuffer
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registry{
		views:     make(map[string]*entry),
		scheduler: scheduler,
		publisher: publisher,
		options:   options,
		logger:    logger,
	}
}

// Start schedules handler as a new view and returns its Runtime.
func (r *Registry) Start(name string, handler Handler) (*Runtime, error) {
	id := common.GenerateID(common.NamespaceViews)
	viewCtx, cancel := context.WithCancel(context.Background())

	rt := &Runtime{
		id:        id,
		name:      name,
		scheduler: r.scheduler,
		events:    make(chan InputEvent, r.options.EventBuffer),
		publisher: r.publisher,
		topic:     push.Topic(r.options.TopicPrefix, id),
		format:    r.options.Format,
		done:      make(chan struct{}),
		logger:    r.logger.With(zap.String("view", id), zap.String("name", name)),
	}

	opts := document.NewOptions()
	opts.Logger = rt.logger
	rt.doc = document.NewDocument(opts)

	// the unit must not touch the runtime before it is fully set up
	ready := make(chan struct{})

	future, err := r.scheduler.Schedule(viewCtx, scheduling.KindBlocking, r.options.Zone,
		func(ctx context.Context, cid common.ContextID) (any, error) {
			<-ready
			rt.ctx = ctx
			return nil, handler(rt)
		})
	if err != nil {
		cancel()
		return nil, errors.Wrapf(err, "failed to start view %s", name)
	}

	rt.cid = future.Context()

	r.mutex.Lock()
	r.seq++
	r.views[id] = &entry{seq: r.seq, runtime: rt, cancel: cancel}
	r.mutex.Unlock()

	close(ready)

	go r.reap(rt, future, cancel)

	r.logger.Info("View started",
		zap.String("view", id),
		zap.String("name", name),
		zap.String("context", rt.cid.String()))
	return rt, nil
}

// reap removes the view once its unit resolved.
func (r *Registry) reap(rt *Runtime, future *scheduling.Future, cancel context.CancelFunc) {
	_, err := future.Wait(context.Background())
	cancel()

	r.mutex.Lock()
	delete(r.views, rt.id)
	r.mutex.Unlock()

	rt.err = err
	close(rt.done)

	var stopped common.ErrStopped
	switch {
	case err == nil:
		r.logger.Info("View finished", zap.String("view", rt.id))
	case errors.As(err, &stopped), errors.Is(err, context.Canceled):
		r.logger.Info("View stopped", zap.String("view", rt.id), zap.Error(err))
	default:
		r.logger.Warn("View failed", zap.String("view", rt.id), zap.Error(err))
	}
}

// Get returns the Runtime of a running view.
func (r *Registry) Get(id string) (*Runtime, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	e, ok := r.views[id]
	if !ok {
		return nil, common.ErrViewNotFound{ID: id}
	}
	return e.runtime, nil
}

// List returns the running views in start order.
func (r *Registry) List() []Info {
	r.mutex.RLock()
	entries := make([]*entry, 0, len(r.views))
	for _, e := range r.views {
		entries = append(entries, e)
	}
	r.mutex.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})

	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, Info{ID: e.runtime.id, Name: e.runtime.name, Topic: e.runtime.topic})
	}
	return infos
}

// Stop cancels the context of a running view. It does not wait for the handler.
func (r *Registry) Stop(id string) error {
	r.mutex.RLock()
	e, ok := r.views[id]
	r.mutex.RUnlock()

	if !ok {
		return common.ErrViewNotFound{ID: id}
	}
	e.cancel()
	return nil
}

// StopAll cancels all running views and waits until their handlers returned or ctx is done.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mutex.RLock()
	entries := make([]*entry, 0, len(r.views))
	for _, e := range r.views {
		entries = append(entries, e)
	}
	r.mutex.RUnlock()

	for _, e := range entries {
		e.cancel()
	}
	for _, e := range entries {
		select {
		case <-e.runtime.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
