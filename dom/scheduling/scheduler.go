// Package scheduling runs units of application work in named priority zones.
//
// Every zone has two independent budgets: a task pool of persistent workers
// for short units, and a thread pool for units that block for a long time.
// Work queued in a zone is only served by that zone's budget, so a flood of
// low priority work cannot starve a high priority zone.
//
// The scheduler assigns each unit a fresh context id. Units pass it to
// anything that needs to know the calling context, such as a document lock.
package scheduling

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"livedom/dom/common"
)

// Unit is a unit of work. ctx is cancelled when the scheduler stops without
// grace or the scheduling context is cancelled.
type Unit func(ctx context.Context, cid common.ContextID) (any, error)

// Kind selects which budget of a zone serves a unit.
type Kind int

const (
	// KindTask units run on the persistent task workers of a zone.
	KindTask Kind = iota
	// KindBlocking units run on the thread pool of a zone.
	KindBlocking
)

func (k Kind) String() string {
	switch k {
	case KindTask:
		return "task"
	case KindBlocking:
		return "blocking"
	default:
		return "unknown"
	}
}

// Options configures a Scheduler.
type Options struct {
	TaskZones   []ZoneSpec
	ThreadZones []ZoneSpec

	// DefaultTaskZone serves task units scheduled with an empty zone name.
	DefaultTaskZone string
	// DefaultThreadZone serves blocking units scheduled with an empty zone name.
	DefaultThreadZone string

	Logger *zap.Logger
}

// NewOptions returns the default zone configuration.
func NewOptions() *Options {
	return &Options{
		TaskZones:         DefaultTaskZones(),
		ThreadZones:       DefaultThreadZones(),
		DefaultTaskZone:   ZoneMedium,
		DefaultThreadZone: ZoneMedium,
	}
}

// Scheduler owns the zones.
type Scheduler struct {
	mutex   sync.RWMutex
	zones   map[Kind]map[string]*pool
	started bool
	stopped bool

	defaults map[Kind]string

	// base is cancelled on stop and is the parent of every unit context.
	base   context.Context
	cancel context.CancelFunc

	logger *zap.Logger
}

// NewScheduler creates a Scheduler. Zones are not served until Start.
func NewScheduler(opts *Options) (*Scheduler, error) {
	if opts == nil {
		opts = NewOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scheduler{
		zones: map[Kind]map[string]*pool{
			KindTask:     {},
			KindBlocking: {},
		},
		defaults: map[Kind]string{
			KindTask:     opts.DefaultTaskZone,
			KindBlocking: opts.DefaultThreadZone,
		},
		logger: logger,
	}
	s.base, s.cancel = context.WithCancel(context.Background())

	if err := s.addZones(KindTask, opts.TaskZones); err != nil {
		return nil, err
	}
	if err := s.addZones(KindBlocking, opts.ThreadZones); err != nil {
		return nil, err
	}

	for kind, name := range s.defaults {
		if name == "" {
			continue
		}
		if _, ok := s.zones[kind][name]; !ok {
			return nil, errors.Wrapf(common.ErrUnknownZone{Zone: name}, "default %s zone", kind)
		}
	}

	return s, nil
}

func (s *Scheduler) addZones(kind Kind, specs []ZoneSpec) error {
	for _, spec := range specs {
		if spec.Size <= 0 {
			return errors.Errorf("%s zone %q: size must be positive", kind, spec.Name)
		}
		if _, exists := s.zones[kind][spec.Name]; exists {
			return errors.Errorf("%s zone %q: duplicate zone", kind, spec.Name)
		}
		s.zones[kind][spec.Name] = newPool(kind, spec, s.logger)
	}
	return nil
}

// Start launches the workers of every zone. Calling it again has no effect.
func (s *Scheduler) Start() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.started || s.stopped {
		return
	}
	s.started = true

	for _, zones := range s.zones {
		for _, p := range zones {
			p.start()
		}
	}

	s.logger.Info("Scheduler started",
		zap.Int("task_zones", len(s.zones[KindTask])),
		zap.Int("thread_zones", len(s.zones[KindBlocking])))
}

// Zones returns the sorted zone names of a kind.
func (s *Scheduler) Zones(kind Kind) []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	names := make([]string, 0, len(s.zones[kind]))
	for name := range s.zones[kind] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pending returns the number of queued units of a zone that no worker picked up yet.
func (s *Scheduler) Pending(kind Kind, zone string) (int, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	p, err := s.zone(kind, zone)
	if err != nil {
		return 0, err
	}
	return p.pending(), nil
}

// Schedule queues unit in zone and returns its Future. An empty zone selects
// the default zone of kind. Units are served FIFO within a zone.
func (s *Scheduler) Schedule(ctx context.Context, kind Kind, zone string, unit Unit) (*Future, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.stopped {
		return nil, common.ErrSchedulerStopped{}
	}

	p, err := s.zone(kind, zone)
	if err != nil {
		return nil, err
	}

	cid := common.NewContextID()
	future := newFuture(cid)

	unitCtx, cancel := context.WithCancel(ctx)
	stopBase := context.AfterFunc(s.base, cancel)

	p.submit(&job{
		ctx:     unitCtx,
		context: cid,
		unit: func(ctx context.Context, cid common.ContextID) (any, error) {
			defer cancel()
			defer stopBase()
			return unit(ctx, cid)
		},
		future: future,
	})

	return future, nil
}

// ScheduleSync schedules unit and waits for its result. If ctx is done
// before the unit finished, an ErrStopped is returned.
func (s *Scheduler) ScheduleSync(ctx context.Context, kind Kind, zone string, unit Unit) (any, error) {
	future, err := s.Schedule(ctx, kind, zone, unit)
	if err != nil {
		return nil, err
	}
	return future.Wait(ctx)
}

// Stop ends all workers. A graceful stop lets task workers finish their
// current unit, runs everything queued on the thread pools and waits for
// both. Otherwise Stop cancels the unit contexts and returns without waiting.
// Work that no worker will serve anymore resolves with ErrStopped.
func (s *Scheduler) Stop(graceful bool) {
	s.mutex.Lock()
	if s.stopped {
		s.mutex.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	s.mutex.Unlock()

	s.logger.Info("Scheduler stopping", zap.Bool("graceful", graceful))

	var pools []*pool
	for kind, zones := range s.zones {
		for _, p := range zones {
			p.shutdown(graceful && started && kind == KindBlocking)
			pools = append(pools, p)
		}
	}

	if !graceful {
		s.cancel()
		for _, p := range pools {
			go p.finish()
		}
		return
	}

	var wg sync.WaitGroup
	for _, p := range pools {
		wg.Add(1)
		go func(p *pool) {
			defer wg.Done()
			p.finish()
		}(p)
	}
	wg.Wait()
	s.cancel()

	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) zone(kind Kind, zone string) (*pool, error) {
	if zone == "" {
		zone = s.defaults[kind]
	}
	p, ok := s.zones[kind][zone]
	if !ok {
		return nil, common.ErrUnknownZone{Zone: zone}
	}
	return p, nil
}
