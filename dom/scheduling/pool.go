package scheduling

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/gammazero/chanqueue"
	"go.uber.org/zap"

	"livedom/dom/common"
)

type job struct {
	ctx     context.Context
	context common.ContextID
	unit    Unit
	future  *Future
}

// pool is the fixed set of workers of one zone. Work of a zone is only ever
// served by the zone's own workers.
type pool struct {
	name   string
	kind   Kind
	size   int
	queue  *chanqueue.ChanQueue[*job]
	stop   chan struct{}
	wg     sync.WaitGroup
	logger *zap.Logger
}

func newPool(kind Kind, spec ZoneSpec, logger *zap.Logger) *pool {
	return &pool{
		name:  spec.Name,
		kind:  kind,
		size:  spec.Size,
		queue: chanqueue.New[*job](),
		stop:  make(chan struct{}),
		logger: logger.With(
			zap.String("zone", spec.Name),
			zap.String("kind", kind.String())),
	}
}

func (p *pool) start() {
	p.wg.Add(p.size)
	for i := 0; i < p.size; i++ {
		go p.work(i)
	}
}

func (p *pool) submit(j *job) {
	p.queue.In() <- j
}

func (p *pool) pending() int {
	return p.queue.Len()
}

// work runs until the stop channel is closed or the queue is closed and empty.
func (p *pool) work(worker int) {
	defer p.wg.Done()

	p.logger.Debug("Worker started", zap.Int("worker", worker))
	defer p.logger.Debug("Worker stopped", zap.Int("worker", worker))

	out := p.queue.Out()
	for {
		// a stop signal wins over queued work
		select {
		case <-p.stop:
			return
		default:
		}

		select {
		case <-p.stop:
			return
		case j, ok := <-out:
			if !ok {
				return
			}
			p.run(j)
		}
	}
}

func (p *pool) run(j *job) {
	defer func() {
		if r := recover(); r != nil {
			err := common.ErrUnitPanic{Value: r, Stack: string(debug.Stack())}
			p.logger.Warn("Unit panicked",
				zap.String("context", j.context.String()),
				zap.Any("panic", r))
			j.future.resolve(nil, err)
		}
	}()

	value, err := j.unit(j.ctx, j.context)
	if err != nil {
		p.logger.Debug("Unit failed",
			zap.String("context", j.context.String()),
			zap.Error(err))
	}
	j.future.resolve(value, err)
}

// shutdown closes the queue. With drain the workers serve everything still
// queued; otherwise they exit after their current unit.
func (p *pool) shutdown(drain bool) {
	if !drain {
		close(p.stop)
	}
	p.queue.Close()
}

// finish waits for the workers and resolves abandoned work with ErrStopped.
func (p *pool) finish() {
	p.wg.Wait()

	for j := range p.queue.Out() {
		j.future.resolve(nil, common.ErrStopped{
			Context: j.context,
			Cause:   common.ErrSchedulerStopped{},
		})
	}
}
