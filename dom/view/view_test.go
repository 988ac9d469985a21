package view

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"livedom/dom/common"
	"livedom/dom/document"
	"livedom/dom/html"
	"livedom/dom/push"
	"livedom/dom/scheduling"
)

type fixture struct {
	registry *Registry
	pubsub   *push.MemoryPubSub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	sopts := scheduling.NewOptions()
	sopts.Logger = logger
	scheduler, err := scheduling.NewScheduler(sopts)
	require.NoError(t, err)
	scheduler.Start()
	t.Cleanup(func() { scheduler.Stop(false) })

	popts := push.NewOptions()
	popts.Logger = logger
	pubsub := push.NewMemoryPubSub(popts)
	t.Cleanup(func() { _ = pubsub.Close() })

	opts := NewOptions()
	opts.Logger = logger
	return &fixture{
		registry: NewRegistry(scheduler, pubsub, opts),
		pubsub:   pubsub,
	}
}

// results subscribes to topic and decodes everything published on it.
func (f *fixture) results(t *testing.T, topic string) <-chan document.Result {
	ch := make(chan document.Result, 16)
	err := f.pubsub.Subscribe(context.Background(), topic, "test", func(_ context.Context, _ string, data []byte, format push.EncodingFormat) error {
		result, err := push.DecodeResult(data, format)
		if err != nil {
			return err
		}
		ch <- result
		return nil
	})
	require.NoError(t, err)
	return ch
}

func receive(t *testing.T, ch <-chan document.Result) document.Result {
	t.Helper()
	select {
	case result := <-ch:
		return result
	case <-time.After(2 * time.Second):
		t.Fatal("no result published")
		return nil
	}
}

func TestRuntime_ShowAndUpdatePublishResults(t *testing.T) {
	f := newFixture(t)

	proceed := make(chan struct{})
	counter := html.NewNode("span", html.Children(html.Text("0")))

	rt, err := f.registry.Start("counter", func(rt *Runtime) error {
		<-proceed
		if err := rt.Show(html.NewNode("div", html.Children(counter))); err != nil {
			return err
		}
		return rt.Update(func() error {
			counter.SetText("1")
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, "counter", rt.Name())
	assert.Equal(t, push.EncodingFormatJSON, rt.Format())
	assert.NotEqual(t, common.NilContextID, rt.ContextID())

	results := f.results(t, rt.Topic())
	close(proceed)

	full := receive(t, results)
	require.Equal(t, document.KindTree, full.Kind())
	assert.Contains(t, full.(document.FullTree).HTML, counter.ID().String())

	update := receive(t, results).(document.Update)
	require.Len(t, update.Changes, 1)
	assert.Equal(t, counter.ID(), update.Changes[0].NodeID)
	require.NotNil(t, update.Changes[0].InnerHTML)
	assert.Equal(t, "1", *update.Changes[0].InnerHTML)

	<-rt.Done()
	assert.NoError(t, rt.Err())

	_, err = f.registry.Get(rt.ID())
	assert.ErrorAs(t, err, &common.ErrViewNotFound{})
}

func TestRuntime_ShowSameTreeTwicePublishesOnce(t *testing.T) {
	f := newFixture(t)

	proceed := make(chan struct{})
	rt, err := f.registry.Start("static", func(rt *Runtime) error {
		<-proceed
		root := html.NewNode("p", html.Children(html.Text("static")))
		if err := rt.Show(root); err != nil {
			return err
		}
		if err := rt.Show(root); err != nil {
			return err
		}
		return rt.Show(html.Text("done"))
	})
	require.NoError(t, err)

	results := f.results(t, rt.Topic())
	close(proceed)

	assert.Equal(t, document.KindTree, receive(t, results).Kind())
	assert.Equal(t, document.FullLiteral{Text: "done"}, receive(t, results))
}

func TestRegistry_StopCancelsView(t *testing.T) {
	f := newFixture(t)

	rt, err := f.registry.Start("sleeper", func(rt *Runtime) error {
		for {
			if err := rt.Sleep(time.Hour); err != nil {
				return err
			}
		}
	})
	require.NoError(t, err)

	infos := f.registry.List()
	require.Len(t, infos, 1)
	assert.Equal(t, rt.ID(), infos[0].ID)
	assert.Equal(t, "sleeper", infos[0].Name)

	require.NoError(t, f.registry.Stop(rt.ID()))

	select {
	case <-rt.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("view did not stop")
	}

	var stopped common.ErrStopped
	require.True(t, errors.As(rt.Err(), &stopped))
	assert.Equal(t, rt.ContextID(), stopped.Context)
	assert.Empty(t, f.registry.List())

	assert.ErrorAs(t, f.registry.Stop(rt.ID()), &common.ErrViewNotFound{})
}

func TestRegistry_ListInStartOrderAndStopAll(t *testing.T) {
	f := newFixture(t)

	block := func(rt *Runtime) error {
		<-rt.Context().Done()
		return nil
	}

	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		rt, err := f.registry.Start(name, block)
		require.NoError(t, err)
		ids = append(ids, rt.ID())
	}

	infos := f.registry.List()
	require.Len(t, infos, 3)
	for i, info := range infos {
		assert.Equal(t, ids[i], info.ID)
		assert.Equal(t, push.Topic("livedom", ids[i]), info.Topic)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.registry.StopAll(ctx))
	assert.Empty(t, f.registry.List())
}

func TestRuntime_SerializeWaitsForUpdate(t *testing.T) {
	f := newFixture(t)

	inside := make(chan struct{})
	release := make(chan struct{})
	label := html.NewNode("b", html.Children(html.Text("before")))

	rt, err := f.registry.Start("slow", func(rt *Runtime) error {
		if err := rt.Show(label); err != nil {
			return err
		}
		return rt.Update(func() error {
			close(inside)
			<-release
			label.SetText("after")
			return nil
		})
	})
	require.NoError(t, err)

	<-inside

	var wg sync.WaitGroup
	var serialized document.Result
	wg.Add(1)
	go func() {
		defer wg.Done()
		serialized, err = rt.Serialize(context.Background())
	}()

	// the reader queues behind the running update
	assert.Eventually(t, func() bool { return rt.Document().Locks().Len() == 2 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	require.NoError(t, err)
	assert.Contains(t, serialized.(document.FullTree).HTML, "after")
}

func TestRuntime_HandlerErrorIsRecorded(t *testing.T) {
	f := newFixture(t)

	sentinel := errors.New("view broke")
	rt, err := f.registry.Start("broken", func(*Runtime) error {
		return sentinel
	})
	require.NoError(t, err)

	<-rt.Done()
	assert.ErrorIs(t, rt.Err(), sentinel)
}

func TestRegistry_DispatchDeliversResolvedEvent(t *testing.T) {
	f := newFixture(t)

	button := html.NewNode("button", html.Children(html.Text("press")))
	widget := html.NewWidget(button)
	received := make(chan InputEvent, 1)

	shown := make(chan struct{})
	rt, err := f.registry.Start("buttons", func(rt *Runtime) error {
		if err := rt.Show(html.NewNode("div", html.Children(widget))); err != nil {
			return err
		}
		close(shown)

		ev, err := rt.AwaitInputEvent(context.Background())
		if err != nil {
			return err
		}
		received <- ev
		return nil
	})
	require.NoError(t, err)
	<-shown

	err = f.registry.Dispatch(context.Background(), rt.ID(), InputEvent{
		Name:   "click",
		NodeID: button.ID(),
		Data:   map[string]interface{}{"x": 1.0},
	})
	require.NoError(t, err)

	select {
	case ev := <-received:
		assert.Equal(t, "click", ev.Name)
		assert.Same(t, button, ev.Node)
		assert.Equal(t, []*html.Widget{widget}, ev.Widgets)
		assert.Equal(t, 1.0, ev.Data["x"])
	case <-time.After(2 * time.Second):
		t.Fatal("event not received")
	}

	<-rt.Done()
	assert.NoError(t, rt.Err())
}

func TestRegistry_DispatchErrors(t *testing.T) {
	f := newFixture(t)
	opts := NewOptions()
	opts.EventBuffer = 1
	opts.Logger = zaptest.NewLogger(t)
	registry := NewRegistry(f.registry.scheduler, f.pubsub, opts)

	rt, err := registry.Start("idle", func(rt *Runtime) error {
		<-rt.Context().Done()
		return nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = registry.Stop(rt.ID()) })

	ctx := context.Background()

	err = registry.Dispatch(ctx, rt.ID(), InputEvent{Name: "click", NodeID: "missing"})
	assert.ErrorAs(t, err, &common.ErrNodeNotFound{})

	require.NoError(t, registry.Dispatch(ctx, rt.ID(), InputEvent{Name: "custom"}))
	err = registry.Dispatch(ctx, rt.ID(), InputEvent{Name: "custom"})
	assert.ErrorAs(t, err, &common.ErrInputQueueFull{})

	err = registry.Dispatch(ctx, "views-404", InputEvent{Name: "click"})
	assert.ErrorAs(t, err, &common.ErrViewNotFound{})

	opts.EventZone = "nowhere"
	err = registry.Dispatch(ctx, rt.ID(), InputEvent{Name: "custom"})
	assert.ErrorAs(t, err, &common.ErrUnknownZone{})
}

func TestRuntime_AwaitInputEventStopsWithView(t *testing.T) {
	f := newFixture(t)

	rt, err := f.registry.Start("waiter", func(rt *Runtime) error {
		_, err := rt.AwaitInputEvent(context.Background())
		return err
	})
	require.NoError(t, err)

	require.NoError(t, f.registry.Stop(rt.ID()))
	<-rt.Done()
	assert.ErrorAs(t, rt.Err(), &common.ErrStopped{})
}

func TestRuntime_Schedule(t *testing.T) {
	f := newFixture(t)

	type outcome struct {
		sync  any
		async any
		zone  error
	}
	results := make(chan outcome, 1)

	rt, err := f.registry.Start("scheduling", func(rt *Runtime) error {
		var out outcome
		double := func(_ context.Context, _ common.ContextID) (any, error) {
			return 21 * 2, nil
		}

		value, err := rt.ScheduleSync(scheduling.KindTask, scheduling.ZoneHigh, double)
		if err != nil {
			return err
		}
		out.sync = value

		future, err := rt.Schedule(scheduling.KindBlocking, "", double)
		if err != nil {
			return err
		}
		if out.async, err = future.Wait(rt.Context()); err != nil {
			return err
		}

		_, out.zone = rt.Schedule(scheduling.KindTask, "nowhere", double)
		results <- out
		return nil
	})
	require.NoError(t, err)

	out := <-results
	assert.Equal(t, 42, out.sync)
	assert.Equal(t, 42, out.async)
	assert.ErrorAs(t, out.zone, &common.ErrUnknownZone{})

	<-rt.Done()
	assert.NoError(t, rt.Err())
}
