package triggers

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uitforum/internal/docstore"
)

func newTestDispatcher(t *testing.T, r *Registry, opts Options) (*Dispatcher, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	d := NewDispatcher(r, logger, opts)
	d.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Stop(ctx)
	})
	return d, hook
}

func TestDispatcherRoutesByPatternAndKind(t *testing.T) {
	r := NewRegistry()
	var mu sync.Mutex
	calls := map[string][]Event{}
	record := func(name string) HandlerFunc {
		return func(ctx context.Context, ev Event) error {
			mu.Lock()
			defer mu.Unlock()
			calls[name] = append(calls[name], ev)
			return nil
		}
	}
	r.OnCreate("postCreated", "Community/{communityID}/Post/{postID}", record("postCreated"))
	r.OnDelete("postDeleted", "Community/{communityID}/Post/{postID}", record("postDeleted"))
	r.OnCreate("commentCreated", "Community/{communityID}/Post/{postID}/Comment/{commentID}", record("commentCreated"))

	d, _ := newTestDispatcher(t, r, Options{Workers: 2})
	store := docstore.NewObserved(docstore.NewMemoryStore(), d)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "Community/c1/Post/p1", map[string]interface{}{"title": "t"}))
	require.NoError(t, store.Update(ctx, "Community/c1/Post/p1", map[string]interface{}{"title": "t2"}))
	require.NoError(t, store.Create(ctx, "Community/c1/Post/p1/Comment/x", map[string]interface{}{"content": "hi"}))
	require.NoError(t, store.Delete(ctx, "Community/c1/Post/p1"))
	d.Flush()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls["postCreated"], 1)
	assert.Equal(t, "p1", calls["postCreated"][0].Param("postID"))
	assert.Equal(t, "t", calls["postCreated"][0].Snapshot().Data["title"])

	require.Len(t, calls["commentCreated"], 1)
	assert.Equal(t, "x", calls["commentCreated"][0].Param("commentID"))

	require.Len(t, calls["postDeleted"], 1)
	del := calls["postDeleted"][0]
	assert.Nil(t, del.After)
	assert.Equal(t, "t2", del.Snapshot().Data["title"])

	assert.ElementsMatch(t, []string{"postCreated", "postDeleted", "commentCreated"}, r.Names())
}

func TestDispatcherFlushWaitsForCascadingEvents(t *testing.T) {
	r := NewRegistry()
	var store docstore.Store
	var chained int32
	// 每创建一个文档就在其子集合中再创建一个，直到深度为 3
	r.OnCreate("chain", "Node/{id}", func(ctx context.Context, ev Event) error {
		return store.Create(ctx, "Node/"+ev.Param("id")+"/Child/c", nil)
	})
	r.OnCreate("chainChild", "Node/{id}/Child/{childID}", func(ctx context.Context, ev Event) error {
		atomic.AddInt32(&chained, 1)
		return nil
	})

	d, _ := newTestDispatcher(t, r, Options{Workers: 1, QueueSize: 1})
	store = docstore.NewObserved(docstore.NewMemoryStore(), d)

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, store.Create(context.Background(), "Node/"+id, nil))
	}
	d.Flush()
	assert.Equal(t, int32(4), atomic.LoadInt32(&chained))
}

func TestDispatcherRetriesAndRecovers(t *testing.T) {
	r := NewRegistry()
	var attempts int32
	r.OnCreate("flaky", "Doc/{id}", func(ctx context.Context, ev Event) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	})
	r.OnCreate("panics", "Doc/{id}", func(ctx context.Context, ev Event) error {
		panic("boom")
	})

	d, hook := newTestDispatcher(t, r, Options{Workers: 1, Retries: 5})
	store := docstore.NewObserved(docstore.NewMemoryStore(), d)
	require.NoError(t, store.Create(context.Background(), "Doc/1", nil))
	d.Flush()

	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))

	var failed []string
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			failed = append(failed, e.Data["function"].(string))
		}
	}
	assert.Equal(t, []string{"panics"}, failed)
}

func TestDispatcherTimeout(t *testing.T) {
	r := NewRegistry()
	var sawDeadline int32
	r.OnCreate("slow", "Doc/{id}", func(ctx context.Context, ev Event) error {
		<-ctx.Done()
		atomic.StoreInt32(&sawDeadline, 1)
		return ctx.Err()
	})

	d, hook := newTestDispatcher(t, r, Options{Workers: 1, Timeout: 20 * time.Millisecond})
	store := docstore.NewObserved(docstore.NewMemoryStore(), d)
	require.NoError(t, store.Create(context.Background(), "Doc/1", nil))
	d.Flush()

	assert.Equal(t, int32(1), atomic.LoadInt32(&sawDeadline))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestDispatcherOverflowUsesSingleDrainer(t *testing.T) {
	r := NewRegistry()
	var calls int32
	r.OnCreate("postCreated", "Community/{communityID}/Post/{postID}", func(ctx context.Context, ev Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	logger, hook := test.NewNullLogger()
	d := NewDispatcher(r, logger, Options{Workers: 2, QueueSize: 1})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Stop(ctx)
	})

	// worker 未启动，除第一个事件外全部进入溢出缓冲
	before := runtime.NumGoroutine()
	for i := 0; i < 200; i++ {
		path := fmt.Sprintf("Community/c1/Post/p%d", i)
		d.Publish(docstore.Change{
			Kind:  docstore.ChangeCreate,
			Path:  path,
			After: &docstore.Doc{Path: path, Data: map[string]interface{}{"title": "t"}},
		})
	}
	assert.LessOrEqual(t, runtime.NumGoroutine(), before+1)
	assert.GreaterOrEqual(t, d.Backlog(), 199)

	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Message == "trigger queue full, delivery delayed" {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings)

	d.Start()
	d.Flush()
	assert.Equal(t, int32(200), atomic.LoadInt32(&calls))
	assert.Equal(t, 0, d.Backlog())
}
