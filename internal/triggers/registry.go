package triggers

import (
	"context"
	"sync"
	"time"

	"uitforum/internal/docstore"
)

// Event 触发器事件
type Event struct {
	Kind   docstore.ChangeKind
	Path   string
	Params map[string]string
	Before *docstore.Doc
	After  *docstore.Doc
	Time   time.Time
}

// Param 获取路径参数
func (e Event) Param(name string) string {
	return e.Params[name]
}

// Snapshot returns the document the event is about: After for creates and
// updates, Before for deletes.
func (e Event) Snapshot() *docstore.Doc {
	if e.Kind == docstore.ChangeDelete {
		return e.Before
	}
	return e.After
}

type HandlerFunc func(ctx context.Context, ev Event) error

// Binding 一个已注册的触发器
type Binding struct {
	Name    string
	Pattern Pattern
	Kind    docstore.ChangeKind
	Handler HandlerFunc
}

type Registry struct {
	mu       sync.RWMutex
	bindings []Binding
}

func NewRegistry() *Registry {
	return &Registry{}
}

// On 注册触发器；pattern 非法时 panic（注册发生在启动阶段）
func (r *Registry) On(name, pattern string, kind docstore.ChangeKind, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings = append(r.bindings, Binding{
		Name:    name,
		Pattern: MustPattern(pattern),
		Kind:    kind,
		Handler: fn,
	})
}

func (r *Registry) OnCreate(name, pattern string, fn HandlerFunc) {
	r.On(name, pattern, docstore.ChangeCreate, fn)
}

func (r *Registry) OnUpdate(name, pattern string, fn HandlerFunc) {
	r.On(name, pattern, docstore.ChangeUpdate, fn)
}

func (r *Registry) OnDelete(name, pattern string, fn HandlerFunc) {
	r.On(name, pattern, docstore.ChangeDelete, fn)
}

// Match 返回与变更匹配的触发器及对应事件
func (r *Registry) Match(change docstore.Change) ([]Binding, []Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var bindings []Binding
	var events []Event
	for _, b := range r.bindings {
		if b.Kind != change.Kind {
			continue
		}
		params, ok := b.Pattern.Match(change.Path)
		if !ok {
			continue
		}
		bindings = append(bindings, b)
		events = append(events, Event{
			Kind:   change.Kind,
			Path:   change.Path,
			Params: params,
			Before: change.Before,
			After:  change.After,
			Time:   change.Time,
		})
	}
	return bindings, events
}

// Names 已注册的触发器名称
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.bindings))
	for _, b := range r.bindings {
		names = append(names, b.Name)
	}
	return names
}
