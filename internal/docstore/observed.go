package docstore

import (
	"context"
	"errors"
	"time"
)

// ChangeKind 文档变更类型
type ChangeKind string

const (
	ChangeCreate ChangeKind = "create"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// Change describes one committed write. Before is nil for creates, After is nil for deletes.
type Change struct {
	Kind   ChangeKind
	Path   string
	Before *Doc
	After  *Doc
	Time   time.Time
}

// Publisher receives committed changes. Publish must not block on handler execution.
type Publisher interface {
	Publish(change Change)
}

// Observed wraps a Store and publishes a Change after every successful write,
// which is how document triggers are fed. Snapshots are read around the write
// and are not transactional with it.
type Observed struct {
	Store
	pub Publisher
}

func NewObserved(store Store, pub Publisher) *Observed {
	return &Observed{Store: store, pub: pub}
}

func (o *Observed) Create(ctx context.Context, path string, data map[string]interface{}) error {
	if err := o.Store.Create(ctx, path, data); err != nil {
		return err
	}
	o.emit(ctx, ChangeCreate, path, nil)
	return nil
}

func (o *Observed) Set(ctx context.Context, path string, data map[string]interface{}) error {
	before, err := o.before(ctx, path)
	if err != nil {
		return err
	}
	if err := o.Store.Set(ctx, path, data); err != nil {
		return err
	}
	kind := ChangeUpdate
	if before == nil {
		kind = ChangeCreate
	}
	o.emit(ctx, kind, path, before)
	return nil
}

func (o *Observed) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	before, err := o.before(ctx, path)
	if err != nil {
		return err
	}
	if err := o.Store.Update(ctx, path, fields); err != nil {
		return err
	}
	o.emit(ctx, ChangeUpdate, path, before)
	return nil
}

func (o *Observed) Increment(ctx context.Context, path, field string, delta int64) error {
	before, err := o.before(ctx, path)
	if err != nil {
		return err
	}
	if err := o.Store.Increment(ctx, path, field, delta); err != nil {
		return err
	}
	o.emit(ctx, ChangeUpdate, path, before)
	return nil
}

// Delete 删除不存在的文档不会产生事件
func (o *Observed) Delete(ctx context.Context, path string) error {
	before, err := o.before(ctx, path)
	if err != nil {
		return err
	}
	if err := o.Store.Delete(ctx, path); err != nil {
		return err
	}
	if before != nil {
		o.pub.Publish(Change{Kind: ChangeDelete, Path: Clean(path), Before: before, Time: time.Now()})
	}
	return nil
}

func (o *Observed) before(ctx context.Context, path string) (*Doc, error) {
	doc, err := o.Store.Get(ctx, path)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return doc, err
}

func (o *Observed) emit(ctx context.Context, kind ChangeKind, path string, before *Doc) {
	after, err := o.Store.Get(ctx, path)
	if err != nil {
		// 写入后立即被并发删除，忽略
		return
	}
	o.pub.Publish(Change{Kind: kind, Path: after.Path, Before: before, After: after, Time: time.Now()})
}
