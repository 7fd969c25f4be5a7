package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

// MemoryStore 内存实现，用于测试和本地开发（STORE_BACKEND=memory）
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*Doc
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]*Doc),
		now:  time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, path string) (*Doc, error) {
	p, err := validDocPath(path)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[p]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDoc(d), nil
}

func (s *MemoryStore) Create(ctx context.Context, path string, data map[string]interface{}) error {
	p, err := validDocPath(path)
	if err != nil {
		return err
	}
	normalized, err := normalize(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[p]; ok {
		return ErrAlreadyExists
	}
	now := s.now()
	s.docs[p] = &Doc{Path: p, Data: normalized, CreatedAt: now, UpdatedAt: now}
	return nil
}

func (s *MemoryStore) Set(ctx context.Context, path string, data map[string]interface{}) error {
	p, err := validDocPath(path)
	if err != nil {
		return err
	}
	normalized, err := normalize(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if existing, ok := s.docs[p]; ok {
		existing.Data = normalized
		existing.UpdatedAt = now
		return nil
	}
	s.docs[p] = &Doc{Path: p, Data: normalized, CreatedAt: now, UpdatedAt: now}
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	p, err := validDocPath(path)
	if err != nil {
		return err
	}
	normalized, err := normalize(fields)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[p]
	if !ok {
		return ErrNotFound
	}
	for k, v := range normalized {
		d.Data[k] = v
	}
	d.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	p, err := validDocPath(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.docs, p)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Increment(ctx context.Context, path, field string, delta int64) error {
	p, err := validDocPath(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[p]
	if !ok {
		return ErrNotFound
	}
	var current float64
	switch v := d.Data[field].(type) {
	case float64:
		current = v
	case nil:
	default:
		return fmt.Errorf("field %q of %s is not numeric", field, p)
	}
	d.Data[field] = current + float64(delta)
	d.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) List(ctx context.Context, collectionPath string) ([]*Doc, error) {
	collectionPath = Clean(collectionPath)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Doc
	for p, d := range s.docs {
		if parent, _ := Split(p); parent == collectionPath {
			out = append(out, copyDoc(d))
		}
	}
	sortDocs(out)
	return out, nil
}

func (s *MemoryStore) Query(ctx context.Context, collectionID, field string, value interface{}) ([]*Doc, error) {
	want := TextValue(value)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Doc
	for p, d := range s.docs {
		parent, _ := Split(p)
		if CollectionID(parent) != collectionID {
			continue
		}
		v, ok := d.Data[field]
		if !ok || TextValue(v) != want {
			continue
		}
		out = append(out, copyDoc(d))
	}
	sortDocs(out)
	return out, nil
}

func (s *MemoryStore) Collections(ctx context.Context, docPath string) ([]string, error) {
	return s.children(descendantPrefix(docPath)), nil
}

func (s *MemoryStore) DocumentIDs(ctx context.Context, collectionPath string) ([]string, error) {
	return s.children(descendantPrefix(collectionPath)), nil
}

// children 收集 prefix 之下所有路径的第一段（去重、排序）
func (s *MemoryStore) children(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	for p := range s.docs {
		if seg, ok := childSegment(p, prefix); ok {
			seen[seg] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len 返回文档总数
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Paths 返回以 prefix 开头的全部文档路径（已排序）
func (s *MemoryStore) Paths(prefix string) []string {
	prefix = Clean(prefix)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for p := range s.docs {
		if prefix == "" || p == prefix || len(p) > len(prefix) && p[:len(prefix)+1] == prefix+"/" {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// TextValue renders a field value the way PostgreSQL's ->> operator does, so
// equality queries behave the same on every backend.
func TextValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// normalize 通过 JSON 往返得到与数据库一致的值类型（数字统一为 float64）
func normalize(data map[string]interface{}) (map[string]interface{}, error) {
	if data == nil {
		return map[string]interface{}{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	out := make(map[string]interface{})
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}

func copyDoc(d *Doc) *Doc {
	data, _ := normalize(d.Data)
	return &Doc{Path: d.Path, Data: data, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

func sortDocs(docs []*Doc) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
}
