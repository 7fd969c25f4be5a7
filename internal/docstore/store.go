package docstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
	ErrInvalidPath   = errors.New("invalid document path")
)

// Doc 文档快照
type Doc struct {
	Path      string
	Data      map[string]interface{}
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ID 返回文档 ID（路径最后一段）
func (d *Doc) ID() string {
	_, id := Split(d.Path)
	return id
}

// Store is the document database the functions run against. Paths alternate
// collection/document segments, e.g. "Community/c1/Post/p1".
//
// Deleting a document never removes its subcollections; that is the job of the
// cascade handlers.
type Store interface {
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, path string) (*Doc, error)
	// Create fails with ErrAlreadyExists when the document exists.
	Create(ctx context.Context, path string, data map[string]interface{}) error
	// Set creates or overwrites the whole document.
	Set(ctx context.Context, path string, data map[string]interface{}) error
	// Update merges top-level fields into an existing document.
	Update(ctx context.Context, path string, fields map[string]interface{}) error
	// Delete is a no-op for absent documents.
	Delete(ctx context.Context, path string) error
	// Increment atomically adds delta to a numeric top-level field of an existing document.
	Increment(ctx context.Context, path, field string, delta int64) error
	// List returns the documents directly inside collectionPath.
	List(ctx context.Context, collectionPath string) ([]*Doc, error)
	// Query is a collection group query: every collection named collectionID,
	// filtered by equality on a top-level field.
	Query(ctx context.Context, collectionID, field string, value interface{}) ([]*Doc, error)
	// Collections lists the IDs of every subcollection holding a descendant of
	// docPath, at any depth. docPath itself need not exist.
	Collections(ctx context.Context, docPath string) ([]string, error)
	// DocumentIDs lists the document IDs inside collectionPath, including
	// missing documents that only exist as ancestors of deeper documents.
	DocumentIDs(ctx context.Context, collectionPath string) ([]string, error)
}

// childSegment 返回 path 在 prefix 之下的第一段
func childSegment(path, prefix string) (string, bool) {
	rest, ok := strings.CutPrefix(path, prefix)
	if !ok || rest == "" {
		return "", false
	}
	seg, _, _ := strings.Cut(rest, "/")
	return seg, true
}

func descendantPrefix(p string) string {
	if p = Clean(p); p == "" {
		return ""
	}
	return p + "/"
}

// NewID 生成新的文档 ID
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Add 在集合中创建一个自动 ID 的文档
func Add(ctx context.Context, s Store, collectionPath string, data map[string]interface{}) (string, error) {
	id := NewID()
	if err := s.Create(ctx, Join(collectionPath, id), data); err != nil {
		return "", err
	}
	return id, nil
}

func validDocPath(p string) (string, error) {
	p = Clean(p)
	if !IsDocumentPath(p) {
		return "", ErrInvalidPath
	}
	return p, nil
}
