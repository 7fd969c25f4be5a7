package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Document 文档表的一行，Data 以 jsonb 存储
type Document struct {
	Path           string                 `gorm:"primaryKey;size:1024" json:"path"`
	CollectionPath string                 `gorm:"size:1024;not null;index" json:"collection_path"`
	CollectionID   string                 `gorm:"size:128;not null;index" json:"collection_id"`
	Data           map[string]interface{} `gorm:"serializer:json;type:jsonb;not null" json:"data"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

func (Document) TableName() string {
	return "documents"
}

func (d *Document) toDoc() *Doc {
	data := d.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	return &Doc{Path: d.Path, Data: data, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

func newRow(path string, data map[string]interface{}) *Document {
	collection, _ := Split(path)
	now := time.Now().UTC()
	return &Document{
		Path:           path,
		CollectionPath: collection,
		CollectionID:   CollectionID(collection),
		Data:           data,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// GormStore keeps every document in a single PostgreSQL table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, path string) (*Doc, error) {
	p, err := validDocPath(path)
	if err != nil {
		return nil, err
	}
	var row Document
	if err := s.db.WithContext(ctx).Where("path = ?", p).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", p, err)
	}
	return row.toDoc(), nil
}

func (s *GormStore) Create(ctx context.Context, path string, data map[string]interface{}) error {
	p, err := validDocPath(path)
	if err != nil {
		return err
	}
	normalized, err := normalize(data)
	if err != nil {
		return err
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(newRow(p, normalized))
	if result.Error != nil {
		return fmt.Errorf("create %s: %w", p, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (s *GormStore) Set(ctx context.Context, path string, data map[string]interface{}) error {
	p, err := validDocPath(path)
	if err != nil {
		return err
	}
	normalized, err := normalize(data)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "path"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).
		Create(newRow(p, normalized)).Error
	if err != nil {
		return fmt.Errorf("set %s: %w", p, err)
	}
	return nil
}

func (s *GormStore) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	p, err := validDocPath(path)
	if err != nil {
		return err
	}
	normalized, err := normalize(fields)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}
	result := s.db.WithContext(ctx).Model(&Document{}).
		Where("path = ?", p).
		Updates(map[string]interface{}{
			"data":       gorm.Expr("data || ?::jsonb", string(raw)),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("update %s: %w", p, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, path string) error {
	p, err := validDocPath(path)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Where("path = ?", p).Delete(&Document{}).Error; err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	return nil
}

// Increment 使用 jsonb_set 原子累加，避免读-改-写丢失更新
func (s *GormStore) Increment(ctx context.Context, path, field string, delta int64) error {
	p, err := validDocPath(path)
	if err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Model(&Document{}).
		Where("path = ?", p).
		Updates(map[string]interface{}{
			"data": gorm.Expr(
				"jsonb_set(data, ?::text[], to_jsonb(COALESCE((data->>?)::numeric, 0) + ?), true)",
				"{"+field+"}", field, delta,
			),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("increment %s.%s: %w", p, field, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) List(ctx context.Context, collectionPath string) ([]*Doc, error) {
	var rows []Document
	err := s.db.WithContext(ctx).
		Where("collection_path = ?", Clean(collectionPath)).
		Order("path ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collectionPath, err)
	}
	return toDocs(rows), nil
}

func (s *GormStore) Query(ctx context.Context, collectionID, field string, value interface{}) ([]*Doc, error) {
	var rows []Document
	err := s.db.WithContext(ctx).
		Where("collection_id = ? AND data->>? = ?", collectionID, field, TextValue(value)).
		Order("path ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query %s where %s: %w", collectionID, field, err)
	}
	return toDocs(rows), nil
}

func (s *GormStore) Collections(ctx context.Context, docPath string) ([]string, error) {
	ids, err := s.children(ctx, descendantPrefix(docPath))
	if err != nil {
		return nil, fmt.Errorf("collections of %s: %w", docPath, err)
	}
	return ids, nil
}

func (s *GormStore) DocumentIDs(ctx context.Context, collectionPath string) ([]string, error) {
	ids, err := s.children(ctx, descendantPrefix(collectionPath))
	if err != nil {
		return nil, fmt.Errorf("documents of %s: %w", collectionPath, err)
	}
	return ids, nil
}

// children 取 prefix 之下所有路径的第一段；中间文档缺失时仍能找到更深的后代
func (s *GormStore) children(ctx context.Context, prefix string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Raw(
		`SELECT DISTINCT split_part(substr(path, char_length(CAST(@prefix AS text)) + 1), '/', 1) AS id
		FROM documents
		WHERE starts_with(path, CAST(@prefix AS text)) AND path <> CAST(@prefix AS text)
		ORDER BY id`,
		sql.Named("prefix", prefix),
	).Scan(&ids).Error
	return ids, err
}

// Ping 检查数据库连接
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func toDocs(rows []Document) []*Doc {
	out := make([]*Doc, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDoc())
	}
	return out
}
