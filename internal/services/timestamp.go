package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"uitforum/internal/docstore"
	"uitforum/internal/models"
)

const FieldLastModified = "lastModified"

// TimestampService 帖子或评论内容被编辑后写入 lastModified
type TimestampService struct {
	store  docstore.Store
	logger logrus.FieldLogger
	now    func() time.Time
}

func NewTimestampService(store docstore.Store, logger logrus.FieldLogger) *TimestampService {
	return &TimestampService{store: store, logger: logger, now: time.Now}
}

// PostEdited ignores updates that only touch counters, snapshots or lastModified
// itself, so writing the timestamp does not retrigger it.
func (s *TimestampService) PostEdited(ctx context.Context, path string, before, after *models.Post) error {
	if before.Title == after.Title &&
		before.Content == after.Content &&
		before.CategoryID == after.CategoryID &&
		before.IsAnnouncement == after.IsAnnouncement {
		return nil
	}
	return s.touch(ctx, path)
}

func (s *TimestampService) CommentEdited(ctx context.Context, path string, before, after *models.Comment) error {
	if before.Content == after.Content {
		return nil
	}
	return s.touch(ctx, path)
}

func (s *TimestampService) touch(ctx context.Context, path string) error {
	err := s.store.Update(ctx, path, map[string]interface{}{FieldLastModified: s.now().UTC()})
	if errors.Is(err, docstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		s.logger.WithError(err).WithField("path", path).Warn("set lastModified failed")
	}
	return err
}
