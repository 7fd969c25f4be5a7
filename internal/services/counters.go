package services

import (
	"context"
	"errors"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"uitforum/internal/docstore"
	"uitforum/internal/models"
)

// 计数字段
const (
	FieldTotalPost     = "totalPost"
	FieldTotalNewPost  = "totalNewPost"
	FieldTotalComments = "totalComments"
	FieldTotalReplies  = "totalReplies"
	FieldTotalMembers  = "totalMembers"
)

// CounterService 维护社区、帖子、评论上的聚合计数
// 所有计数都走存储的原子累加，不做读-改-写
type CounterService struct {
	store  docstore.Store
	logger logrus.FieldLogger
}

func NewCounterService(store docstore.Store, logger logrus.FieldLogger) *CounterService {
	return &CounterService{store: store, logger: logger}
}

// PostCreated 新帖：totalPost +1，totalNewPost +1
func (s *CounterService) PostCreated(ctx context.Context, communityID string) error {
	path := models.CommunityPath(communityID)
	var result *multierror.Error
	if err := s.add(ctx, path, FieldTotalPost, 1); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.add(ctx, path, FieldTotalNewPost, 1); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// PostDeleted 删帖：totalPost -1（totalNewPost 由客户端清零，不回退）
func (s *CounterService) PostDeleted(ctx context.Context, communityID string) error {
	return s.add(ctx, models.CommunityPath(communityID), FieldTotalPost, -1)
}

func (s *CounterService) CommentCreated(ctx context.Context, communityID, postID string, comment *models.Comment) error {
	return s.comment(ctx, communityID, postID, comment, 1)
}

func (s *CounterService) CommentDeleted(ctx context.Context, communityID, postID string, comment *models.Comment) error {
	return s.comment(ctx, communityID, postID, comment, -1)
}

func (s *CounterService) comment(ctx context.Context, communityID, postID string, comment *models.Comment, delta int64) error {
	var result *multierror.Error
	if err := s.add(ctx, models.PostPath(communityID, postID), FieldTotalComments, delta); err != nil {
		result = multierror.Append(result, err)
	}
	if comment.IsReply() {
		parent := models.CommentPath(communityID, postID, comment.ParentCommentID)
		if err := s.add(ctx, parent, FieldTotalReplies, delta); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// MemberAdded 社区成员数 +1
func (s *CounterService) MemberAdded(ctx context.Context, communityID string) error {
	return s.add(ctx, models.CommunityPath(communityID), FieldTotalMembers, 1)
}

// add 目标文档已不存在（例如父帖子已被删除）时跳过
func (s *CounterService) add(ctx context.Context, path, field string, delta int64) error {
	logger := s.logger.WithFields(logrus.Fields{"path": path, "field": field, "delta": delta})
	err := s.store.Increment(ctx, path, field, delta)
	if errors.Is(err, docstore.ErrNotFound) {
		logger.Info("counter target is gone, skipping")
		return nil
	}
	if err != nil {
		logger.WithError(err).Error("counter update failed")
		return err
	}
	return nil
}
