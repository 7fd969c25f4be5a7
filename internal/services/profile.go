package services

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"uitforum/internal/docstore"
	"uitforum/internal/models"
)

// ProfileService 用户修改资料后，同步帖子、评论、入群申请中的作者快照
//
// 写入量与用户发帖/评论数成正比，没有分页。
type ProfileService struct {
	store  docstore.Store
	logger logrus.FieldLogger
}

func NewProfileService(store docstore.Store, logger logrus.FieldLogger) *ProfileService {
	return &ProfileService{store: store, logger: logger}
}

// ProfileChanged 只有名字、头像、院系变化才需要同步
func ProfileChanged(before, after *models.User) bool {
	return before.Snapshot() != after.Snapshot()
}

// UpdatePostsAndComments rewrites the author snapshot on every post and comment
// authored by userID.
func (s *ProfileService) UpdatePostsAndComments(ctx context.Context, userID string, before, after *models.User) error {
	if !ProfileChanged(before, after) {
		return nil
	}
	logger := s.logger.WithField("userID", userID)
	snapshot, err := models.Encode(after.Snapshot())
	if err != nil {
		return err
	}

	var result *multierror.Error
	updated := 0
	for _, collection := range []string{models.CollectionPost, models.CollectionComment} {
		docs, err := s.store.Query(ctx, collection, "authorID", userID)
		if err != nil {
			logger.WithError(err).WithField("collection", collection).Warn("query authored documents failed")
			result = multierror.Append(result, err)
			continue
		}
		for _, doc := range docs {
			if err := s.store.Update(ctx, doc.Path, map[string]interface{}{"author": snapshot}); err != nil {
				logger.WithError(err).WithField("path", doc.Path).Warn("update author snapshot failed")
				result = multierror.Append(result, err)
				continue
			}
			updated++
		}
	}
	logger.WithField("updated", updated).Info("author snapshots updated")
	return result.ErrorOrNil()
}

// UpdateMemberApprovals rewrites the user snapshot on pending join requests.
func (s *ProfileService) UpdateMemberApprovals(ctx context.Context, userID string, before, after *models.User) error {
	if !ProfileChanged(before, after) {
		return nil
	}
	logger := s.logger.WithField("userID", userID)
	snapshot, err := models.Encode(after.Snapshot())
	if err != nil {
		return err
	}

	docs, err := s.store.Query(ctx, models.CollectionMemberApproval, "userID", userID)
	if err != nil {
		logger.WithError(err).Warn("query member approvals failed")
		return err
	}

	var result *multierror.Error
	for _, doc := range docs {
		var approval models.MemberApproval
		if err := models.Decode(doc, &approval); err != nil || approval.Status != models.ApprovalPending {
			continue
		}
		if err := s.store.Update(ctx, doc.Path, map[string]interface{}{"user": snapshot}); err != nil {
			logger.WithError(err).WithField("path", doc.Path).Warn("update member approval failed")
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
