package services

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"uitforum/internal/docstore"
	"uitforum/internal/models"
)

// CascadeService 删除帖子或评论后清理其子集合（评论、投票、关注者等）
//
// 文档存储不会随父文档删除子集合，这里按"先快照、后删除"的顺序递归处理：
// 先枚举子文档，删除子文档自己的子树，再删除子文档本身。任何一个文档删除失败
// 只记录日志，不影响其兄弟节点，但失败节点的祖先会保留下来，错误汇总后返回给
// 调度器重试。重投递时对已删除的文档是空操作。
type CascadeService struct {
	store  docstore.Store
	logger logrus.FieldLogger
}

func NewCascadeService(store docstore.Store, logger logrus.FieldLogger) *CascadeService {
	return &CascadeService{store: store, logger: logger}
}

// DeletePostSubcollections removes every comment (replies included), every vote
// on the post or on any comment, and any other subcollection of the post.
func (s *CascadeService) DeletePostSubcollections(ctx context.Context, communityID, postID string) error {
	postPath := models.PostPath(communityID, postID)
	logger := s.logger.WithField("path", postPath)

	err := s.deleteSubcollections(ctx, postPath, logger)
	if err != nil {
		logger.WithError(err).Warn("post cascade finished with errors")
		return err
	}
	logger.Info("post subcollections deleted")
	return nil
}

// DeleteChildCommentAndVoteSubcollection removes the comment's own subcollections
// and, recursively, every reply pointing at it together with their votes.
func (s *CascadeService) DeleteChildCommentAndVoteSubcollection(ctx context.Context, communityID, postID, commentID string) error {
	commentPath := models.CommentPath(communityID, postID, commentID)
	logger := s.logger.WithField("path", commentPath)

	var result *multierror.Error
	if err := s.deleteSubcollections(ctx, commentPath, logger); err != nil {
		result = multierror.Append(result, err)
	}
	seen := map[string]bool{commentID: true}
	if err := s.deleteReplies(ctx, communityID, postID, commentID, seen, logger); err != nil {
		result = multierror.Append(result, err)
	}

	if err := result.ErrorOrNil(); err != nil {
		logger.WithError(err).Warn("comment cascade finished with errors")
		return err
	}
	logger.Info("comment subtree deleted")
	return nil
}

// deleteTree 后序删除：先删子集合，再删文档本身。
// 子树没有删干净时保留文档本身，重投递时还能从它找到剩下的后代
func (s *CascadeService) deleteTree(ctx context.Context, docPath string, logger logrus.FieldLogger) error {
	if err := s.deleteSubcollections(ctx, docPath, logger); err != nil {
		logger.WithField("doc", docPath).Info("subtree not fully deleted, keeping document")
		return err
	}
	if err := s.store.Delete(ctx, docPath); err != nil {
		logger.WithError(err).WithField("doc", docPath).Warn("cascade delete failed")
		return err
	}
	return nil
}

// deleteSubcollections 按路径前缀找子文档，父文档已缺失的后代也能找到
func (s *CascadeService) deleteSubcollections(ctx context.Context, docPath string, logger logrus.FieldLogger) error {
	collections, err := s.store.Collections(ctx, docPath)
	if err != nil {
		logger.WithError(err).WithField("doc", docPath).Warn("list subcollections failed")
		return err
	}

	var result *multierror.Error
	for _, id := range collections {
		collectionPath := docstore.Join(docPath, id)
		ids, err := s.store.DocumentIDs(ctx, collectionPath)
		if err != nil {
			logger.WithError(err).WithField("collection", collectionPath).Warn("list collection failed")
			result = multierror.Append(result, err)
			continue
		}
		for _, childID := range ids {
			if err := s.deleteTree(ctx, docstore.Join(collectionPath, childID), logger); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	return result.ErrorOrNil()
}

// deleteReplies 删除通过 parentCommentID 引用 parentID 的回复，直到找不到子回复为止
func (s *CascadeService) deleteReplies(ctx context.Context, communityID, postID, parentID string, seen map[string]bool, logger logrus.FieldLogger) error {
	docs, err := s.store.Query(ctx, models.CollectionComment, "parentCommentID", parentID)
	if err != nil {
		logger.WithError(err).WithField("parentCommentID", parentID).Warn("query replies failed")
		return err
	}

	commentCollection := models.CommentCollection(communityID, postID)
	var result *multierror.Error
	for _, doc := range docs {
		if collection, _ := docstore.Split(doc.Path); collection != commentCollection {
			continue
		}
		replyID := doc.ID()
		if seen[replyID] {
			continue
		}
		seen[replyID] = true

		if err := s.deleteReplies(ctx, communityID, postID, replyID, seen, logger); err != nil {
			result = multierror.Append(result, err)
		}
		if err := s.deleteTree(ctx, doc.Path, logger); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
