package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"uitforum/internal/docstore"
	"uitforum/internal/models"
	"uitforum/internal/utils"
)

var communityNameCacheSize = 500

// NotificationService 新评论、新帖子产生通知文档，推送由 PushService 在通知创建后完成
type NotificationService struct {
	store  docstore.Store
	logger logrus.FieldLogger
	names  *utils.Cache[string] // communityID -> 社区名
	now    func() time.Time
}

func NewNotificationService(store docstore.Store, logger logrus.FieldLogger) (*NotificationService, error) {
	names, err := utils.NewCache[string](communityNameCacheSize, 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("community name cache: %w", err)
	}
	return &NotificationService{store: store, logger: logger, names: names, now: time.Now}, nil
}

// ForgetCommunity 社区资料变更后清除名称缓存
func (s *NotificationService) ForgetCommunity(communityID string) {
	s.names.Delete(communityID)
}

// CommentCreated notifies, in order: the parent comment's author for a reply
// (type 3) or the post author otherwise (type 1), then every follower of the
// post (type 5). Nobody is notified twice and the commenter is never notified.
func (s *NotificationService) CommentCreated(ctx context.Context, communityID, postID, commentID string) error {
	logger := s.logger.WithFields(logrus.Fields{"communityID": communityID, "postID": postID, "commentID": commentID})

	var comment models.Comment
	if ok, err := s.load(ctx, models.CommentPath(communityID, postID, commentID), &comment); !ok {
		logger.WithError(err).Info("comment is missing, no notification")
		return nil
	}
	var post models.Post
	if ok, err := s.load(ctx, models.PostPath(communityID, postID), &post); !ok {
		logger.WithError(err).Info("post is missing, no notification")
		return nil
	}
	post.ID = postID

	base, err := s.base(ctx, communityID, &post, comment.AuthorID, comment.Author)
	if err != nil {
		logger.WithError(err).Warn("cannot build notification")
		return err
	}

	notified := map[string]bool{comment.AuthorID: true}
	var result *multierror.Error

	if comment.IsReply() {
		var parent models.Comment
		parentPath := models.CommentPath(communityID, postID, comment.ParentCommentID)
		if ok, err := s.load(ctx, parentPath, &parent); ok {
			if err := s.deliver(ctx, parent.AuthorID, models.NotificationTypeReplyComment, base, notified); err != nil {
				result = multierror.Append(result, err)
			}
		} else {
			logger.WithError(err).Info("parent comment is missing")
		}
	} else {
		if err := s.deliver(ctx, post.AuthorID, models.NotificationTypeCommentPost, base, notified); err != nil {
			result = multierror.Append(result, err)
		}
	}

	followers, err := s.store.List(ctx, models.FollowerCollection(communityID, postID))
	if err != nil {
		logger.WithError(err).Warn("list followers failed")
		result = multierror.Append(result, err)
	}
	for _, doc := range followers {
		if err := s.deliver(ctx, doc.ID(), models.NotificationTypeCommentFollowedPost, base, notified); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// PostCreated notifies community members of an announcement (type 4),
// subscribers of a regular post (type 2), and admins of a join request post.
func (s *NotificationService) PostCreated(ctx context.Context, communityID, postID string) error {
	logger := s.logger.WithFields(logrus.Fields{"communityID": communityID, "postID": postID})

	var post models.Post
	if ok, err := s.load(ctx, models.PostPath(communityID, postID), &post); !ok {
		logger.WithError(err).Info("post is missing, no notification")
		return nil
	}
	post.ID = postID

	base, err := s.base(ctx, communityID, &post, post.AuthorID, post.Author)
	if err != nil {
		logger.WithError(err).Warn("cannot build notification")
		return err
	}

	var (
		recipients []string
		kind       = models.NotificationTypeNewPost
	)
	switch {
	case post.Type == models.PostTypeMemberApproval:
		recipients, err = s.admins(ctx, communityID)
	case post.IsAnnouncement:
		kind = models.NotificationTypeAnnouncement
		recipients, err = s.ids(ctx, docstore.Join(models.CommunityPath(communityID), models.CollectionMember))
	default:
		recipients, err = s.ids(ctx, docstore.Join(models.CommunityPath(communityID), models.CollectionSubscription))
	}
	if err != nil {
		logger.WithError(err).Warn("list recipients failed")
		return err
	}

	notified := map[string]bool{post.AuthorID: true}
	var result *multierror.Error
	for _, userID := range recipients {
		if err := s.deliver(ctx, userID, kind, base, notified); err != nil {
			result = multierror.Append(result, err)
		}
	}
	logger.WithField("recipients", len(notified)-1).Debug("post notifications created")
	return result.ErrorOrNil()
}

// base 构造通知公共部分：社区名、帖子、触发者
func (s *NotificationService) base(ctx context.Context, communityID string, post *models.Post, actorID string, actor models.AuthorSnapshot) (models.Notification, error) {
	name, err := s.communityName(ctx, communityID)
	if err != nil {
		return models.Notification{}, err
	}
	if actor.Name == "" && actorID != "" {
		var user models.User
		if ok, _ := s.load(ctx, models.UserPath(actorID), &user); ok {
			actor = user.Snapshot()
		}
	}
	return models.Notification{
		Community:   models.NotificationCommunity{CommunityID: communityID, Name: name},
		Post:        models.NotificationPost{PostID: post.ID, Title: post.Title},
		TriggeredBy: models.NotificationActor{UserID: actorID, Name: actor.Name, Avatar: actor.Avatar},
	}, nil
}

func (s *NotificationService) deliver(ctx context.Context, userID string, kind models.NotificationType, base models.Notification, notified map[string]bool) error {
	if userID == "" || notified[userID] {
		return nil
	}
	notified[userID] = true

	n := base
	n.Type = kind
	n.IsRead = false
	n.CreatedAt = s.now().UTC()
	data, err := models.Encode(n)
	if err != nil {
		return err
	}
	if _, err := docstore.Add(ctx, s.store, models.NotificationCollection(userID), data); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{"userID": userID, "type": kind}).Warn("create notification failed")
		return fmt.Errorf("notify %s: %w", userID, err)
	}
	return nil
}

func (s *NotificationService) communityName(ctx context.Context, communityID string) (string, error) {
	if name, ok := s.names.Get(communityID); ok {
		return name, nil
	}
	var community models.Community
	if ok, err := s.load(ctx, models.CommunityPath(communityID), &community); !ok {
		return "", fmt.Errorf("community %s: %w", communityID, err)
	}
	s.names.Set(communityID, community.Name)
	return community.Name, nil
}

func (s *NotificationService) admins(ctx context.Context, communityID string) ([]string, error) {
	docs, err := s.store.List(ctx, docstore.Join(models.CommunityPath(communityID), models.CollectionMember))
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, doc := range docs {
		var m models.Member
		if err := models.Decode(doc, &m); err == nil && m.Role == models.RoleAdmin {
			ids = append(ids, doc.ID())
		}
	}
	return ids, nil
}

func (s *NotificationService) ids(ctx context.Context, collectionPath string) ([]string, error) {
	docs, err := s.store.List(ctx, collectionPath)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID())
	}
	return ids, nil
}

// load 读取并解码文档，文档缺失或为空时返回 false
func (s *NotificationService) load(ctx context.Context, path string, v interface{}) (bool, error) {
	return loadDoc(ctx, s.store, path, v)
}

func loadDoc(ctx context.Context, store docstore.Store, path string, v interface{}) (bool, error) {
	doc, err := store.Get(ctx, path)
	if err != nil {
		return false, err
	}
	if err := models.Decode(doc, v); err != nil {
		return false, err
	}
	return true, nil
}

// isMissing 文档缺失属于输入问题，不需要重试
func isMissing(err error) bool {
	return errors.Is(err, docstore.ErrNotFound)
}
