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

const (
	announcementCategoryID   = "announcement"
	announcementCategoryName = "Thông báo"
	excerptLength            = 150
)

// CommunityService 社区相关的初始化逻辑：示例分类、订阅、默认社区、入群申请帖
type CommunityService struct {
	store              docstore.Store
	counters           *CounterService
	logger             logrus.FieldLogger
	defaultCommunityID string
	now                func() time.Time
}

func NewCommunityService(store docstore.Store, counters *CounterService, logger logrus.FieldLogger, defaultCommunityID string) *CommunityService {
	return &CommunityService{
		store:              store,
		counters:           counters,
		logger:             logger,
		defaultCommunityID: defaultCommunityID,
		now:                time.Now,
	}
}

// AddMember adds userID to the community and subscribes them to new posts.
// It reports false when the user already was a member.
func (s *CommunityService) AddMember(ctx context.Context, communityID, userID, role string) (bool, error) {
	now := s.now().UTC()
	member, err := models.Encode(models.Member{UserID: userID, Role: role, JoinedAt: now})
	if err != nil {
		return false, err
	}
	err = s.store.Create(ctx, models.MemberPath(communityID, userID), member)
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("add member %s to %s: %w", userID, communityID, err)
	}

	var result *multierror.Error
	if err := s.counters.MemberAdded(ctx, communityID); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.subscribe(ctx, communityID, userID); err != nil {
		result = multierror.Append(result, err)
	}
	return true, result.ErrorOrNil()
}

// AddSampleCategory 每个新社区都带一个公告分类
func (s *CommunityService) AddSampleCategory(ctx context.Context, communityID string) error {
	data, err := models.Encode(models.Category{Name: announcementCategoryName, IsAnnouncement: true})
	if err != nil {
		return err
	}
	path := docstore.Join(models.CategoryCollection(communityID), announcementCategoryID)
	if err := s.store.Set(ctx, path, data); err != nil {
		s.logger.WithError(err).WithField("communityID", communityID).Warn("add sample category failed")
		return err
	}
	return nil
}

// CreateSubscriptionSubcollection 创建者默认订阅自己的社区
func (s *CommunityService) CreateSubscriptionSubcollection(ctx context.Context, communityID string, community *models.Community) error {
	if community.CreatorID == "" {
		return nil
	}
	return s.subscribe(ctx, communityID, community.CreatorID)
}

// AddUserDefaultDepartment 新用户自动加入所属院系的社区
func (s *CommunityService) AddUserDefaultDepartment(ctx context.Context, userID string, user *models.User) error {
	if user.Department == "" {
		return nil
	}
	logger := s.logger.WithFields(logrus.Fields{"userID": userID, "department": user.Department})

	docs, err := s.store.Query(ctx, models.CollectionCommunity, "department", user.Department)
	if err != nil {
		logger.WithError(err).Warn("query department communities failed")
		return err
	}
	if len(docs) == 0 {
		logger.Info("no community for department")
		return nil
	}

	var result *multierror.Error
	for _, doc := range docs {
		if _, err := s.AddMember(ctx, doc.ID(), userID, models.RoleMember); err != nil {
			logger.WithError(err).WithField("communityID", doc.ID()).Warn("join department community failed")
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// CreateWelcomePost adds a new user to the default community and publishes a
// welcome post there. The post ID is derived from the user ID so redelivery
// does not publish twice.
func (s *CommunityService) CreateWelcomePost(ctx context.Context, userID string, user *models.User) error {
	if s.defaultCommunityID == "" {
		return nil
	}
	logger := s.logger.WithFields(logrus.Fields{"userID": userID, "communityID": s.defaultCommunityID})

	if _, err := s.store.Get(ctx, models.CommunityPath(s.defaultCommunityID)); err != nil {
		logger.WithError(err).Warn("default community unavailable")
		if isMissing(err) {
			return nil
		}
		return err
	}
	if _, err := s.AddMember(ctx, s.defaultCommunityID, userID, models.RoleMember); err != nil {
		logger.WithError(err).Warn("join default community failed")
	}

	post := models.Post{
		CommunityID: s.defaultCommunityID,
		AuthorID:    userID,
		Author:      user.Snapshot(),
		Title:       "Chào mừng " + user.Name,
		Content:     user.Name + " vừa tham gia cộng đồng. Hãy cùng chào đón nhé!",
		Type:        models.PostTypeNormal,
		CreatedAt:   s.now().UTC(),
	}
	return s.createPost(ctx, s.defaultCommunityID, "welcome-"+userID, &post, logger)
}

// CreateJoinRequestPost 用户申请加入社区时，在社区内发一条帖子提醒管理员审核
func (s *CommunityService) CreateJoinRequestPost(ctx context.Context, communityID, approvalID string, approval *models.MemberApproval) error {
	logger := s.logger.WithFields(logrus.Fields{"communityID": communityID, "approvalID": approvalID})
	if approval.Status != "" && approval.Status != models.ApprovalPending {
		return nil
	}

	post := models.Post{
		CommunityID: communityID,
		AuthorID:    approval.UserID,
		Author:      approval.User,
		Title:       approval.User.Name + " muốn tham gia cộng đồng",
		Content:     approval.User.Name + " đã gửi yêu cầu tham gia cộng đồng.",
		Type:        models.PostTypeMemberApproval,
		ApprovalID:  approvalID,
		CreatedAt:   s.now().UTC(),
	}
	return s.createPost(ctx, communityID, "approval-"+approvalID, &post, logger)
}

func (s *CommunityService) createPost(ctx context.Context, communityID, postID string, post *models.Post, logger logrus.FieldLogger) error {
	RenderPost(post)
	data, err := models.Encode(post)
	if err != nil {
		return err
	}
	err = s.store.Create(ctx, models.PostPath(communityID, postID), data)
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return nil
	}
	if err != nil {
		logger.WithError(err).Warn("create post failed")
		return err
	}
	logger.WithField("postID", postID).Info("post created")
	return nil
}

func (s *CommunityService) subscribe(ctx context.Context, communityID, userID string) error {
	data, err := models.Encode(models.Subscription{UserID: userID, CreatedAt: s.now().UTC()})
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, models.SubscriptionPath(communityID, userID), data); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{"communityID": communityID, "userID": userID}).Warn("subscribe failed")
		return err
	}
	return nil
}

// RenderPost 根据 Content 生成 ContentHTML 与 Excerpt
func RenderPost(post *models.Post) {
	post.ContentHTML = utils.RenderMarkdown(post.Content)
	post.Excerpt = utils.PlainExcerpt(post.ContentHTML, excerptLength)
}
