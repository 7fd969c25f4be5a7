// Package functions 把各个服务绑定到文档路径上的事件触发器
package functions

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"uitforum/internal/models"
	"uitforum/internal/services"
	"uitforum/internal/triggers"
)

// 触发器路径
const (
	CommunityPattern      = "Community/{communityID}"
	PostPattern           = "Community/{communityID}/Post/{postID}"
	CommentPattern        = "Community/{communityID}/Post/{postID}/Comment/{commentID}"
	MemberApprovalPattern = "Community/{communityID}/MemberApproval/{documentID}"
	UserPattern           = "User/{userID}"
	NotificationPattern   = "User/{userID}/Notification/{notificationID}"
)

// Services 触发器依赖的服务集合
type Services struct {
	Cascade       *services.CascadeService
	Counters      *services.CounterService
	Notifications *services.NotificationService
	Push          *services.PushService
	Profile       *services.ProfileService
	Timestamps    *services.TimestampService
	Communities   *services.CommunityService
}

// Register 注册全部触发器
func Register(r *triggers.Registry, svc Services, logger logrus.FieldLogger) {
	f := &functions{svc: svc, logger: logger}

	// 通知
	r.OnCreate("sendPushNotification", NotificationPattern, f.sendPushNotification)
	r.OnCreate("createNewCommentNotification", CommentPattern, f.createNewCommentNotification)
	r.OnCreate("createNewPostNotification", PostPattern, f.createNewPostNotification)

	// 计数
	r.OnCreate("updateTotalPostCreated", PostPattern, f.updateTotalPostCreated)
	r.OnDelete("updateTotalPostDeleted", PostPattern, f.updateTotalPostDeleted)
	r.OnCreate("updateTotalCommentsAndReplies", CommentPattern, f.updateTotalCommentsAndReplies)
	r.OnDelete("updateTotalRepliesWhenCommentDeleted", CommentPattern, f.updateTotalRepliesWhenCommentDeleted)

	// 级联删除
	r.OnDelete("deleteAllPostSubcollection", PostPattern, f.deleteAllPostSubcollection)
	r.OnDelete("deleteChildCommentAndVoteSubcollection", CommentPattern, f.deleteChildCommentAndVoteSubcollection)

	// 编辑时间
	r.OnUpdate("addLastModifiedToEditedPost", PostPattern, f.addLastModifiedToEditedPost)
	r.OnUpdate("addLastModifiedToEditedComment", CommentPattern, f.addLastModifiedToEditedComment)

	// 社区初始化
	r.OnCreate("addSampleCategory", CommunityPattern, f.addSampleCategory)
	r.OnCreate("createSubscriptionSubcollection", CommunityPattern, f.createSubscriptionSubcollection)
	r.OnCreate("addUserDefaultDepartment", UserPattern, f.addUserDefaultDepartment)
	r.OnCreate("createNewPostForDefaultCommunity", UserPattern, f.createNewPostForDefaultCommunity)
	r.OnCreate("createNewPostWhenUserRequestToJoinCommunity", MemberApprovalPattern, f.createNewPostWhenUserRequestToJoinCommunity)

	// 资料同步
	r.OnUpdate("updatePostAndCommentWhenCreatorUpdateProfile", UserPattern, f.updatePostAndCommentWhenCreatorUpdateProfile)
	r.OnUpdate("updateMemberApprovalWhenUserUpdateProfile", UserPattern, f.updateMemberApprovalWhenUserUpdateProfile)
}

type functions struct {
	svc    Services
	logger logrus.FieldLogger
}

func (f *functions) log(name string, ev triggers.Event) logrus.FieldLogger {
	return f.logger.WithFields(logrus.Fields{"function": name, "path": ev.Path})
}

// decode 解码事件文档；文档为空或格式错误时记录日志并返回 false，不重试
func (f *functions) decode(name string, ev triggers.Event, v interface{}) bool {
	if err := models.Decode(ev.Snapshot(), v); err != nil {
		f.log(name, ev).WithError(err).Info("no usable data in event document")
		return false
	}
	return true
}

func (f *functions) sendPushNotification(ctx context.Context, ev triggers.Event) error {
	return f.svc.Push.NotificationCreated(ctx, ev.Param("userID"), ev.After)
}

func (f *functions) createNewCommentNotification(ctx context.Context, ev triggers.Event) error {
	return f.svc.Notifications.CommentCreated(ctx, ev.Param("communityID"), ev.Param("postID"), ev.Param("commentID"))
}

func (f *functions) createNewPostNotification(ctx context.Context, ev triggers.Event) error {
	return f.svc.Notifications.PostCreated(ctx, ev.Param("communityID"), ev.Param("postID"))
}

func (f *functions) updateTotalPostCreated(ctx context.Context, ev triggers.Event) error {
	return f.svc.Counters.PostCreated(ctx, ev.Param("communityID"))
}

func (f *functions) updateTotalPostDeleted(ctx context.Context, ev triggers.Event) error {
	return f.svc.Counters.PostDeleted(ctx, ev.Param("communityID"))
}

func (f *functions) updateTotalCommentsAndReplies(ctx context.Context, ev triggers.Event) error {
	var comment models.Comment
	if !f.decode("updateTotalCommentsAndReplies", ev, &comment) {
		return nil
	}
	return f.svc.Counters.CommentCreated(ctx, ev.Param("communityID"), ev.Param("postID"), &comment)
}

func (f *functions) updateTotalRepliesWhenCommentDeleted(ctx context.Context, ev triggers.Event) error {
	var comment models.Comment
	if !f.decode("updateTotalRepliesWhenCommentDeleted", ev, &comment) {
		return nil
	}
	return f.svc.Counters.CommentDeleted(ctx, ev.Param("communityID"), ev.Param("postID"), &comment)
}

func (f *functions) deleteAllPostSubcollection(ctx context.Context, ev triggers.Event) error {
	return f.svc.Cascade.DeletePostSubcollections(ctx, ev.Param("communityID"), ev.Param("postID"))
}

func (f *functions) deleteChildCommentAndVoteSubcollection(ctx context.Context, ev triggers.Event) error {
	return f.svc.Cascade.DeleteChildCommentAndVoteSubcollection(ctx, ev.Param("communityID"), ev.Param("postID"), ev.Param("commentID"))
}

func (f *functions) addLastModifiedToEditedPost(ctx context.Context, ev triggers.Event) error {
	var before, after models.Post
	if models.Decode(ev.Before, &before) != nil || !f.decode("addLastModifiedToEditedPost", ev, &after) {
		return nil
	}
	return f.svc.Timestamps.PostEdited(ctx, ev.Path, &before, &after)
}

func (f *functions) addLastModifiedToEditedComment(ctx context.Context, ev triggers.Event) error {
	var before, after models.Comment
	if models.Decode(ev.Before, &before) != nil || !f.decode("addLastModifiedToEditedComment", ev, &after) {
		return nil
	}
	return f.svc.Timestamps.CommentEdited(ctx, ev.Path, &before, &after)
}

func (f *functions) addSampleCategory(ctx context.Context, ev triggers.Event) error {
	return f.svc.Communities.AddSampleCategory(ctx, ev.Param("communityID"))
}

func (f *functions) createSubscriptionSubcollection(ctx context.Context, ev triggers.Event) error {
	var community models.Community
	if !f.decode("createSubscriptionSubcollection", ev, &community) {
		return nil
	}
	return f.svc.Communities.CreateSubscriptionSubcollection(ctx, ev.Param("communityID"), &community)
}

func (f *functions) addUserDefaultDepartment(ctx context.Context, ev triggers.Event) error {
	var user models.User
	if !f.decode("addUserDefaultDepartment", ev, &user) {
		return nil
	}
	return f.svc.Communities.AddUserDefaultDepartment(ctx, ev.Param("userID"), &user)
}

func (f *functions) createNewPostForDefaultCommunity(ctx context.Context, ev triggers.Event) error {
	var user models.User
	if !f.decode("createNewPostForDefaultCommunity", ev, &user) {
		return nil
	}
	return f.svc.Communities.CreateWelcomePost(ctx, ev.Param("userID"), &user)
}

func (f *functions) createNewPostWhenUserRequestToJoinCommunity(ctx context.Context, ev triggers.Event) error {
	var approval models.MemberApproval
	if !f.decode("createNewPostWhenUserRequestToJoinCommunity", ev, &approval) {
		return nil
	}
	return f.svc.Communities.CreateJoinRequestPost(ctx, ev.Param("communityID"), ev.Param("documentID"), &approval)
}

func (f *functions) updatePostAndCommentWhenCreatorUpdateProfile(ctx context.Context, ev triggers.Event) error {
	before, after, ok := f.users("updatePostAndCommentWhenCreatorUpdateProfile", ev)
	if !ok {
		return nil
	}
	return f.svc.Profile.UpdatePostsAndComments(ctx, ev.Param("userID"), before, after)
}

func (f *functions) updateMemberApprovalWhenUserUpdateProfile(ctx context.Context, ev triggers.Event) error {
	before, after, ok := f.users("updateMemberApprovalWhenUserUpdateProfile", ev)
	if !ok {
		return nil
	}
	return f.svc.Profile.UpdateMemberApprovals(ctx, ev.Param("userID"), before, after)
}

func (f *functions) users(name string, ev triggers.Event) (*models.User, *models.User, bool) {
	var before, after models.User
	var result *multierror.Error
	if err := models.Decode(ev.Before, &before); err != nil {
		result = multierror.Append(result, err)
	}
	if err := models.Decode(ev.After, &after); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		f.log(name, ev).WithError(err).Info("no usable user data in event")
		return nil, nil, false
	}
	return &before, &after, true
}
