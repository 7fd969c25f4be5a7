package services

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"uitforum/internal/docstore"
	"uitforum/internal/models"
)

// PushMessage 推送消息：只带 data 字段，由客户端自行展示
type PushMessage struct {
	Topic string
	Data  map[string]string
}

// Pusher sends one message and returns the transport's message ID.
type Pusher interface {
	Send(ctx context.Context, msg *PushMessage) (string, error)
}

// UserTopic 每个用户订阅自己的推送主题
func UserTopic(userID string) string {
	return "user_" + userID
}

// NotificationText 按通知类型选择标题和正文
func NotificationText(n *models.Notification) (title, body string) {
	community := n.Community.Name
	actor := n.TriggeredBy.Name
	switch n.Type {
	case models.NotificationTypeCommentPost:
		return "Bình luận mới - " + community, actor + " đã bình luận vào bài viết của bạn."
	case models.NotificationTypeNewPost:
		return "Bài viết mới - " + community, actor + " đã tạo bài viết mới trong cộng đồng bạn quan tâm."
	case models.NotificationTypeReplyComment:
		return "Bình luận mới - " + community, actor + " đã trả lời bình luận của bạn."
	case models.NotificationTypeAnnouncement:
		return "Thông báo mới - " + community, actor + " đã tạo một thông báo mới."
	case models.NotificationTypeCommentFollowedPost:
		return "Bình luận mới - " + community, actor + " đã bình luận vào bài viết bạn theo dõi."
	default:
		return "Thông báo mới", "Hãy kiểm tra thông báo mới của bạn."
	}
}

// BuildPushMessage 构造发往 user_{userID} 的推送
func BuildPushMessage(userID string, n *models.Notification) *PushMessage {
	title, body := NotificationText(n)
	return &PushMessage{
		Topic: UserTopic(userID),
		Data: map[string]string{
			"title":       title,
			"body":        body,
			"communityID": n.Community.CommunityID,
			"postID":      n.Post.PostID,
		},
	}
}

// PushService 通知文档创建后发送推送，失败只记录日志（至多一次）
type PushService struct {
	pusher Pusher
	logger logrus.FieldLogger
}

func NewPushService(pusher Pusher, logger logrus.FieldLogger) *PushService {
	return &PushService{pusher: pusher, logger: logger}
}

// NotificationCreated never returns an error: a failed push is dropped.
func (s *PushService) NotificationCreated(ctx context.Context, userID string, doc *docstore.Doc) error {
	logger := s.logger.WithField("userID", userID)
	if doc == nil || len(doc.Data) == 0 {
		logger.Info("no data in notification document")
		return nil
	}

	var n models.Notification
	if err := models.Decode(doc, &n); err != nil {
		logger.WithError(err).Warn("malformed notification document")
		return nil
	}

	msg := BuildPushMessage(userID, &n)
	id, err := s.pusher.Send(ctx, msg)
	if err != nil {
		logger.WithError(err).WithField("topic", msg.Topic).Warn("error sending message")
		return nil
	}
	logger.WithFields(logrus.Fields{"topic": msg.Topic, "messageID": id}).Info("successfully sent message")
	return nil
}

// FCMPusher 通过 Firebase Cloud Messaging 发送
type FCMPusher struct {
	client *messaging.Client
}

// NewFCMPusher credentialsFile 为服务账号 JSON 路径
func NewFCMPusher(ctx context.Context, credentialsFile, projectID string) (*FCMPusher, error) {
	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, conf, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init messaging client: %w", err)
	}
	return &FCMPusher{client: client}, nil
}

func (p *FCMPusher) Send(ctx context.Context, msg *PushMessage) (string, error) {
	return p.client.Send(ctx, &messaging.Message{
		Data:  msg.Data,
		Topic: msg.Topic,
	})
}

// LogPusher 未配置推送凭据时使用，只打印日志
type LogPusher struct {
	logger logrus.FieldLogger
}

func NewLogPusher(logger logrus.FieldLogger) *LogPusher {
	return &LogPusher{logger: logger}
}

func (p *LogPusher) Send(ctx context.Context, msg *PushMessage) (string, error) {
	p.logger.WithFields(logrus.Fields{
		"topic": msg.Topic,
		"title": msg.Data["title"],
		"body":  msg.Data["body"],
	}).Info("push (dry run)")
	return "dry-run", nil
}
