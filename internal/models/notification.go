package models

import (
	"time"

	"uitforum/internal/docstore"
)

const CollectionNotification = "Notification"

type NotificationType int

const (
	NotificationTypeCommentPost         NotificationType = 1 // 有人评论了你的帖子
	NotificationTypeNewPost             NotificationType = 2 // 关注的社区有新帖
	NotificationTypeReplyComment        NotificationType = 3 // 有人回复了你的评论
	NotificationTypeAnnouncement        NotificationType = 4 // 社区公告
	NotificationTypeCommentFollowedPost NotificationType = 5 // 关注的帖子有新评论
)

type NotificationCommunity struct {
	CommunityID string `json:"communityID"`
	Name        string `json:"name"`
}

type NotificationPost struct {
	PostID string `json:"postID"`
	Title  string `json:"title"`
}

type NotificationActor struct {
	UserID string `json:"userID"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type Notification struct {
	ID          string                `json:"-"`
	Type        NotificationType      `json:"type"`
	Community   NotificationCommunity `json:"community"`
	Post        NotificationPost      `json:"post"`
	TriggeredBy NotificationActor     `json:"triggeredBy"`
	IsRead      bool                  `json:"isRead"`
	CreatedAt   time.Time             `json:"createdAt"`
}

func NotificationCollection(userID string) string {
	return docstore.Join(UserPath(userID), CollectionNotification)
}
