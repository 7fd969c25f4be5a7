package models

import (
	"time"

	"uitforum/internal/docstore"
)

const CollectionComment = "Comment"

// Comment 回复与顶层评论存放在同一集合，ParentCommentID 为空表示顶层评论
type Comment struct {
	ID              string         `json:"-"`
	CommunityID     string         `json:"communityID"`
	PostID          string         `json:"postID"`
	AuthorID        string         `json:"authorID"`
	Author          AuthorSnapshot `json:"author"`
	Content         string         `json:"content"`
	ParentCommentID string         `json:"parentCommentID,omitempty"`
	TotalReplies    int64          `json:"totalReplies"`
	CreatedAt       time.Time      `json:"createdAt"`
	LastModified    *time.Time     `json:"lastModified,omitempty"`
}

// IsReply 是否为回复评论
func (c *Comment) IsReply() bool {
	return c.ParentCommentID != ""
}

func CommentCollection(communityID, postID string) string {
	return docstore.Join(PostPath(communityID, postID), CollectionComment)
}

func CommentPath(communityID, postID, commentID string) string {
	return docstore.Join(CommentCollection(communityID, postID), commentID)
}
