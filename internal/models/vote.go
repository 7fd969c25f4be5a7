package models

import (
	"time"

	"uitforum/internal/docstore"
)

const CollectionVote = "Vote"

// Vote 文档 ID 即投票用户 ID，保证每人每个对象只有一票
type Vote struct {
	UserID    string    `json:"userID"`
	Value     int       `json:"value"` // 1 or -1
	CreatedAt time.Time `json:"createdAt"`
}

// VotePath 对帖子投票时 commentID 为空
func VotePath(communityID, postID, commentID, userID string) string {
	if commentID == "" {
		return docstore.Join(PostPath(communityID, postID), CollectionVote, userID)
	}
	return docstore.Join(CommentPath(communityID, postID, commentID), CollectionVote, userID)
}
