package models

import (
	"time"

	"uitforum/internal/docstore"
)

const (
	CollectionPost     = "Post"
	CollectionFollower = "Follower"
)

const (
	PostTypeNormal         = "normal"
	PostTypeMemberApproval = "memberApproval"
)

type Post struct {
	ID             string         `json:"-"`
	CommunityID    string         `json:"communityID"`
	AuthorID       string         `json:"authorID"`
	Author         AuthorSnapshot `json:"author"`
	Title          string         `json:"title"`
	Content        string         `json:"content"`
	ContentHTML    string         `json:"contentHTML"`
	Excerpt        string         `json:"excerpt"`
	CategoryID     string         `json:"categoryID,omitempty"`
	IsAnnouncement bool           `json:"isAnnouncement"`
	Type           string         `json:"type"`
	ApprovalID     string         `json:"approvalID,omitempty"`
	TotalComments  int64          `json:"totalComments"`
	CreatedAt      time.Time      `json:"createdAt"`
	LastModified   *time.Time     `json:"lastModified,omitempty"`
}

// Follower 关注帖子的用户 Post/{p}/Follower/{userID}
type Follower struct {
	UserID    string    `json:"userID"`
	CreatedAt time.Time `json:"createdAt"`
}

func PostCollection(communityID string) string {
	return docstore.Join(CommunityPath(communityID), CollectionPost)
}

func PostPath(communityID, postID string) string {
	return docstore.Join(PostCollection(communityID), postID)
}

func FollowerCollection(communityID, postID string) string {
	return docstore.Join(PostPath(communityID, postID), CollectionFollower)
}
