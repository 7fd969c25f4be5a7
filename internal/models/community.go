package models

import (
	"time"

	"uitforum/internal/docstore"
)

const (
	CollectionCommunity      = "Community"
	CollectionMember         = "Member"
	CollectionSubscription   = "Subscription"
	CollectionCategory       = "Category"
	CollectionMemberApproval = "MemberApproval"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

type Community struct {
	ID              string    `json:"-"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Avatar          string    `json:"avatar"`
	Department      string    `json:"department,omitempty"` // 非空表示院系社区，新用户按院系自动加入
	RequireApproval bool      `json:"requireApproval"`
	CreatorID       string    `json:"creatorID"`
	TotalPost       int64     `json:"totalPost"`
	TotalNewPost    int64     `json:"totalNewPost"`
	TotalMembers    int64     `json:"totalMembers"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Member 社区成员 Community/{c}/Member/{userID}
type Member struct {
	UserID   string    `json:"userID"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Subscription 订阅了社区新帖通知的用户 Community/{c}/Subscription/{userID}
type Subscription struct {
	UserID    string    `json:"userID"`
	CreatedAt time.Time `json:"createdAt"`
}

type Category struct {
	Name           string `json:"name"`
	IsAnnouncement bool   `json:"isAnnouncement"`
}

// MemberApproval 入群申请
type MemberApproval struct {
	ID        string         `json:"-"`
	UserID    string         `json:"userID"`
	User      AuthorSnapshot `json:"user"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
}

func CommunityPath(communityID string) string {
	return docstore.Join(CollectionCommunity, communityID)
}

func MemberPath(communityID, userID string) string {
	return docstore.Join(CommunityPath(communityID), CollectionMember, userID)
}

func SubscriptionPath(communityID, userID string) string {
	return docstore.Join(CommunityPath(communityID), CollectionSubscription, userID)
}

func CategoryCollection(communityID string) string {
	return docstore.Join(CommunityPath(communityID), CollectionCategory)
}

func MemberApprovalCollection(communityID string) string {
	return docstore.Join(CommunityPath(communityID), CollectionMemberApproval)
}
