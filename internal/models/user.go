package models

import (
	"time"

	"uitforum/internal/docstore"
)

const CollectionUser = "User"

type User struct {
	ID         string    `json:"-"`
	Name       string    `json:"name"`
	Avatar     string    `json:"avatar"`
	Department string    `json:"department"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"createdAt"`
}

// AuthorSnapshot 冗余保存在帖子、评论、入群申请中的作者信息
type AuthorSnapshot struct {
	Name       string `json:"name"`
	Avatar     string `json:"avatar"`
	Department string `json:"department"`
}

// Snapshot 生成当前资料的冗余快照
func (u *User) Snapshot() AuthorSnapshot {
	return AuthorSnapshot{Name: u.Name, Avatar: u.Avatar, Department: u.Department}
}

func UserPath(userID string) string {
	return docstore.Join(CollectionUser, userID)
}
