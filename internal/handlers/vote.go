package handlers

import (
	"github.com/gin-gonic/gin"

	"uitforum/internal/models"
)

type VoteHandler struct {
	base
}

type voteRequest struct {
	CommunityID string `json:"communityID" binding:"required,excludes=/"`
	PostID      string `json:"postID" binding:"required,excludes=/"`
	CommentID   string `json:"commentID" binding:"excludes=/"` // 为空表示给帖子投票
	Value       int    `json:"value" binding:"oneof=-1 0 1"`   // 0 表示取消投票
}

// Vote 每个用户对同一帖子或评论只有一票，文档 ID 即用户 ID
func (h *VoteHandler) Vote(c *gin.Context) {
	var req voteRequest
	if err := bindData(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	userID := caller(c)

	target := models.PostPath(req.CommunityID, req.PostID)
	what := "post"
	if req.CommentID != "" {
		target = models.CommentPath(req.CommunityID, req.PostID, req.CommentID)
		what = "comment"
	}
	var existing map[string]interface{}
	if err := h.load(ctx, target, what, &existing); err != nil {
		h.fail(c, err)
		return
	}

	path := models.VotePath(req.CommunityID, req.PostID, req.CommentID, userID)
	if req.Value == 0 {
		if err := h.store.Delete(ctx, path); err != nil {
			h.fail(c, err)
			return
		}
		respond(c, gin.H{"value": 0})
		return
	}

	data, err := models.Encode(models.Vote{UserID: userID, Value: req.Value, CreatedAt: nowUTC()})
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.store.Set(ctx, path, data); err != nil {
		h.fail(c, err)
		return
	}
	respond(c, gin.H{"value": req.Value})
}
