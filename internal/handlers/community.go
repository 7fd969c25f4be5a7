package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"uitforum/internal/docstore"
	"uitforum/internal/models"
	"uitforum/internal/services"
	"uitforum/internal/utils"
)

type CommunityHandler struct {
	base
	communities   *services.CommunityService
	notifications *services.NotificationService
}

type communityRequest struct {
	CommunityID string `json:"communityID" binding:"required,excludes=/"`
}

// GetMemberInfo 返回调用者在社区中的身份
func (h *CommunityHandler) GetMemberInfo(c *gin.Context) {
	var req communityRequest
	if err := bindData(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	userID := caller(c)

	var community models.Community
	if err := h.load(ctx, models.CommunityPath(req.CommunityID), "community", &community); err != nil {
		h.fail(c, err)
		return
	}

	result := gin.H{"communityID": req.CommunityID, "isMember": false, "role": "", "isPending": false}
	doc, err := h.store.Get(ctx, models.MemberPath(req.CommunityID, userID))
	switch {
	case err == nil:
		var m models.Member
		if err := models.Decode(doc, &m); err != nil {
			h.fail(c, err)
			return
		}
		result["isMember"] = true
		result["role"] = m.Role
		result["joinedAt"] = m.JoinedAt
	case errors.Is(err, docstore.ErrNotFound):
		pending, err := h.pendingApproval(c, req.CommunityID, userID)
		if err != nil {
			h.fail(c, err)
			return
		}
		result["isPending"] = pending != ""
	default:
		h.fail(c, err)
		return
	}
	respond(c, result)
}

type createCommunityRequest struct {
	Name            string `json:"name" binding:"required,max=100"`
	Description     string `json:"description" binding:"max=2000"`
	Avatar          string `json:"avatar"`
	Department      string `json:"department"`
	RequireApproval bool   `json:"requireApproval"`
}

// CreateCommunity 创建社区，创建者成为管理员
func (h *CommunityHandler) CreateCommunity(c *gin.Context) {
	var req createCommunityRequest
	if err := bindData(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	userID := caller(c)

	name := utils.StripTags(req.Name)
	if name == "" {
		h.fail(c, invalidArgument("name is required"))
		return
	}
	now := nowUTC()
	data, err := models.Encode(models.Community{
		Name:            name,
		Description:     utils.StripTags(req.Description),
		Avatar:          strings.TrimSpace(req.Avatar),
		Department:      strings.TrimSpace(req.Department),
		RequireApproval: req.RequireApproval,
		CreatorID:       userID,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	communityID, err := docstore.Add(ctx, h.store, models.CollectionCommunity, data)
	if err != nil {
		h.fail(c, err)
		return
	}
	if _, err := h.communities.AddMember(ctx, communityID, userID, models.RoleAdmin); err != nil {
		h.fail(c, err)
		return
	}
	h.logger.WithField("communityID", communityID).WithField("userID", userID).Info("community created")
	respond(c, gin.H{"communityID": communityID})
}

type updateCommunityRequest struct {
	CommunityID     string  `json:"communityID" binding:"required,excludes=/"`
	Name            *string `json:"name" binding:"omitempty,max=100"`
	Description     *string `json:"description" binding:"omitempty,max=2000"`
	Avatar          *string `json:"avatar"`
	RequireApproval *bool   `json:"requireApproval"`
}

// UpdateCommunity 仅管理员可修改社区资料
func (h *CommunityHandler) UpdateCommunity(c *gin.Context) {
	var req updateCommunityRequest
	if err := bindData(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()

	var community models.Community
	if err := h.load(ctx, models.CommunityPath(req.CommunityID), "community", &community); err != nil {
		h.fail(c, err)
		return
	}
	if err := h.requireAdmin(ctx, req.CommunityID, caller(c)); err != nil {
		h.fail(c, err)
		return
	}

	fields := map[string]interface{}{}
	if req.Name != nil {
		name := utils.StripTags(*req.Name)
		if name == "" {
			h.fail(c, invalidArgument("name cannot be empty"))
			return
		}
		fields["name"] = name
	}
	if req.Description != nil {
		fields["description"] = utils.StripTags(*req.Description)
	}
	if req.Avatar != nil {
		fields["avatar"] = strings.TrimSpace(*req.Avatar)
	}
	if req.RequireApproval != nil {
		fields["requireApproval"] = *req.RequireApproval
	}
	if len(fields) == 0 {
		h.fail(c, invalidArgument("nothing to update"))
		return
	}
	fields["updatedAt"] = nowUTC()

	if err := h.store.Update(ctx, models.CommunityPath(req.CommunityID), fields); err != nil {
		h.fail(c, err)
		return
	}
	h.notifications.ForgetCommunity(req.CommunityID)
	respond(c, gin.H{"communityID": req.CommunityID})
}

// JoinCommunity 加入社区；需要审核的社区创建入群申请
func (h *CommunityHandler) JoinCommunity(c *gin.Context) {
	var req communityRequest
	if err := bindData(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	userID := caller(c)

	var community models.Community
	if err := h.load(ctx, models.CommunityPath(req.CommunityID), "community", &community); err != nil {
		h.fail(c, err)
		return
	}
	role, err := h.role(ctx, req.CommunityID, userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if role != "" {
		respond(c, gin.H{"status": "member"})
		return
	}

	if !community.RequireApproval {
		if _, err := h.communities.AddMember(ctx, req.CommunityID, userID, models.RoleMember); err != nil {
			h.fail(c, err)
			return
		}
		respond(c, gin.H{"status": "member"})
		return
	}

	approvalID, err := h.pendingApproval(c, req.CommunityID, userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if approvalID == "" {
		snapshot, err := h.author(ctx, userID)
		if err != nil {
			h.fail(c, err)
			return
		}
		data, err := models.Encode(models.MemberApproval{
			UserID:    userID,
			User:      snapshot,
			Status:    models.ApprovalPending,
			CreatedAt: nowUTC(),
		})
		if err != nil {
			h.fail(c, err)
			return
		}
		approvalID, err = docstore.Add(ctx, h.store, models.MemberApprovalCollection(req.CommunityID), data)
		if err != nil {
			h.fail(c, err)
			return
		}
	}
	respond(c, gin.H{"status": models.ApprovalPending, "approvalID": approvalID})
}

type approveRequest struct {
	CommunityID string   `json:"communityID" binding:"required,excludes=/"`
	UserIDs     []string `json:"userIDs"` // 为空表示处理全部待审核申请
	Reject      bool     `json:"reject"`
}

// ApproveAllUserRequestToJoinCommunity 管理员批量通过（或拒绝）入群申请
func (h *CommunityHandler) ApproveAllUserRequestToJoinCommunity(c *gin.Context) {
	var req approveRequest
	if err := bindData(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	if err := h.requireAdmin(ctx, req.CommunityID, caller(c)); err != nil {
		h.fail(c, err)
		return
	}

	only := make(map[string]bool, len(req.UserIDs))
	for _, id := range req.UserIDs {
		only[id] = true
	}

	docs, err := h.store.List(ctx, models.MemberApprovalCollection(req.CommunityID))
	if err != nil {
		h.fail(c, err)
		return
	}

	status := models.ApprovalApproved
	if req.Reject {
		status = models.ApprovalRejected
	}
	processed := 0
	for _, doc := range docs {
		var approval models.MemberApproval
		if err := models.Decode(doc, &approval); err != nil || approval.Status != models.ApprovalPending {
			continue
		}
		if len(only) > 0 && !only[approval.UserID] {
			continue
		}
		if !req.Reject {
			if _, err := h.communities.AddMember(ctx, req.CommunityID, approval.UserID, models.RoleMember); err != nil {
				h.fail(c, err)
				return
			}
		}
		if err := h.store.Update(ctx, doc.Path, map[string]interface{}{"status": status}); err != nil {
			h.fail(c, err)
			return
		}
		processed++
	}
	respond(c, gin.H{"status": status, "count": processed})
}

// pendingApproval 返回用户待审核申请的 ID，没有则返回空字符串
func (h *CommunityHandler) pendingApproval(c *gin.Context, communityID, userID string) (string, error) {
	docs, err := h.store.List(c.Request.Context(), models.MemberApprovalCollection(communityID))
	if err != nil {
		return "", err
	}
	for _, doc := range docs {
		var approval models.MemberApproval
		if err := models.Decode(doc, &approval); err != nil {
			continue
		}
		if approval.UserID == userID && approval.Status == models.ApprovalPending {
			return doc.ID(), nil
		}
	}
	return "", nil
}
