package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"uitforum/internal/docstore"
	"uitforum/internal/models"
	"uitforum/internal/utils"
)

type UserHandler struct {
	base
}

type updateProfileRequest struct {
	Name       *string `json:"name" binding:"omitempty,max=50"`
	Avatar     *string `json:"avatar" binding:"omitempty,max=500"`
	Department *string `json:"department" binding:"omitempty,max=100"`
	Email      *string `json:"email" binding:"omitempty,email"`
}

// UpdateProfile 首次调用创建用户资料，之后只更新传入的字段
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := bindData(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	userID := caller(c)
	path := models.UserPath(userID)

	fields := map[string]interface{}{}
	if req.Name != nil {
		name := utils.StripTags(*req.Name)
		if name == "" {
			h.fail(c, invalidArgument("name cannot be empty"))
			return
		}
		fields["name"] = name
	}
	if req.Avatar != nil {
		avatar := strings.TrimSpace(*req.Avatar)
		if avatar == "" {
			avatar = utils.DefaultAvatar()
		}
		fields["avatar"] = avatar
	}
	if req.Department != nil {
		fields["department"] = strings.TrimSpace(*req.Department)
	}
	if req.Email != nil {
		fields["email"] = strings.TrimSpace(*req.Email)
	}

	_, err := h.store.Get(ctx, path)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		user := models.User{Avatar: utils.DefaultAvatar(), CreatedAt: nowUTC()}
		data, err := models.Encode(user)
		if err != nil {
			h.fail(c, err)
			return
		}
		for k, v := range fields {
			data[k] = v
		}
		if name, _ := data["name"].(string); name == "" {
			h.fail(c, invalidArgument("name is required for a new profile"))
			return
		}
		if err := h.store.Create(ctx, path, data); err != nil {
			h.fail(c, err)
			return
		}
		respond(c, gin.H{"userID": userID, "created": true})
		return
	case err != nil:
		h.fail(c, err)
		return
	}

	if len(fields) == 0 {
		h.fail(c, invalidArgument("nothing to update"))
		return
	}
	if err := h.store.Update(ctx, path, fields); err != nil {
		h.fail(c, err)
		return
	}
	respond(c, gin.H{"userID": userID, "created": false})
}
