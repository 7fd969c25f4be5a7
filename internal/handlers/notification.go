package handlers

import (
	"github.com/gin-gonic/gin"

	"uitforum/internal/models"
)

type NotificationHandler struct {
	base
}

// MarkAllNotificationAsRead 将调用者的全部未读通知标记为已读
func (h *NotificationHandler) MarkAllNotificationAsRead(c *gin.Context) {
	var req struct{}
	if err := bindData(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()

	docs, err := h.store.List(ctx, models.NotificationCollection(caller(c)))
	if err != nil {
		h.fail(c, err)
		return
	}

	updated := 0
	for _, doc := range docs {
		if read, _ := doc.Data["isRead"].(bool); read {
			continue
		}
		if err := h.store.Update(ctx, doc.Path, map[string]interface{}{"isRead": true}); err != nil {
			h.fail(c, err)
			return
		}
		updated++
	}
	respond(c, gin.H{"updated": updated})
}
