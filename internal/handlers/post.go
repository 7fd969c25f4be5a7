package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"uitforum/internal/docstore"
	"uitforum/internal/models"
	"uitforum/internal/services"
	"uitforum/internal/utils"
)

type PostHandler struct {
	base
}

type createPostRequest struct {
	CommunityID    string `json:"communityID" binding:"required,excludes=/"`
	Title          string `json:"title" binding:"required,max=300"`
	Content        string `json:"content" binding:"max=40000"`
	CategoryID     string `json:"categoryID" binding:"excludes=/"`
	IsAnnouncement bool   `json:"isAnnouncement"`
}

// CreatePost 成员发帖；公告只允许管理员发布。作者自动关注自己的帖子
func (h *PostHandler) CreatePost(c *gin.Context) {
	var req createPostRequest
	if err := bindData(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	userID := caller(c)

	role, err := h.requireMember(ctx, req.CommunityID, userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	isAnnouncement := req.IsAnnouncement
	if req.CategoryID != "" {
		var category models.Category
		path := docstore.Join(models.CategoryCollection(req.CommunityID), req.CategoryID)
		if err := h.load(ctx, path, "category", &category); err != nil {
			h.fail(c, err)
			return
		}
		isAnnouncement = isAnnouncement || category.IsAnnouncement
	}
	if isAnnouncement && role != models.RoleAdmin {
		h.fail(c, permissionDenied("only community admins can post announcements"))
		return
	}

	title := utils.StripTags(req.Title)
	if title == "" {
		h.fail(c, invalidArgument("title is required"))
		return
	}
	snapshot, err := h.author(ctx, userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	post := models.Post{
		CommunityID:    req.CommunityID,
		AuthorID:       userID,
		Author:         snapshot,
		Title:          title,
		Content:        req.Content,
		CategoryID:     req.CategoryID,
		IsAnnouncement: isAnnouncement,
		Type:           models.PostTypeNormal,
		CreatedAt:      nowUTC(),
	}
	services.RenderPost(&post)
	data, err := models.Encode(post)
	if err != nil {
		h.fail(c, err)
		return
	}
	postID, err := docstore.Add(ctx, h.store, models.PostCollection(req.CommunityID), data)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.follow(ctx, req.CommunityID, postID, userID); err != nil {
		h.logger.WithError(err).WithField("postID", postID).Warn("author follow failed")
	}
	respond(c, gin.H{"postID": postID})
}

type updatePostRequest struct {
	CommunityID string  `json:"communityID" binding:"required,excludes=/"`
	PostID      string  `json:"postID" binding:"required,excludes=/"`
	Title       *string `json:"title" binding:"omitempty,max=300"`
	Content     *string `json:"content" binding:"omitempty,max=40000"`
	CategoryID  *string `json:"categoryID" binding:"omitempty,excludes=/"`
}

// UpdatePost 仅作者可编辑；lastModified 由触发器写入
func (h *PostHandler) UpdatePost(c *gin.Context) {
	var req updatePostRequest
	if err := bindData(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	path := models.PostPath(req.CommunityID, req.PostID)

	var post models.Post
	if err := h.load(ctx, path, "post", &post); err != nil {
		h.fail(c, err)
		return
	}
	if post.AuthorID != caller(c) {
		h.fail(c, permissionDenied("only the author can edit this post"))
		return
	}

	fields := map[string]interface{}{}
	if req.Title != nil {
		title := utils.StripTags(*req.Title)
		if title == "" {
			h.fail(c, invalidArgument("title cannot be empty"))
			return
		}
		fields["title"] = title
	}
	if req.Content != nil {
		post.Content = *req.Content
		services.RenderPost(&post)
		fields["content"] = post.Content
		fields["contentHTML"] = post.ContentHTML
		fields["excerpt"] = post.Excerpt
	}
	if req.CategoryID != nil {
		if *req.CategoryID != "" {
			var category models.Category
			catPath := docstore.Join(models.CategoryCollection(req.CommunityID), *req.CategoryID)
			if err := h.load(ctx, catPath, "category", &category); err != nil {
				h.fail(c, err)
				return
			}
		}
		fields["categoryID"] = *req.CategoryID
	}
	if len(fields) == 0 {
		h.fail(c, invalidArgument("nothing to update"))
		return
	}
	if err := h.store.Update(ctx, path, fields); err != nil {
		h.fail(c, err)
		return
	}
	respond(c, gin.H{"postID": req.PostID})
}

type postRequest struct {
	CommunityID string `json:"communityID" binding:"required,excludes=/"`
	PostID      string `json:"postID" binding:"required,excludes=/"`
}

// DeletePost 作者或管理员可删除，子集合由级联触发器清理
func (h *PostHandler) DeletePost(c *gin.Context) {
	var req postRequest
	if err := bindData(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	path := models.PostPath(req.CommunityID, req.PostID)

	var post models.Post
	if err := h.load(ctx, path, "post", &post); err != nil {
		h.fail(c, err)
		return
	}
	if err := h.authorOrAdmin(c, req.CommunityID, post.AuthorID); err != nil {
		h.fail(c, err)
		return
	}
	if err := h.store.Delete(ctx, path); err != nil {
		h.fail(c, err)
		return
	}
	respond(c, gin.H{"postID": req.PostID})
}

type createCommentRequest struct {
	CommunityID     string `json:"communityID" binding:"required,excludes=/"`
	PostID          string `json:"postID" binding:"required,excludes=/"`
	Content         string `json:"content" binding:"required,max=10000"`
	ParentCommentID string `json:"parentCommentID" binding:"excludes=/"`
}

// CreateComment 评论或回复；评论者自动关注该帖子
func (h *PostHandler) CreateComment(c *gin.Context) {
	var req createCommentRequest
	if err := bindData(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	userID := caller(c)

	if _, err := h.requireMember(ctx, req.CommunityID, userID); err != nil {
		h.fail(c, err)
		return
	}
	var post models.Post
	if err := h.load(ctx, models.PostPath(req.CommunityID, req.PostID), "post", &post); err != nil {
		h.fail(c, err)
		return
	}
	if req.ParentCommentID != "" {
		var parent models.Comment
		parentPath := models.CommentPath(req.CommunityID, req.PostID, req.ParentCommentID)
		if err := h.load(ctx, parentPath, "parent comment", &parent); err != nil {
			h.fail(c, err)
			return
		}
	}

	content := utils.StripTags(req.Content)
	if content == "" {
		h.fail(c, invalidArgument("content is required"))
		return
	}
	snapshot, err := h.author(ctx, userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	data, err := models.Encode(models.Comment{
		CommunityID:     req.CommunityID,
		PostID:          req.PostID,
		AuthorID:        userID,
		Author:          snapshot,
		Content:         content,
		ParentCommentID: req.ParentCommentID,
		CreatedAt:       nowUTC(),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	commentID, err := docstore.Add(ctx, h.store, models.CommentCollection(req.CommunityID, req.PostID), data)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.follow(ctx, req.CommunityID, req.PostID, userID); err != nil {
		h.logger.WithError(err).WithField("postID", req.PostID).Warn("commenter follow failed")
	}
	respond(c, gin.H{"commentID": commentID})
}

type updateCommentRequest struct {
	CommunityID string `json:"communityID" binding:"required,excludes=/"`
	PostID      string `json:"postID" binding:"required,excludes=/"`
	CommentID   string `json:"commentID" binding:"required,excludes=/"`
	Content     string `json:"content" binding:"required,max=10000"`
}

// UpdateComment 仅作者可编辑
func (h *PostHandler) UpdateComment(c *gin.Context) {
	var req updateCommentRequest
	if err := bindData(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	path := models.CommentPath(req.CommunityID, req.PostID, req.CommentID)

	var comment models.Comment
	if err := h.load(ctx, path, "comment", &comment); err != nil {
		h.fail(c, err)
		return
	}
	if comment.AuthorID != caller(c) {
		h.fail(c, permissionDenied("only the author can edit this comment"))
		return
	}
	content := utils.StripTags(req.Content)
	if content == "" {
		h.fail(c, invalidArgument("content cannot be empty"))
		return
	}
	if err := h.store.Update(ctx, path, map[string]interface{}{"content": content}); err != nil {
		h.fail(c, err)
		return
	}
	respond(c, gin.H{"commentID": req.CommentID})
}

type commentRequest struct {
	CommunityID string `json:"communityID" binding:"required,excludes=/"`
	PostID      string `json:"postID" binding:"required,excludes=/"`
	CommentID   string `json:"commentID" binding:"required,excludes=/"`
}

// DeleteComment 作者或管理员可删除，回复与投票由级联触发器清理
func (h *PostHandler) DeleteComment(c *gin.Context) {
	var req commentRequest
	if err := bindData(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	path := models.CommentPath(req.CommunityID, req.PostID, req.CommentID)

	var comment models.Comment
	if err := h.load(ctx, path, "comment", &comment); err != nil {
		h.fail(c, err)
		return
	}
	if err := h.authorOrAdmin(c, req.CommunityID, comment.AuthorID); err != nil {
		h.fail(c, err)
		return
	}
	if err := h.store.Delete(ctx, path); err != nil {
		h.fail(c, err)
		return
	}
	respond(c, gin.H{"commentID": req.CommentID})
}

func (h *PostHandler) authorOrAdmin(c *gin.Context, communityID, authorID string) error {
	userID := caller(c)
	if userID == authorID {
		return nil
	}
	err := h.requireAdmin(c.Request.Context(), communityID, userID)
	var callErr *CallableError
	if errors.As(err, &callErr) {
		return permissionDenied("only the author or a community admin can delete this")
	}
	return err
}
