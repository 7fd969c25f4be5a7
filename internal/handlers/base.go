package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/sirupsen/logrus"

	"uitforum/internal/docstore"
	"uitforum/internal/middleware"
	"uitforum/internal/models"
	"uitforum/internal/services"
)

// 错误状态，与客户端 SDK 约定一致
const (
	StatusInvalidArgument  = "INVALID_ARGUMENT"
	StatusUnauthenticated  = "UNAUTHENTICATED"
	StatusPermissionDenied = "PERMISSION_DENIED"
	StatusNotFound         = "NOT_FOUND"
	StatusAlreadyExists    = "ALREADY_EXISTS"
	StatusInternal         = "INTERNAL"
)

var httpStatus = map[string]int{
	StatusInvalidArgument:  http.StatusBadRequest,
	StatusUnauthenticated:  http.StatusUnauthorized,
	StatusPermissionDenied: http.StatusForbidden,
	StatusNotFound:         http.StatusNotFound,
	StatusAlreadyExists:    http.StatusConflict,
	StatusInternal:         http.StatusInternalServerError,
}

// CallableError 返回给调用方的错误
type CallableError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (e *CallableError) Error() string {
	return e.Status + ": " + e.Message
}

func invalidArgument(msg string) error {
	return &CallableError{Status: StatusInvalidArgument, Message: msg}
}

func permissionDenied(msg string) error {
	return &CallableError{Status: StatusPermissionDenied, Message: msg}
}

func notFound(msg string) error {
	return &CallableError{Status: StatusNotFound, Message: msg}
}

// Deps 处理器依赖
type Deps struct {
	Store         docstore.Store
	Communities   *services.CommunityService
	Notifications *services.NotificationService
	Logger        logrus.FieldLogger
}

// Handler 汇总所有 callable 处理器
type Handler struct {
	Community    *CommunityHandler
	Post         *PostHandler
	Vote         *VoteHandler
	Notification *NotificationHandler
	User         *UserHandler
}

func NewHandler(deps Deps) *Handler {
	b := base{store: deps.Store, logger: deps.Logger}
	return &Handler{
		Community:    &CommunityHandler{base: b, communities: deps.Communities, notifications: deps.Notifications},
		Post:         &PostHandler{base: b},
		Vote:         &VoteHandler{base: b},
		Notification: &NotificationHandler{base: b},
		User:         &UserHandler{base: b},
	}
}

type base struct {
	store  docstore.Store
	logger logrus.FieldLogger
}

// bindData 解析 {"data": {...}} 请求体并校验
func bindData(c *gin.Context, v interface{}) error {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.ShouldBindJSON(&envelope); err != nil {
		return invalidArgument("request body must be a JSON object with a data field")
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		envelope.Data = []byte("{}")
	}
	if err := json.Unmarshal(envelope.Data, v); err != nil {
		return invalidArgument("malformed data: " + err.Error())
	}
	if err := binding.Validator.ValidateStruct(v); err != nil {
		return invalidArgument(err.Error())
	}
	return nil
}

func respond(c *gin.Context, result interface{}) {
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (b *base) fail(c *gin.Context, err error) {
	var callErr *CallableError
	switch {
	case errors.As(err, &callErr):
	case errors.Is(err, docstore.ErrNotFound):
		callErr = &CallableError{Status: StatusNotFound, Message: "document not found"}
	case errors.Is(err, docstore.ErrInvalidPath):
		callErr = &CallableError{Status: StatusInvalidArgument, Message: "invalid document path"}
	case errors.Is(err, docstore.ErrAlreadyExists):
		callErr = &CallableError{Status: StatusAlreadyExists, Message: "document already exists"}
	default:
		b.logger.WithError(err).WithField("path", c.Request.URL.Path).Error("callable failed")
		callErr = &CallableError{Status: StatusInternal, Message: "internal error"}
	}
	c.AbortWithStatusJSON(httpStatus[callErr.Status], gin.H{"error": callErr})
}

// role 返回用户在社区中的角色，非成员返回空字符串
func (b *base) role(ctx context.Context, communityID, userID string) (string, error) {
	doc, err := b.store.Get(ctx, models.MemberPath(communityID, userID))
	if errors.Is(err, docstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var m models.Member
	if err := models.Decode(doc, &m); err != nil {
		return "", err
	}
	return m.Role, nil
}

func (b *base) requireMember(ctx context.Context, communityID, userID string) (string, error) {
	role, err := b.role(ctx, communityID, userID)
	if err != nil {
		return "", err
	}
	if role == "" {
		return "", permissionDenied("you are not a member of this community")
	}
	return role, nil
}

func (b *base) requireAdmin(ctx context.Context, communityID, userID string) error {
	role, err := b.role(ctx, communityID, userID)
	if err != nil {
		return err
	}
	if role != models.RoleAdmin {
		return permissionDenied("only community admins can do this")
	}
	return nil
}

// author 读取调用者资料生成作者快照；资料不存在时返回空快照
func (b *base) author(ctx context.Context, userID string) (models.AuthorSnapshot, error) {
	doc, err := b.store.Get(ctx, models.UserPath(userID))
	if errors.Is(err, docstore.ErrNotFound) {
		return models.AuthorSnapshot{}, nil
	}
	if err != nil {
		return models.AuthorSnapshot{}, err
	}
	var u models.User
	if err := models.Decode(doc, &u); err != nil {
		return models.AuthorSnapshot{}, nil
	}
	return u.Snapshot(), nil
}

// load 读取文档，缺失时返回 NOT_FOUND
func (b *base) load(ctx context.Context, path, what string, v interface{}) error {
	doc, err := b.store.Get(ctx, path)
	if errors.Is(err, docstore.ErrNotFound) {
		return notFound(what + " not found")
	}
	if err != nil {
		return err
	}
	return models.Decode(doc, v)
}

func (b *base) follow(ctx context.Context, communityID, postID, userID string) error {
	data, err := models.Encode(models.Follower{UserID: userID, CreatedAt: nowUTC()})
	if err != nil {
		return err
	}
	return b.store.Set(ctx, docstore.Join(models.FollowerCollection(communityID, postID), userID), data)
}

var nowUTC = func() time.Time { return time.Now().UTC() }

func caller(c *gin.Context) string {
	return middleware.CurrentUserID(c)
}
