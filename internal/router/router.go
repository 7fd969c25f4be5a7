package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"uitforum/internal/handlers"
	"uitforum/internal/middleware"
)

// Pinger 用于健康检查，内存存储不需要实现
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	JWTSecret   []byte
	CORSOrigins []string
	Health      Pinger
	Logger      logrus.FieldLogger
}

func RegisterRoutes(r *gin.Engine, h *handlers.Handler, opts Options) {
	r.Use(middleware.RequestLogger(opts.Logger))

	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(opts.CORSOrigins) == 0 || (len(opts.CORSOrigins) == 1 && opts.CORSOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = opts.CORSOrigins
	}
	r.Use(cors.New(corsConfig))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		if opts.Health != nil {
			if err := opts.Health.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Callable 函数 (POST /api/{name})
	api := r.Group("/api")
	api.Use(middleware.AuthRequired(opts.JWTSecret))
	{
		api.POST("/getMemberInfo", h.Community.GetMemberInfo)                                               // 社区成员信息
		api.POST("/createCommunity", h.Community.CreateCommunity)                                           // 创建社区
		api.POST("/updateCommunity", h.Community.UpdateCommunity)                                           // 修改社区
		api.POST("/joinCommunity", h.Community.JoinCommunity)                                               // 加入社区
		api.POST("/approveAllUserRequestToJoinCommunity", h.Community.ApproveAllUserRequestToJoinCommunity) // 审核入群申请

		api.POST("/createPost", h.Post.CreatePost)       // 发帖
		api.POST("/updatePost", h.Post.UpdatePost)       // 编辑帖子
		api.POST("/deletePost", h.Post.DeletePost)       // 删除帖子
		api.POST("/createComment", h.Post.CreateComment) // 评论
		api.POST("/updateComment", h.Post.UpdateComment) // 编辑评论
		api.POST("/deleteComment", h.Post.DeleteComment) // 删除评论
		api.POST("/vote", h.Vote.Vote)                   // 投票

		api.POST("/markAllNotificationAsRead", h.Notification.MarkAllNotificationAsRead) // 全部已读
		api.POST("/updateProfile", h.User.UpdateProfile)                                 // 修改资料
	}
}
