package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// UserIDKey 当前调用者 ID 在 gin.Context 中的键
const UserIDKey = "user_id"

// AuthRequired 校验 Authorization: Bearer <token>，token 的 sub 即用户 ID
func AuthRequired(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := ParseToken(secret, c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"status": "UNAUTHENTICATED", "message": "The function must be called while authenticated."},
			})
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// ParseToken 解析 Bearer token，返回 sub
func ParseToken(secret []byte, header string) (string, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", errors.New("missing bearer token")
	}
	token, err := jwt.Parse(strings.TrimSpace(raw), func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

// IssueToken 签发 token，用于本地调试和测试
func IssueToken(secret []byte, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// CurrentUserID 获取当前调用者 ID
func CurrentUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// RequestLogger 记录每个请求的方法、路径、状态码与耗时
func RequestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Info("HTTP request")
	}
}
