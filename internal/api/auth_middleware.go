package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"portal/internal/auth"
	"portal/internal/entity"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	currentUserContextKey    = "current-user"
	sessionExpiredContextKey = "session-expired"
)

// RequestUser 存储请求上下文中的认证用户信息
type RequestUser struct {
	ID       uint
	Username string
	Email    string
	Role     string
	IsAdmin  bool
}

// Subject 转换为授权策略的主体
func (u *RequestUser) Subject() *auth.Subject {
	if u == nil {
		return nil
	}
	return &auth.Subject{UserID: u.ID, IsAdmin: u.IsAdmin}
}

func newRequestUser(user *entity.DbUser) *RequestUser {
	return &RequestUser{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
		IsAdmin:  user.IsAdmin,
	}
}

// LoadSession 解析 Bearer Token 或 session cookie，有效时把用户放入上下文。
// 无效或过期的会话只会被忽略，由 RequireLogin 决定是否拒绝。
func (h *HTTPHandler) LoadSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, fromCookie := sessionToken(c)
		if token == "" {
			c.Next()
			return
		}

		claims, err := h.authManager.Verify(token)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				c.Set(sessionExpiredContextKey, true)
				logrus.WithField("from_cookie", fromCookie).Debug("session expired")
			} else {
				logrus.WithError(err).Warn("ignore invalid session token")
			}
			if fromCookie {
				h.clearSessionCookie(c)
			}
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		user, err := h.repo.GetUserByID(ctx, claims.UserID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				logrus.WithError(err).WithField("user_id", claims.UserID).Error("failed to load session user")
			} else if fromCookie {
				h.clearSessionCookie(c)
			}
			c.Next()
			return
		}
		if !user.IsActive {
			if fromCookie {
				h.clearSessionCookie(c)
			}
			c.Next()
			return
		}

		c.Set(currentUserContextKey, newRequestUser(user))
		c.Next()
	}
}

// sessionToken Authorization 头优先，其次是 session cookie
func sessionToken(c *gin.Context) (string, bool) {
	if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1]), false
		}
	}
	if cookie, err := c.Cookie(auth.SessionCookieName); err == nil {
		return strings.TrimSpace(cookie), true
	}
	return "", false
}

// RequireLogin 未登录时：API 返回 401，页面跳转到登录页并带上 next
func (h *HTTPHandler) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) != nil {
			c.Next()
			return
		}
		expired := c.GetBool(sessionExpiredContextKey)
		if wantsJSON(c) {
			c.Abort()
			if expired {
				ErrorResponse(c, http.StatusUnauthorized, ErrCodeSessionExpired, "セッションの有効期限が切れました")
				return
			}
			Unauthorized(c, "ログインが必要です")
			return
		}
		if expired {
			addFlash(c, FlashWarning, "セッションの有効期限が切れました。再度ログインしてください")
		} else {
			addFlash(c, FlashWarning, "ログインが必要です")
		}
		h.redirect(c, "/auth/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
	}
}

// RequireAdmin 管理员权限守卫，由授权策略判定
func (h *HTTPHandler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if err := auth.Authorize(user.Subject(), auth.Resource{Kind: auth.ResourceAdmin}, auth.ActionRead); err != nil {
			c.Abort()
			logrus.WithField("path", c.Request.URL.Path).Warn("admin access denied")
			h.renderError(c, http.StatusForbidden, "管理者権限が必要です")
			return
		}
		c.Next()
	}
}

// CurrentUser 从上下文获取当前认证用户
func CurrentUser(c *gin.Context) *RequestUser {
	value, exists := c.Get(currentUserContextKey)
	if !exists {
		return nil
	}
	user, ok := value.(*RequestUser)
	if !ok {
		return nil
	}
	return user
}

// startSession 签发 token 并写入 session cookie
func (h *HTTPHandler) startSession(c *gin.Context, user *entity.DbUser) (string, time.Time, error) {
	token, expiresAt, err := h.authManager.Issue(user)
	if err != nil {
		return "", time.Time{}, err
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.cfg.SessionCookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	c.Set(currentUserContextKey, newRequestUser(user))
	return token, expiresAt, nil
}

func (h *HTTPHandler) clearSessionCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     auth.SessionCookieName,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.SessionCookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// safeNext 只允许站内相对路径
func safeNext(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return "/"
	}
	return next
}
