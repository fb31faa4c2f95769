package api

import (
	"bytes"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// plainErrorBody 错误页模板本身渲染失败时的兜底输出
const plainErrorBody = "500 Internal Server Error\n\nサーバー内部でエラーが発生しました。"

// render 渲染页面模板，自动附带当前用户与 flash 消息
func (h *HTTPHandler) render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["AppName"] = h.cfg.AppName
	data["CurrentUser"] = CurrentUser(c)
	data["Flashes"] = takeFlashes(c)
	data["CSRFField"] = csrfField(c)

	if h.templates == nil {
		c.Data(http.StatusInternalServerError, "text/plain; charset=utf-8", []byte(plainErrorBody))
		return
	}
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, name, data); err != nil {
		logrus.WithError(err).WithField("template", name).Error("failed to render template")
		c.Data(http.StatusInternalServerError, "text/plain; charset=utf-8", []byte(plainErrorBody))
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

// renderError API 请求返回 JSON 错误，页面请求渲染错误页
func (h *HTTPHandler) renderError(c *gin.Context, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	if wantsJSON(c) {
		ErrorResponse(c, status, codeForStatus(status), message)
		return
	}
	h.render(c, status, "error.html", gin.H{
		"Title":   http.StatusText(status),
		"Status":  status,
		"Message": message,
	})
}

// wantsJSON 路径含 /api/ 或只接受 JSON 的请求
func wantsJSON(c *gin.Context) bool {
	path := c.Request.URL.Path
	if strings.HasPrefix(path, "/api/") || strings.Contains(path, "/api/") {
		return true
	}
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

// Recovery 记录 panic 与调用栈，返回 500 页面
func (h *HTTPHandler) Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logrus.WithFields(logrus.Fields{
					"panic":  rec,
					"method": c.Request.Method,
					"path":   c.Request.URL.Path,
					"stack":  string(debug.Stack()),
				}).Error("panic_recovered")
				c.Abort()
				if c.Writer.Written() {
					return
				}
				h.renderError(c, http.StatusInternalServerError, "サーバー内部でエラーが発生しました")
			}
		}()
		c.Next()
	}
}

func (h *HTTPHandler) NotFound(c *gin.Context) {
	h.renderError(c, http.StatusNotFound, "ページが見つかりません")
}

func (h *HTTPHandler) MethodNotAllowed(c *gin.Context) {
	h.renderError(c, http.StatusMethodNotAllowed, "許可されていないメソッドです")
}

// LoggingMiddleware 日志记录中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		entry := logrus.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"duration":  duration.String(),
			"size":      c.Writer.Size(),
			"client_ip": c.ClientIP(),
		})
		if user := CurrentUser(c); user != nil {
			entry = entry.WithField("user_id", user.ID)
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("http_request")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("http_request")
		default:
			entry.Info("http_request")
		}
	}
}
