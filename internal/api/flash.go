package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	flashCookieName = "flash"
	flashContextKey = "pending-flashes"
)

// 与模板中的 flash-<category> 样式对应
const (
	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashWarning = "warning"
	FlashDanger  = "danger"
)

// Flash 一次性提示消息，跨一次重定向显示
type Flash struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

// addFlash 记录到当前请求；渲染页面时直接显示，重定向时写入 cookie
func addFlash(c *gin.Context, category, message string) {
	pending := pendingFlashes(c)
	c.Set(flashContextKey, append(pending, Flash{Category: category, Message: message}))
}

func addFlashes(c *gin.Context, category string, messages []string) {
	for _, m := range messages {
		addFlash(c, category, m)
	}
}

func pendingFlashes(c *gin.Context) []Flash {
	if value, ok := c.Get(flashContextKey); ok {
		if flashes, ok := value.([]Flash); ok {
			return flashes
		}
	}
	return nil
}

// takeFlashes 取出上一个请求留下的和本请求新增的消息，并清除 cookie
func takeFlashes(c *gin.Context) []Flash {
	flashes := readFlashCookie(c)
	if flashes != nil {
		writeFlashCookie(c, nil)
	}
	flashes = append(flashes, pendingFlashes(c)...)
	c.Set(flashContextKey, []Flash(nil))
	return flashes
}

// redirect PRG 跳转，未显示的消息随 cookie 带到下一个页面
func (h *HTTPHandler) redirect(c *gin.Context, location string) {
	flashes := append(readFlashCookie(c), pendingFlashes(c)...)
	if len(flashes) > 0 {
		writeFlashCookie(c, flashes)
	}
	c.Redirect(http.StatusFound, location)
	c.Abort()
}

func readFlashCookie(c *gin.Context) []Flash {
	raw, err := c.Cookie(flashCookieName)
	if err != nil || raw == "" {
		return nil
	}
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil
	}
	var flashes []Flash
	if err := json.Unmarshal(data, &flashes); err != nil {
		return nil
	}
	return flashes
}

func writeFlashCookie(c *gin.Context, flashes []Flash) {
	cookie := &http.Cookie{
		Name:     flashCookieName,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if len(flashes) == 0 {
		cookie.MaxAge = -1
	} else {
		data, err := json.Marshal(flashes)
		if err != nil {
			return
		}
		cookie.Value = base64.RawURLEncoding.EncodeToString(data)
	}
	http.SetCookie(c.Writer, cookie)
}
