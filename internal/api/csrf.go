package api

import (
	"context"
	"crypto/sha256"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"
	"github.com/sirupsen/logrus"
)

const (
	csrfFieldName  = "csrf_token"
	csrfCookieName = "csrf"
	csrfHeaderName = "X-CSRF-Token"
)

type ginContextKey struct{}

// CSRF 校验非安全方法请求里的 csrf_token 表单字段或 X-CSRF-Token 头。
// Bearer 认证和 JSON 请求体不会由跨站表单发出，不做校验。
func (h *HTTPHandler) CSRF() gin.HandlerFunc {
	if !h.cfg.CSRFEnabled {
		return func(c *gin.Context) { c.Next() }
	}

	secret := h.cfg.CSRFSecret
	if secret == "" {
		secret = "csrf:" + h.cfg.JWTSecret
	}
	key := sha256.Sum256([]byte(secret))

	protect := csrf.Protect(key[:],
		csrf.FieldName(csrfFieldName),
		csrf.CookieName(csrfCookieName),
		csrf.RequestHeader(csrfHeaderName),
		csrf.Path("/"),
		csrf.Secure(h.cfg.SessionCookieSecure),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(h.csrfFailed)),
	)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		c := r.Context().Value(ginContextKey{}).(*gin.Context)
		c.Request = r
		c.Next()
	}))

	return func(c *gin.Context) {
		r := c.Request.WithContext(context.WithValue(c.Request.Context(), ginContextKey{}, c))
		if r.TLS == nil && !strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
			r = csrf.PlaintextHTTPRequest(r)
		}
		if csrfExempt(r) {
			r = csrf.UnsafeSkipCheck(r)
		}
		protect.ServeHTTP(c.Writer, r)
	}
}

func csrfExempt(r *http.Request) bool {
	if auth := strings.TrimSpace(r.Header.Get("Authorization")); len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return true
	}
	contentType := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Type")))
	return strings.HasPrefix(contentType, "application/json")
}

func (h *HTTPHandler) csrfFailed(w http.ResponseWriter, r *http.Request) {
	logrus.WithError(csrf.FailureReason(r)).WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).Warn("csrf_rejected")

	c, ok := r.Context().Value(ginContextKey{}).(*gin.Context)
	if !ok {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	c.Request = r
	c.Abort()
	h.renderError(c, http.StatusForbidden, "フォームの有効期限が切れました。ページを再読み込みしてからもう一度送信してください")
}

// csrfField 模板里的隐藏字段；未经过 CSRF 中间件时为空
func csrfField(c *gin.Context) template.HTML {
	return csrf.TemplateField(c.Request)
}
