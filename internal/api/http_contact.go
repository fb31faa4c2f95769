package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"portal/internal/mail"
	"portal/internal/validators"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func (h *HTTPHandler) ContactPage(c *gin.Context) {
	h.render(c, http.StatusOK, "contact.html", gin.H{"Title": "お問い合わせ"})
}

// ContactSubmit 给提交者发送确认邮件，不落库也不重试
func (h *HTTPHandler) ContactSubmit(c *gin.Context) {
	name := strings.TrimSpace(c.PostForm("name"))
	email := strings.TrimSpace(c.PostForm("email"))
	message := strings.TrimSpace(c.PostForm("message"))

	rerender := func() {
		h.render(c, http.StatusOK, "contact.html", gin.H{
			"Title":   "お問い合わせ",
			"Name":    name,
			"Email":   email,
			"Message": message,
		})
	}

	if name == "" || email == "" || message == "" {
		addFlash(c, FlashDanger, "すべての項目を入力してください")
		rerender()
		return
	}
	if err := validators.EmailValidator(email); err != nil {
		addFlash(c, FlashDanger, "無効なメールアドレスです")
		rerender()
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	err := h.mailer.Send(ctx, mail.ContactMessage{
		Name:        name,
		Email:       email,
		Message:     message,
		SubmittedAt: time.Now(),
	})
	if err != nil {
		logrus.WithError(err).WithField("email", email).Error("failed to send contact mail")
		if errors.Is(err, mail.ErrNotConfigured) {
			addFlash(c, FlashDanger, "メール送信が設定されていません")
		} else {
			addFlash(c, FlashDanger, "メール送信中にエラーが発生しました: "+err.Error())
		}
		rerender()
		return
	}

	logrus.WithField("email", email).Info("contact_mail_sent")
	addFlash(c, FlashSuccess, "お問い合わせを受け付けました")
	h.redirect(c, "/contact/complete")
}

func (h *HTTPHandler) ContactComplete(c *gin.Context) {
	now := time.Now()
	zone, _ := now.Zone()
	h.render(c, http.StatusOK, "contact_complete.html", gin.H{
		"Title":    "送信完了",
		"Now":      now.Format("2006-01-02 15:04:05"),
		"Timezone": zone,
	})
}
