package mail

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"os"
	"path/filepath"
	"portal/internal/config"
	"strings"
	texttemplate "text/template"
	"time"

	"gopkg.in/gomail.v2"
)

// ContactSubject 问い合わせ确认邮件标题
const ContactSubject = "お問い合わせありがとうございました。"

// ErrNotConfigured MAIL_SERVER 未设置
var ErrNotConfigured = errors.New("mail: MAIL_SERVER is not configured")

//go:embed templates/contact_mail.txt templates/contact_mail.html
var templateFS embed.FS

var (
	textTmpl = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/contact_mail.txt"))
	htmlTmpl = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/contact_mail.html"))
)

// Dialer gomail.Dialer 的发送部分，测试时替换
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// ContactMessage 表单提交内容
type ContactMessage struct {
	Name        string
	Email       string
	Message     string
	SubmittedAt time.Time
}

// ContactSender sends the confirmation mail for a contact form submission.
type ContactSender struct {
	dialer         Dialer
	from           string
	cc             string
	bcc            string
	replyTo        string
	attachmentPath string
}

func NewContactSender(cfg config.Config) *ContactSender {
	s := &ContactSender{
		from:           strings.TrimSpace(cfg.MailDefaultSender),
		cc:             strings.TrimSpace(cfg.ContactCCEmail),
		bcc:            strings.TrimSpace(cfg.ContactBCCEmail),
		replyTo:        strings.TrimSpace(cfg.ContactReplyToEmail),
		attachmentPath: strings.TrimSpace(cfg.ContactAttachmentPath),
	}
	if s.from == "" {
		s.from = strings.TrimSpace(cfg.MailUsername)
	}
	if host := strings.TrimSpace(cfg.MailServer); host != "" {
		d := gomail.NewDialer(host, cfg.MailPort, cfg.MailUsername, cfg.MailPassword)
		// 465 为隐式 TLS，其余端口由服务器决定是否 STARTTLS
		d.SSL = cfg.MailUseTLS && cfg.MailPort == 465
		s.dialer = d
	}
	return s
}

// WithDialer 替换发送器
func (s *ContactSender) WithDialer(d Dialer) *ContactSender {
	s.dialer = d
	return s
}

// Build renders the text body with an HTML alternative and sets cc, bcc and
// reply-to only when configured. The attachment is added when readable.
func (s *ContactSender) Build(msg ContactMessage) (*gomail.Message, error) {
	if msg.SubmittedAt.IsZero() {
		msg.SubmittedAt = time.Now()
	}

	var text, html bytes.Buffer
	if err := textTmpl.Execute(&text, msg); err != nil {
		return nil, fmt.Errorf("render text body: %w", err)
	}
	if err := htmlTmpl.Execute(&html, msg); err != nil {
		return nil, fmt.Errorf("render html body: %w", err)
	}

	m := gomail.NewMessage(gomail.SetCharset("UTF-8"))
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.Email)
	m.SetHeader("Subject", ContactSubject)
	if s.cc != "" {
		m.SetHeader("Cc", s.cc)
	}
	if s.bcc != "" {
		m.SetHeader("Bcc", s.bcc)
	}
	if s.replyTo != "" {
		m.SetHeader("Reply-To", s.replyTo)
	}
	m.SetBody("text/plain", text.String())
	m.AddAlternative("text/html", html.String())

	if s.attachmentPath != "" {
		if info, err := os.Stat(s.attachmentPath); err == nil && !info.IsDir() {
			name := filepath.Base(s.attachmentPath)
			m.Attach(s.attachmentPath,
				gomail.Rename(name),
				gomail.SetHeader(map[string][]string{"Content-Type": {"text/plain; charset=utf-8"}}),
			)
			m.SetHeader("X-Custom", name)
		}
	}
	return m, nil
}

// Send 渲染并发送；无重试。
// ctx 结束时立即返回 ctx.Err()，已开始的 SMTP 会话在后台自行结束。
func (s *ContactSender) Send(ctx context.Context, msg ContactMessage) error {
	if s.dialer == nil {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := s.Build(msg)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send contact mail: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
