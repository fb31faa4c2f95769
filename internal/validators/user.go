// Package validators holds the input checks shared by the HTML forms and
// the JSON API.
package validators

import (
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"
)

var (
	ErrEmailEmpty   = errors.New("メールアドレスを入力してください")
	ErrEmailInvalid = errors.New("有効なメールアドレスを入力してください")

	ErrUsernameTooShort = errors.New("ユーザー名は3文字以上で入力してください")
	ErrUsernameTooLong  = errors.New("ユーザー名は64文字以内で入力してください")

	ErrPasswordEmpty    = errors.New("パスワードを入力してください")
	ErrPasswordTooShort = errors.New("パスワードが短すぎます")
	ErrPasswordTooLong  = errors.New("パスワードが長すぎます")
	ErrPasswordMismatch = errors.New("パスワードが一致しません")
)

const (
	UsernameMinLength = 3
	UsernameMaxLength = 64

	// RegisterPasswordMinLength 自助注册的最小密码长度
	RegisterPasswordMinLength = 8
	// AdminPasswordMinLength 管理员代建账户的最小密码长度
	AdminPasswordMinLength = 6

	passwordMaxLength = 72 // bcrypt 上限
)

func EmailValidator(e string) error {
	e = strings.TrimSpace(e)
	if e == "" {
		return ErrEmailEmpty
	}

	addr, err := mail.ParseAddress(e)
	if err != nil || addr.Address != e || !strings.Contains(e[strings.LastIndex(e, "@")+1:], ".") {
		return ErrEmailInvalid
	}

	return nil
}

func UsernameValidator(u string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(u))
	if n < UsernameMinLength {
		return ErrUsernameTooShort
	}
	if n > UsernameMaxLength {
		return ErrUsernameTooLong
	}
	return nil
}

// PasswordValidator 校验密码长度；confirm 非 nil 时还要求两次输入一致
func PasswordValidator(p string, minLength int, confirm *string) error {
	if p == "" {
		return ErrPasswordEmpty
	}
	if utf8.RuneCountInString(p) < minLength {
		return ErrPasswordTooShort
	}
	if len(p) > passwordMaxLength {
		return ErrPasswordTooLong
	}
	if confirm != nil && *confirm != p {
		return ErrPasswordMismatch
	}
	return nil
}

// Collect 依次执行校验并收集全部错误消息
func Collect(checks ...error) []string {
	var messages []string
	for _, err := range checks {
		if err != nil {
			messages = append(messages, err.Error())
		}
	}
	return messages
}
