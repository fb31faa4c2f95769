package service

import (
	"errors"
	"strings"
)

var (
	ErrUsernameTaken      = errors.New("このユーザー名は既に使用されています")
	ErrEmailTaken         = errors.New("このメールアドレスは既に登録されています")
	ErrInvalidCredentials = errors.New("ユーザー名またはパスワードが間違っています")
	ErrUserDisabled       = errors.New("このアカウントは無効化されています")
	ErrUserNotFound       = errors.New("ユーザーが見つかりません")
	ErrImageNotFound      = errors.New("画像が見つかりません")
	ErrImageFileMissing   = errors.New("画像ファイルが見つかりません")
	ErrAddressNotFound    = errors.New("住所が見つかりません")
)

// ValidationError 表单校验失败，Messages 可直接展示给用户
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "\n")
}

func validation(messages []string) error {
	if len(messages) == 0 {
		return nil
	}
	return &ValidationError{Messages: messages}
}
