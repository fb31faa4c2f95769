package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt 只使用前 72 字节，更长的密码直接拒绝
const maxPasswordBytes = 72

var (
	ErrPasswordMismatch = errors.New("auth: password mismatch")
	ErrEmptyPassword    = errors.New("auth: empty password")
	ErrPasswordTooLong  = errors.New("auth: password longer than 72 bytes")
	errEmptyHash        = errors.New("auth: stored hash is empty")
)

var passwordCost = bcrypt.DefaultCost

// SetPasswordCost 设置新哈希使用的 bcrypt cost，启动时调用一次
func SetPasswordCost(cost int) error {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return fmt.Errorf("auth: bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	passwordCost = cost
	return nil
}

func HashPassword(password string) (string, error) {
	switch {
	case strings.TrimSpace(password) == "":
		return "", ErrEmptyPassword
	case len(password) > maxPasswordBytes:
		return "", ErrPasswordTooLong
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func VerifyPassword(hash, candidate string) error {
	if strings.TrimSpace(hash) == "" {
		return errEmptyHash
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}

// NeedsRehash 哈希的 cost 与当前设置不一致（或无法解析）时返回 true
func NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	return err != nil || cost != passwordCost
}
