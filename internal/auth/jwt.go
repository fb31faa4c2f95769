package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"portal/internal/entity"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionCookieName 浏览器会话 cookie 名称
const SessionCookieName = "session"

var (
	ErrTokenExpired = errors.New("auth: session token expired")
	ErrTokenInvalid = errors.New("auth: invalid session token")
)

// Claims 会话 token 内容。角色只作展示，权限判断以数据库中的用户为准。
type Claims struct {
	UserID   uint   `json:"uid"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Manager 签发和校验 HS256 会话 token，浏览器 cookie 与 Bearer 共用
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(secret, issuer string, ttl time.Duration) (*Manager, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: jwt secret must not be empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if issuer = strings.TrimSpace(issuer); issuer == "" {
		issuer = "portal"
	}
	return &Manager{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// TTL 会话有效期
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue 为用户签发 token，返回 token 与过期时间
func (m *Manager) Issue(user *entity.DbUser) (string, time.Time, error) {
	if user == nil || user.ID == 0 {
		return "", time.Time{}, errors.New("auth: cannot issue token for unsaved user")
	}
	now := m.now().UTC()
	expiresAt := now.Add(m.ttl)

	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify 校验签名、签发方和有效期。过期返回 ErrTokenExpired，其它失败返回 ErrTokenInvalid。
func (m *Manager) Verify(raw string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	claims := &Claims{}
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	default:
		return nil, errors.Join(ErrTokenInvalid, err)
	}
	if claims.UserID == 0 {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
