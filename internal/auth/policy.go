package auth

import "errors"

// ErrForbidden 策略拒绝访问
var ErrForbidden = errors.New("auth: forbidden")

// ResourceKind 受保护资源的类型
type ResourceKind string

const (
	// ResourceAdmin 管理页面（系统信息、用户管理入口）
	ResourceAdmin ResourceKind = "admin"
	// ResourceUser 管理面板中的用户记录
	ResourceUser ResourceKind = "user"
	// ResourceAccount 用户本人的账户（自助修改、注销）
	ResourceAccount ResourceKind = "account"
	ResourceAddress ResourceKind = "address"
	ResourceImage   ResourceKind = "image"
)

// Action 对资源的操作
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Subject 发起请求的用户
type Subject struct {
	UserID  uint
	IsAdmin bool
}

// Resource 被访问的资源；OwnerID 为 0 表示无归属（如管理页面或待创建的记录）
type Resource struct {
	Kind    ResourceKind
	ID      uint
	OwnerID uint
}

// Authorize is the single access decision used by admin and owner-scoped
// routes. It returns ErrForbidden when the subject may not perform action.
func Authorize(subject *Subject, resource Resource, action Action) error {
	if subject == nil || subject.UserID == 0 {
		return ErrForbidden
	}

	switch resource.Kind {
	case ResourceAdmin:
		if subject.IsAdmin {
			return nil
		}
		return ErrForbidden
	case ResourceUser:
		if !subject.IsAdmin {
			return ErrForbidden
		}
		// 管理面板中不能删除自己
		if action == ActionDelete && resource.ID == subject.UserID {
			return ErrForbidden
		}
		return nil
	case ResourceAccount:
		if resource.ID == subject.UserID {
			return nil
		}
		return ErrForbidden
	case ResourceAddress, ResourceImage:
		// 私有数据只允许本人访问，管理员也不例外
		if action == ActionCreate && resource.OwnerID == 0 {
			return nil
		}
		if resource.OwnerID != 0 && resource.OwnerID == subject.UserID {
			return nil
		}
		return ErrForbidden
	default:
		return ErrForbidden
	}
}

// Can 是 Authorize 的布尔版本
func Can(subject *Subject, resource Resource, action Action) bool {
	return Authorize(subject, resource, action) == nil
}
