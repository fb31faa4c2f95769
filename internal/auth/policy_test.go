package auth

import (
	"errors"
	"testing"
)

func TestAuthorize(t *testing.T) {
	admin := &Subject{UserID: 1, IsAdmin: true}
	alice := &Subject{UserID: 2}
	bob := &Subject{UserID: 3}

	tests := []struct {
		name     string
		subject  *Subject
		resource Resource
		action   Action
		allowed  bool
	}{
		{"匿名用户拒绝", nil, Resource{Kind: ResourceAdmin}, ActionRead, false},
		{"管理员访问管理页", admin, Resource{Kind: ResourceAdmin}, ActionRead, true},
		{"普通用户访问管理页", alice, Resource{Kind: ResourceAdmin}, ActionRead, false},
		{"管理员删除他人", admin, Resource{Kind: ResourceUser, ID: 2}, ActionDelete, true},
		{"管理员不能在面板中删除自己", admin, Resource{Kind: ResourceUser, ID: 1}, ActionDelete, false},
		{"管理员编辑自己", admin, Resource{Kind: ResourceUser, ID: 1}, ActionUpdate, true},
		{"普通用户不能管理用户", alice, Resource{Kind: ResourceUser, ID: 2}, ActionUpdate, false},
		{"用户注销自己的账户", alice, Resource{Kind: ResourceAccount, ID: 2}, ActionDelete, true},
		{"管理员注销自己的账户", admin, Resource{Kind: ResourceAccount, ID: 1}, ActionDelete, true},
		{"用户修改他人账户", alice, Resource{Kind: ResourceAccount, ID: 3}, ActionUpdate, false},
		{"本人读取图片", alice, Resource{Kind: ResourceImage, ID: 10, OwnerID: 2}, ActionRead, true},
		{"他人读取图片", bob, Resource{Kind: ResourceImage, ID: 10, OwnerID: 2}, ActionRead, false},
		{"管理员也不能读取他人图片", admin, Resource{Kind: ResourceImage, ID: 10, OwnerID: 2}, ActionRead, false},
		{"新建地址", bob, Resource{Kind: ResourceAddress}, ActionCreate, true},
		{"删除他人地址", bob, Resource{Kind: ResourceAddress, ID: 5, OwnerID: 2}, ActionDelete, false},
		{"未知资源", admin, Resource{Kind: "unknown"}, ActionRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.subject, tt.resource, tt.action)
			if tt.allowed && err != nil {
				t.Fatalf("expected allowed, got %v", err)
			}
			if !tt.allowed && !errors.Is(err, ErrForbidden) {
				t.Fatalf("expected ErrForbidden, got %v", err)
			}
			if Can(tt.subject, tt.resource, tt.action) != tt.allowed {
				t.Fatalf("Can disagrees with Authorize")
			}
		})
	}
}
