package api

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"portal/internal/auth"
	"portal/internal/entity"
	"portal/internal/validators"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const adminUsersPath = "/admin/admin_users"

// AdminUsersPage 用户列表，按创建时间倒序
func (h *HTTPHandler) AdminUsersPage(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	query := &entity.UserQuery{PageParams: entity.PageParams{Page: 1, PageSize: 500}}
	users, _, err := h.users.List(ctx, query)
	if err != nil {
		logrus.WithError(err).Error("failed to list users")
		addFlash(c, FlashDanger, "ページの読み込み中にエラーが発生しました")
		users = nil
	}
	h.render(c, http.StatusOK, "admin_users.html", gin.H{
		"Title": "ユーザー管理",
		"Users": users,
	})
}

// AdminUsersSubmit 处理 action=add|edit|delete，完成后重定向回列表
func (h *HTTPHandler) AdminUsersSubmit(c *gin.Context) {
	requestUser := CurrentUser(c)
	subject := requestUser.Subject()

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	switch c.PostForm("action") {
	case "add":
		if !auth.Can(subject, auth.Resource{Kind: auth.ResourceUser}, auth.ActionCreate) {
			h.renderError(c, http.StatusForbidden, "管理者権限が必要です")
			return
		}
		req := entity.UserCreateRequest{
			Username:        c.PostForm("username"),
			Email:           c.PostForm("email"),
			Password:        c.PostForm("password"),
			PasswordConfirm: c.PostForm("password_confirm"),
			IsAdmin:         formBool(c, "is_admin"),
		}
		user, err := h.users.CreateByAdmin(ctx, req)
		if err != nil {
			addFlashes(c, FlashDanger, h.userErrorMessages(err, "ユーザーの追加中にエラーが発生しました"))
			break
		}
		logrus.WithFields(logrus.Fields{"user_id": user.ID, "by": requestUser.ID}).Info("admin_user_created")
		addFlash(c, FlashSuccess, "ユーザー "+user.Username+" を正常に追加しました")

	case "edit":
		id, ok := parseID(c.PostForm("user_id"))
		if !ok {
			addFlash(c, FlashDanger, "無効なユーザーIDです")
			break
		}
		if !auth.Can(subject, auth.Resource{Kind: auth.ResourceUser, ID: id}, auth.ActionUpdate) {
			h.renderError(c, http.StatusForbidden, "管理者権限が必要です")
			return
		}
		username := c.PostForm("username")
		email := c.PostForm("email")
		isAdmin := formBool(c, "is_admin")
		isActive := formBool(c, "is_active")
		req := entity.UserUpdateRequest{
			Username: &username,
			Email:    &email,
			IsAdmin:  &isAdmin,
			IsActive: &isActive,
		}
		if password := c.PostForm("password"); password != "" {
			confirm := c.PostForm("password_confirm")
			req.Password = &password
			req.PasswordConfirm = &confirm
		}
		user, err := h.users.Update(ctx, id, req, validators.AdminPasswordMinLength)
		if err != nil {
			addFlashes(c, FlashDanger, h.userErrorMessages(err, "ユーザーの更新中にエラーが発生しました"))
			break
		}
		addFlash(c, FlashSuccess, "ユーザー "+user.Username+" を正常に更新しました")

	case "delete":
		id, ok := parseID(c.PostForm("user_id"))
		if !ok {
			addFlash(c, FlashDanger, "無効なユーザーIDです")
			break
		}
		if err := auth.Authorize(subject, auth.Resource{Kind: auth.ResourceUser, ID: id}, auth.ActionDelete); err != nil {
			if id == requestUser.ID {
				addFlash(c, FlashDanger, "自分自身を削除することはできません")
				break
			}
			h.renderError(c, http.StatusForbidden, "管理者権限が必要です")
			return
		}
		target, err := h.users.GetByID(ctx, id)
		if err != nil {
			addFlashes(c, FlashDanger, h.userErrorMessages(err, "ユーザーの削除中にエラーが発生しました"))
			break
		}
		if err := h.users.Delete(ctx, id); err != nil {
			addFlashes(c, FlashDanger, h.userErrorMessages(err, "ユーザーの削除中にエラーが発生しました"))
			break
		}
		logrus.WithFields(logrus.Fields{"user_id": id, "by": requestUser.ID}).Info("admin_user_deleted")
		addFlash(c, FlashSuccess, "ユーザー "+target.Username+" を正常に削除しました")

	default:
		addFlash(c, FlashDanger, "無効な操作です")
	}

	h.redirect(c, adminUsersPath)
}

// formBool 复选框或 "true"/"1"/"on"
func formBool(c *gin.Context, key string) bool {
	switch strings.ToLower(strings.TrimSpace(c.PostForm(key))) {
	case "true", "1", "on", "yes":
		return true
	}
	return false
}

type moduleInfo struct {
	Path    string
	Version string
}

type sysInfo struct {
	GoVersion     string
	OS            string
	Arch          string
	NumCPU        int
	Goroutines    int
	Hostname      string
	MemAlloc      int64
	MemSys        int64
	Now           string
	UTC           string
	Timezone      string
	StartedAt     time.Time
	DetectorModel string
	DetectorReady bool
	Modules       []moduleInfo
}

func (h *HTTPHandler) collectSysInfo() sysInfo {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	now := time.Now()
	zone, _ := now.Zone()
	info := sysInfo{
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		NumCPU:        runtime.NumCPU(),
		Goroutines:    runtime.NumGoroutine(),
		MemAlloc:      int64(mem.Alloc),
		MemSys:        int64(mem.Sys),
		Now:           now.Format("2006-01-02 15:04:05"),
		UTC:           now.UTC().Format("2006-01-02 15:04:05"),
		Timezone:      zone,
		StartedAt:     h.startedAt,
		DetectorModel: h.detector.ModelName(),
		DetectorReady: h.detector.Ready(),
	}
	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}
	if build, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range build.Deps {
			info.Modules = append(info.Modules, moduleInfo{Path: dep.Path, Version: dep.Version})
		}
	}
	return info
}

// SysInfo 系统信息页面
func (h *HTTPHandler) SysInfo(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	data := gin.H{
		"Title": "システム情報",
		"Sys":   h.collectSysInfo(),
	}
	dbInfo, err := h.repo.DBInfo(ctx)
	if err != nil {
		logrus.WithError(err).Warn("failed to collect database info")
		addFlash(c, FlashWarning, "データベース情報の取得に失敗しました")
	} else {
		data["DB"] = dbInfo
	}
	h.render(c, http.StatusOK, "admin_sys.html", data)
}
