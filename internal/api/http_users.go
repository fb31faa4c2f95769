package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"portal/internal/auth"
	"portal/internal/entity"
	"portal/internal/validators"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func (h *HTTPHandler) ListUsers(c *gin.Context) {
	var query entity.UserQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid query parameters")
		return
	}
	query.Normalize(entity.MaxPageSize)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	users, meta, err := h.users.List(ctx, &query)
	if err != nil {
		logrus.WithError(err).Error("failed to list users")
		InternalError(c, "failed to load users")
		return
	}

	response := entity.UserListResponse{
		Users: make([]entity.UserSummary, 0, len(users)),
		Meta:  meta,
	}
	for idx := range users {
		response.Users = append(response.Users, makeUserSummary(&users[idx]))
	}

	c.JSON(http.StatusOK, response)
}

func (h *HTTPHandler) CreateUser(c *gin.Context) {
	requestUser := CurrentUser(c)
	if !auth.Can(requestUser.Subject(), auth.Resource{Kind: auth.ResourceUser}, auth.ActionCreate) {
		Forbidden(c, "admin privileges required")
		return
	}

	var req entity.UserCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	user, err := h.users.CreateByAdmin(ctx, req)
	if err != nil {
		respondUserError(c, err, "failed to create user")
		return
	}

	logrus.WithFields(logrus.Fields{"user_id": user.ID, "by": requestUser.ID}).Info("admin_user_created")
	c.JSON(http.StatusCreated, makeUserSummary(user))
}

func (h *HTTPHandler) UpdateUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		BadRequest(c, ErrCodeInvalidRequest, "invalid user id")
		return
	}
	requestUser := CurrentUser(c)
	if !auth.Can(requestUser.Subject(), auth.Resource{Kind: auth.ResourceUser, ID: id}, auth.ActionUpdate) {
		Forbidden(c, "admin privileges required")
		return
	}

	var req entity.UserUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}
	// JSON 接口修改密码时可省略确认字段
	if req.Password != nil && req.PasswordConfirm == nil {
		req.PasswordConfirm = req.Password
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	updated, err := h.users.Update(ctx, id, req, validators.AdminPasswordMinLength)
	if err != nil {
		respondUserError(c, err, "failed to update user")
		return
	}

	c.JSON(http.StatusOK, makeUserSummary(updated))
}

func (h *HTTPHandler) DeleteUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		BadRequest(c, ErrCodeInvalidRequest, "invalid user id")
		return
	}
	requestUser := CurrentUser(c)
	if err := auth.Authorize(requestUser.Subject(), auth.Resource{Kind: auth.ResourceUser, ID: id}, auth.ActionDelete); err != nil {
		if requestUser != nil && requestUser.ID == id {
			BadRequest(c, ErrCodeCannotDeleteSelf, "cannot delete current user")
			return
		}
		Forbidden(c, "admin privileges required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.users.Delete(ctx, id); err != nil {
		respondUserError(c, err, "failed to delete user")
		return
	}

	logrus.WithFields(logrus.Fields{"user_id": id, "by": requestUser.ID}).Info("admin_user_deleted")
	c.Status(http.StatusNoContent)
}

// parseIDParam 解析正整数路径参数
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	return parseID(c.Param(name))
}

func parseID(value string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
