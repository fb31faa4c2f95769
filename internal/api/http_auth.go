package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"portal/internal/entity"
	"portal/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func (h *HTTPHandler) LoginPage(c *gin.Context) {
	if CurrentUser(c) != nil {
		h.redirect(c, safeNext(c.Query("next")))
		return
	}
	h.render(c, http.StatusOK, "login.html", gin.H{
		"Title": "ログイン",
		"Next":  c.Query("next"),
	})
}

func (h *HTTPHandler) LoginSubmit(c *gin.Context) {
	var req entity.AuthLoginRequest
	if err := c.ShouldBind(&req); err != nil {
		addFlash(c, FlashDanger, "入力内容が正しくありません")
		h.redirect(c, "/auth/login")
		return
	}
	next := safeNext(c.PostForm("next"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	user, err := h.users.Login(ctx, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrUserDisabled):
			logrus.WithField("username", strings.TrimSpace(req.Username)).Warn("login attempt failed")
			addFlash(c, FlashDanger, err.Error())
		default:
			logrus.WithError(err).Error("failed to process login")
			addFlash(c, FlashDanger, "ログイン処理中にエラーが発生しました")
		}
		location := "/auth/login"
		if next != "/" {
			location += "?next=" + url.QueryEscape(next)
		}
		h.redirect(c, location)
		return
	}

	if _, _, err := h.startSession(c, user); err != nil {
		logrus.WithError(err).Error("failed to create session")
		h.renderError(c, http.StatusInternalServerError, "セッションの作成に失敗しました")
		return
	}
	logrus.WithField("user_id", user.ID).Info("user_logged_in")
	addFlash(c, FlashSuccess, "ログインしました！")
	h.redirect(c, next)
}

func (h *HTTPHandler) RegisterPage(c *gin.Context) {
	h.render(c, http.StatusOK, "signup.html", gin.H{"Title": "新規登録"})
}

// RegisterSubmit 重复用户名/邮箱由唯一索引在插入时发现
func (h *HTTPHandler) RegisterSubmit(c *gin.Context) {
	var req entity.AuthRegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		addFlash(c, FlashDanger, "すべての項目を入力してください")
		h.redirect(c, "/auth/register")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	user, err := h.users.Register(ctx, req)
	if err != nil {
		addFlashes(c, FlashDanger, h.userErrorMessages(err, "登録に失敗しました。入力内容を確認してください。"))
		h.render(c, http.StatusOK, "signup.html", gin.H{
			"Title":    "新規登録",
			"Username": req.Username,
			"Email":    req.Email,
		})
		return
	}

	logrus.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("user_registered")
	addFlash(c, FlashSuccess, "ユーザー登録が完了しました。ログインしてください。")
	h.redirect(c, "/auth/login")
}

func (h *HTTPHandler) Logout(c *gin.Context) {
	h.clearSessionCookie(c)
	addFlash(c, FlashInfo, "ログアウトしました")
	h.redirect(c, "/auth/login")
}

// userErrorMessages 把服务层错误转换为可展示的消息
func (h *HTTPHandler) userErrorMessages(err error, fallback string) []string {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Messages
	case errors.Is(err, service.ErrUsernameTaken),
		errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrAddressNotFound):
		return []string{err.Error()}
	default:
		logrus.WithError(err).Error("user operation failed")
		return []string{fallback}
	}
}

// respondUserError JSON 接口的服务层错误
func respondUserError(c *gin.Context, err error, fallback string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		ErrorResponseWithDetails(c, http.StatusBadRequest, ErrCodeValidation, verr.Messages[0], gin.H{"messages": verr.Messages})
	case errors.Is(err, service.ErrUsernameTaken):
		ErrorResponse(c, http.StatusConflict, ErrCodeUsernameExists, err.Error())
	case errors.Is(err, service.ErrEmailTaken):
		ErrorResponse(c, http.StatusConflict, ErrCodeEmailExists, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		NotFound(c, ErrCodeUserNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		ErrorResponse(c, http.StatusUnauthorized, ErrCodeInvalidCredentials, err.Error())
	case errors.Is(err, service.ErrUserDisabled):
		ErrorResponse(c, http.StatusForbidden, ErrCodeUserDisabled, err.Error())
	default:
		logrus.WithError(err).Error(fallback)
		InternalError(c, fallback)
	}
}

func (h *HTTPHandler) APIRegister(c *gin.Context) {
	var req entity.AuthRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	user, err := h.users.Register(ctx, req)
	if err != nil {
		respondUserError(c, err, "failed to register user")
		return
	}

	token, expiresAt, err := h.authManager.Issue(user)
	if err != nil {
		logrus.WithError(err).Error("failed to create token for user")
		InternalError(c, "failed to create session")
		return
	}

	c.JSON(http.StatusCreated, entity.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      makeUserSummary(user),
	})
}

func (h *HTTPHandler) APILogin(c *gin.Context) {
	var req entity.AuthLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		MissingField(c, "username")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	user, err := h.users.Login(ctx, req.Username, req.Password)
	if err != nil {
		respondUserError(c, err, "failed to process login")
		return
	}

	token, expiresAt, err := h.authManager.Issue(user)
	if err != nil {
		logrus.WithError(err).Error("failed to generate token")
		InternalError(c, "failed to create session")
		return
	}

	c.JSON(http.StatusOK, entity.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      makeUserSummary(user),
	})
}

func (h *HTTPHandler) Me(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbUser, err := h.users.GetByID(ctx, user.ID)
	if err != nil {
		respondUserError(c, err, "failed to load profile")
		return
	}

	c.JSON(http.StatusOK, makeUserSummary(dbUser))
}

func makeUserSummary(user *entity.DbUser) entity.UserSummary {
	if user == nil {
		return entity.UserSummary{}
	}
	return entity.UserSummary{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		Role:         user.Role,
		IsAdmin:      user.IsAdmin,
		IsActive:     user.IsActive,
		Organization: user.Organization,
		LastLogin:    user.LastLogin,
		AccessCount:  user.AccessCount,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}
