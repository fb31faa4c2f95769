package service

import (
	"context"
	"errors"
	"fmt"
	"portal/internal/auth"
	"portal/internal/entity"
	"portal/internal/model"
	"portal/internal/validators"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// UserService 用户注册、登录、管理
type UserService struct {
	repo   model.Repository
	images *ImageService
}

// NewUserService images 用于删除用户时清理其上传文件，可为 nil
func NewUserService(repo model.Repository, images *ImageService) *UserService {
	return &UserService{repo: repo, images: images}
}

// Register creates a regular user. Duplicates are detected only by the
// unique indexes at insert time; the conflicting field is then found by
// re-querying.
func (s *UserService) Register(ctx context.Context, req entity.AuthRegisterRequest) (*entity.DbUser, error) {
	username := strings.TrimSpace(req.Username)
	email := normalizeEmail(req.Email)
	if err := validation(validators.Collect(
		validators.UsernameValidator(username),
		validators.EmailValidator(email),
		validators.PasswordValidator(req.Password, validators.RegisterPasswordMinLength, &req.PasswordConfirm),
	)); err != nil {
		return nil, err
	}

	user, err := s.newUser(username, email, req.Password, "", false, true)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, s.translateCreateError(ctx, err, username, email)
	}
	return user, nil
}

// CreateByAdmin 管理员添加用户，密码最少 6 位
func (s *UserService) CreateByAdmin(ctx context.Context, req entity.UserCreateRequest) (*entity.DbUser, error) {
	username := strings.TrimSpace(req.Username)
	email := normalizeEmail(req.Email)
	if err := validation(validators.Collect(
		validators.UsernameValidator(username),
		validators.EmailValidator(email),
		validators.PasswordValidator(req.Password, validators.AdminPasswordMinLength, &req.PasswordConfirm),
	)); err != nil {
		return nil, err
	}

	if err := s.checkConflicts(ctx, username, email, 0); err != nil {
		return nil, err
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	user, err := s.newUser(username, email, req.Password, req.Organization, req.IsAdmin, active)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, s.translateCreateError(ctx, err, username, email)
	}
	return user, nil
}

// Update applies the non-nil fields. Uniqueness is checked excluding the
// edited row; a password change requires the confirmation to match.
func (s *UserService) Update(ctx context.Context, id uint, req entity.UserUpdateRequest, minPasswordLength int) (*entity.DbUser, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}

	var updates entity.UserUpdates
	var checks []error
	var username, email string
	if req.Username != nil {
		username = strings.TrimSpace(*req.Username)
		checks = append(checks, validators.UsernameValidator(username))
		updates.Username = &username
	}
	if req.Email != nil {
		email = normalizeEmail(*req.Email)
		checks = append(checks, validators.EmailValidator(email))
		updates.Email = &email
	}
	if req.Password != nil && *req.Password != "" {
		checks = append(checks, validators.PasswordValidator(*req.Password, minPasswordLength, req.PasswordConfirm))
	}
	if err := validation(validators.Collect(checks...)); err != nil {
		return nil, err
	}

	if err := s.checkConflicts(ctx, username, email, id); err != nil {
		return nil, err
	}

	if req.Password != nil && *req.Password != "" {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		updates.PasswordHash = &hash
	}
	if req.Organization != nil {
		org := strings.TrimSpace(*req.Organization)
		updates.Organization = &org
	}
	updates.IsAdmin = req.IsAdmin
	updates.IsActive = req.IsActive

	if err := s.repo.UpdateUser(ctx, id, updates); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, s.resolveConflict(ctx, username, email, id)
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// Delete removes the user, their addresses and image rows in one
// transaction; stored files are removed afterwards, best effort.
func (s *UserService) Delete(ctx context.Context, id uint) error {
	images, err := s.repo.DeleteUser(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if s.images != nil {
		for idx := range images {
			s.images.removeFiles(ctx, &images[idx])
		}
	}
	return nil
}

// Login 校验用户名和密码，并记录登录结果
func (s *UserService) Login(ctx context.Context, username, password string) (*entity.DbUser, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := auth.VerifyPassword(user.PasswordHash, password); err != nil {
		if recErr := s.repo.RecordFailedLogin(ctx, user.ID); recErr != nil {
			logrus.WithError(recErr).WithField("user_id", user.ID).Warn("failed to record login attempt")
		}
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}
	if err := s.repo.RecordLogin(ctx, user.ID); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("failed to record login")
	}
	s.upgradeHash(ctx, user, password)
	return user, nil
}

// upgradeHash 密码哈希 cost 落后于当前设置时用刚验证过的明文重新哈希；失败只记日志
func (s *UserService) upgradeHash(ctx context.Context, user *entity.DbUser, password string) {
	if !auth.NeedsRehash(user.PasswordHash) {
		return
	}
	hash, err := auth.HashPassword(password)
	if err == nil {
		err = s.repo.UpdateUser(ctx, user.ID, entity.UserUpdates{PasswordHash: &hash})
	}
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("failed to upgrade password hash")
		return
	}
	user.PasswordHash = hash
}

func (s *UserService) GetByID(ctx context.Context, id uint) (*entity.DbUser, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, query *entity.UserQuery) ([]entity.DbUser, *entity.Meta, error) {
	return s.repo.ListUsers(ctx, query)
}

func (s *UserService) newUser(username, email, password, organization string, isAdmin, active bool) (*entity.DbUser, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	role := entity.UserRoleUser
	if isAdmin {
		role = entity.UserRoleAdmin
	}
	status := entity.UserStatusActive
	if !active {
		status = entity.UserStatusInactive
	}
	return &entity.DbUser{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsAdmin:      isAdmin,
		IsActive:     active,
		Organization: strings.TrimSpace(organization),
		Status:       status,
	}, nil
}

func (s *UserService) checkConflicts(ctx context.Context, username, email string, excludeID uint) error {
	usernameTaken, emailTaken, err := s.repo.FindUserConflicts(ctx, username, email, excludeID)
	if err != nil {
		return err
	}
	switch {
	case usernameTaken:
		return ErrUsernameTaken
	case emailTaken:
		return ErrEmailTaken
	}
	return nil
}

func (s *UserService) translateCreateError(ctx context.Context, err error, username, email string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return s.resolveConflict(ctx, username, email, 0)
	}
	return err
}

// resolveConflict 唯一约束冲突后重新查询，判断是用户名还是邮箱重复
func (s *UserService) resolveConflict(ctx context.Context, username, email string, excludeID uint) error {
	if err := s.checkConflicts(ctx, username, email, excludeID); err != nil {
		return err
	}
	// 冲突行已被删除，仍按用户名重复处理
	return ErrUsernameTaken
}

// normalizeEmail 邮箱统一小写存储，唯一索引按小写生效
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
