package model

import (
	"context"
	"errors"
	"fmt"
	"portal/internal/auth"
	"portal/internal/config"
	"portal/internal/entity"
	"strings"

	"gorm.io/gorm"
)

// AdminSeed 初始管理员账号
type AdminSeed struct {
	Username string
	Email    string
	Password string
}

// AdminSeedFromConfig 读取 ADMIN_* 配置；用户名为空时返回 false
func AdminSeedFromConfig(cfg config.Config) (AdminSeed, bool) {
	seed := AdminSeed{
		Username: strings.TrimSpace(cfg.AdminUsername),
		Email:    strings.TrimSpace(cfg.AdminEmail),
		Password: cfg.AdminPassword,
	}
	return seed, seed.Username != ""
}

// SeedAdmin ensures an admin account exists. An existing user with the same
// username is promoted instead of recreated; created reports whether a new
// row was inserted.
func SeedAdmin(ctx context.Context, repo Repository, seed AdminSeed) (created bool, err error) {
	if repo == nil {
		return false, nil
	}
	if seed.Username == "" || seed.Email == "" || seed.Password == "" {
		return false, fmt.Errorf("admin seed requires username, email and password")
	}

	existing, err := repo.GetUserByUsername(ctx, seed.Username)
	switch {
	case err == nil:
		if existing.IsAdmin {
			return false, nil
		}
		isAdmin := true
		return false, repo.UpdateUser(ctx, existing.ID, entity.UserUpdates{IsAdmin: &isAdmin})
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return false, err
	}

	hash, err := auth.HashPassword(seed.Password)
	if err != nil {
		return false, err
	}
	user := &entity.DbUser{
		Username:     seed.Username,
		Email:        seed.Email,
		PasswordHash: hash,
		Role:         entity.UserRoleAdmin,
		IsAdmin:      true,
		IsActive:     true,
		Status:       entity.UserStatusActive,
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		return false, err
	}
	return true, nil
}
