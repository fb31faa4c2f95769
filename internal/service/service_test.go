package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"portal/internal/auth"
	"portal/internal/detector"
	"portal/internal/entity"
	"portal/internal/model"
	"portal/internal/model/sql"
	"portal/internal/storage"
	"portal/internal/validators"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
)

func newTestRepo(t *testing.T) model.Repository {
	t.Helper()
	db, err := model.OpenGormDB(sqlite.Open(filepath.Join(t.TempDir(), "portal.db")))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, model.MigrateSchema(db))
	return sql.NewGormRepository(db)
}

func registerReq(username, email string) entity.AuthRegisterRequest {
	return entity.AuthRegisterRequest{Username: username, Email: email, Password: "password1", PasswordConfirm: "password1"}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewUserService(newTestRepo(t), nil)
	tests := []struct {
		name string
		req  entity.AuthRegisterRequest
	}{
		{"用户名过短", registerReq("ab", "a@example.com")},
		{"邮箱格式错误", registerReq("alice", "not-an-email")},
		{"密码过短", entity.AuthRegisterRequest{Username: "alice", Email: "a@example.com", Password: "short", PasswordConfirm: "short"}},
		{"两次密码不一致", entity.AuthRegisterRequest{Username: "alice", Email: "a@example.com", Password: "password1", PasswordConfirm: "password2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.req)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.NotEmpty(t, verr.Messages)
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(newTestRepo(t), nil)

	user, err := svc.Register(ctx, registerReq("alice", "alice@example.com"))
	require.NoError(t, err)
	assert.Equal(t, entity.UserRoleUser, user.Role)
	assert.NotEqual(t, "password1", user.PasswordHash)

	_, err = svc.Register(ctx, registerReq("alice", "other@example.com"))
	assert.ErrorIs(t, err, ErrUsernameTaken)
	_, err = svc.Register(ctx, registerReq("bob", "alice@example.com"))
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterEmailCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(newTestRepo(t), nil)

	alice, err := svc.Register(ctx, registerReq("alice", " Alice@Example.com "))
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", alice.Email)

	_, err = svc.Register(ctx, registerReq("bob", "ALICE@example.com"))
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.CreateByAdmin(ctx, entity.UserCreateRequest{
		Username: "carol", Email: "ALICE@EXAMPLE.COM", Password: "secret", PasswordConfirm: "secret",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)

	users, _, err := svc.List(ctx, &entity.UserQuery{})
	require.NoError(t, err)
	assert.Len(t, users, 1)

	// 修改成大小写不同的同一邮箱仍视为本人
	mixed := "ALICE@example.COM"
	updated, err := svc.Update(ctx, alice.ID, entity.UserUpdateRequest{Email: &mixed}, validators.AdminPasswordMinLength)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", updated.Email)
}

func TestRegisterConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := NewUserService(repo, nil)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Register(ctx, registerReq("racer", "racer@example.com"))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrUsernameTaken)
	}
	assert.Equal(t, 1, succeeded)
	count, err := repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := NewUserService(repo, nil)
	user, err := svc.Register(ctx, registerReq("alice", "alice@example.com"))
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	got, err := svc.Login(ctx, "alice", "password1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	stored, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.AccessCount)
	assert.Equal(t, 0, stored.LoginAttempts)

	inactive := false
	_, err = svc.Update(ctx, user.ID, entity.UserUpdateRequest{IsActive: &inactive}, validators.AdminPasswordMinLength)
	require.NoError(t, err)
	_, err = svc.Login(ctx, "alice", "password1")
	assert.ErrorIs(t, err, ErrUserDisabled)
}

func TestAdminCreateAndUpdate(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(newTestRepo(t), nil)

	admin, err := svc.CreateByAdmin(ctx, entity.UserCreateRequest{
		Username: "root", Email: "root@example.com", Password: "secret", PasswordConfirm: "secret", IsAdmin: true,
	})
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)
	assert.Equal(t, entity.UserRoleAdmin, admin.Role)

	other, err := svc.CreateByAdmin(ctx, entity.UserCreateRequest{
		Username: "other", Email: "other@example.com", Password: "secret", PasswordConfirm: "secret",
	})
	require.NoError(t, err)

	_, err = svc.CreateByAdmin(ctx, entity.UserCreateRequest{
		Username: "root", Email: "x@example.com", Password: "secret", PasswordConfirm: "secret",
	})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	// 保留自己的用户名不算冲突
	same := "root"
	_, err = svc.Update(ctx, admin.ID, entity.UserUpdateRequest{Username: &same}, validators.AdminPasswordMinLength)
	require.NoError(t, err)

	taken := "other@example.com"
	_, err = svc.Update(ctx, admin.ID, entity.UserUpdateRequest{Email: &taken}, validators.AdminPasswordMinLength)
	assert.ErrorIs(t, err, ErrEmailTaken)

	pw, confirm := "newsecret", "mismatch"
	_, err = svc.Update(ctx, other.ID, entity.UserUpdateRequest{Password: &pw, PasswordConfirm: &confirm}, validators.AdminPasswordMinLength)
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))

	confirm = pw
	_, err = svc.Update(ctx, other.ID, entity.UserUpdateRequest{Password: &pw, PasswordConfirm: &confirm}, validators.AdminPasswordMinLength)
	require.NoError(t, err)
	_, err = svc.Login(ctx, "other", "newsecret")
	assert.NoError(t, err)

	_, err = svc.Update(ctx, 9999, entity.UserUpdateRequest{Username: &same}, validators.AdminPasswordMinLength)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func newImageService(t *testing.T, repo model.Repository) (*ImageService, *storage.LocalStorage, *time.Time) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	handle := detector.NewHandle("yolov8n", nil, detector.NewFallback(rand.New(rand.NewPCG(1, 2))), nil)
	svc := NewImageService(repo, store, handle, nil)

	clock := time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)
	now := func() time.Time { return clock }
	svc.now = now
	svc.sidecars = detector.NewSidecarStore(store).WithClock(now)
	return svc, store, &clock
}

func createTestUser(t *testing.T, repo model.Repository, name string) *entity.DbUser {
	t.Helper()
	user, err := NewUserService(repo, nil).Register(context.Background(), registerReq(name, name+"@example.com"))
	require.NoError(t, err)
	return user
}

func TestImageDetectCaching(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	owner := createTestUser(t, repo, "owner")
	svc, store, clock := newImageService(t, repo)

	image, err := svc.Upload(ctx, owner.ID, &validators.UploadedImage{
		OriginalFilename: "cat.png", Extension: "png", ContentType: "image/png", Data: pngHeader,
	})
	require.NoError(t, err)
	assert.Regexp(t, `^20250102_150405_[0-9a-f]{8}\.png$`, image.Filename)

	_, first, err := svc.Detect(ctx, image.ID, owner.ID, false)
	require.NoError(t, err)
	assert.True(t, first.Fallback)
	assert.Equal(t, "2025-01-02T15:04:05Z", first.UpdatedAt)
	assert.Equal(t, len(first.Results), first.Count)

	exists, err := store.Exists(ctx, image.ImagePath+".det.json")
	require.NoError(t, err)
	assert.True(t, exists)

	// 再次 GET：结果不变
	*clock = clock.Add(time.Minute)
	_, second, err := svc.Detect(ctx, image.ID, owner.ID, false)
	require.NoError(t, err)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)

	// POST：强制重新检测
	_, third, err := svc.Detect(ctx, image.ID, owner.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-02T15:05:05Z", third.UpdatedAt)

	_, stored, err := svc.Results(ctx, image.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, third.UpdatedAt, stored.UpdatedAt)
}

func TestImageOwnerScoped(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	owner := createTestUser(t, repo, "owner")
	stranger := createTestUser(t, repo, "stranger")
	svc, _, _ := newImageService(t, repo)

	image, err := svc.Upload(ctx, owner.ID, &validators.UploadedImage{Extension: "png", ContentType: "image/png", Data: pngHeader})
	require.NoError(t, err)

	_, _, err = svc.Detect(ctx, image.ID, stranger.ID, false)
	assert.ErrorIs(t, err, ErrImageNotFound)
	_, _, err = svc.Open(ctx, image.Filename, stranger.ID)
	assert.ErrorIs(t, err, ErrImageNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, image.ID, stranger.ID), ErrImageNotFound)

	_, data, err := svc.Open(ctx, "../../"+image.Filename, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)

	_, _, err = svc.Results(ctx, image.ID, owner.ID)
	assert.ErrorIs(t, err, detector.ErrNoResults)
}

func TestImageDeleteWithMissingFile(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	owner := createTestUser(t, repo, "owner")
	svc, store, _ := newImageService(t, repo)

	kept, err := svc.Upload(ctx, owner.ID, &validators.UploadedImage{Extension: "png", ContentType: "image/png", Data: pngHeader})
	require.NoError(t, err)
	gone, err := svc.Upload(ctx, owner.ID, &validators.UploadedImage{Extension: "jpg", ContentType: "image/jpeg", Data: pngHeader})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, gone.ImagePath))
	_, _, err = svc.Detect(ctx, gone.ID, owner.ID, false)
	assert.ErrorIs(t, err, ErrImageFileMissing)

	require.NoError(t, svc.Delete(ctx, gone.ID, owner.ID))

	items, err := svc.List(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, kept.ID, items[0].Image.ID)
	assert.False(t, items[0].Detected)

	_, err = svc.Get(ctx, gone.ID, owner.ID)
	assert.ErrorIs(t, err, ErrImageNotFound)
}

func TestDeleteUserRemovesFiles(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	owner := createTestUser(t, repo, "owner")
	images, store, _ := newImageService(t, repo)
	users := NewUserService(repo, images)

	image, err := images.Upload(ctx, owner.ID, &validators.UploadedImage{Extension: "png", ContentType: "image/png", Data: pngHeader})
	require.NoError(t, err)
	_, _, err = images.Detect(ctx, image.ID, owner.ID, false)
	require.NoError(t, err)

	require.NoError(t, users.Delete(ctx, owner.ID))
	for _, key := range []string{image.ImagePath, image.ImagePath + ".det.json"} {
		exists, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, exists, key)
	}
	assert.ErrorIs(t, users.Delete(ctx, owner.ID), ErrUserNotFound)
}

func TestAddressService(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	owner := createTestUser(t, repo, "owner")
	svc := NewAddressService(repo)

	_, err := svc.Add(ctx, owner.ID, entity.AddressForm{Name: " "})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))

	home, err := svc.Add(ctx, owner.ID, entity.AddressForm{Name: "自宅", City: "東京", IsDefault: true})
	require.NoError(t, err)
	office, err := svc.Add(ctx, owner.ID, entity.AddressForm{Name: "会社"})
	require.NoError(t, err)

	require.NoError(t, svc.Edit(ctx, owner.ID, entity.AddressForm{AddressID: office.ID, Name: "本社", IsDefault: true}))
	list, err := svc.List(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, office.ID, list[0].ID)
	assert.Equal(t, "本社", list[0].Name)
	assert.False(t, list[1].IsDefault)

	assert.ErrorIs(t, svc.Delete(ctx, home.ID, owner.ID+100), ErrAddressNotFound)
	require.NoError(t, svc.Delete(ctx, home.ID, owner.ID))
	_, err = svc.Get(ctx, home.ID, owner.ID)
	assert.ErrorIs(t, err, ErrAddressNotFound)
}

func TestLoginUpgradesHash(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := NewUserService(repo, nil)

	require.NoError(t, auth.SetPasswordCost(bcrypt.MinCost))
	t.Cleanup(func() { _ = auth.SetPasswordCost(bcrypt.DefaultCost) })
	user, err := svc.Register(ctx, registerReq("alice", "alice@example.com"))
	require.NoError(t, err)
	old := user.PasswordHash

	require.NoError(t, auth.SetPasswordCost(bcrypt.MinCost+1))
	_, err = svc.Login(ctx, "alice", "password1")
	require.NoError(t, err)

	stored, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, old, stored.PasswordHash)
	assert.False(t, auth.NeedsRehash(stored.PasswordHash))
	assert.NoError(t, auth.VerifyPassword(stored.PasswordHash, "password1"))
}
