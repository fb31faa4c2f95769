package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"portal/internal/auth"
	"portal/internal/entity"
	"portal/internal/service"
	"portal/internal/validators"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const accountPath = "/crud/account"

// Product 演示商品
type Product struct {
	ID          uint
	Name        string
	Spec        string
	Price       string
	Description string
	Stock       int
}

var demoProducts = []Product{
	{ID: 1, Name: "Mac", Spec: "Core i5", Price: "¥100000", Description: "Macの説明", Stock: 10},
	{ID: 2, Name: "MacBook Pro", Spec: "Core M4", Price: "¥100000", Description: "MacBook Proの説明", Stock: 10},
	{ID: 3, Name: "本格将棋盤", Spec: "本榧材", Price: "¥50000", Description: "本格的な将棋盤。本榧材を使用した高級品です。", Stock: 5},
	{ID: 4, Name: "高級駒セット", Spec: "本格駒", Price: "¥15000", Description: "本格的な将棋駒セット。職人による手作り駒です。", Stock: 8},
}

func findProduct(id uint) (Product, bool) {
	for _, p := range demoProducts {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

func (h *HTTPHandler) CrudIndex(c *gin.Context) {
	h.redirect(c, accountPath)
}

func (h *HTTPHandler) ProductPage(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.NotFound(c)
		return
	}
	product, ok := findProduct(id)
	if !ok {
		h.NotFound(c)
		return
	}
	h.render(c, http.StatusOK, "crud_product.html", gin.H{
		"Title":    product.Name,
		"Product":  product,
		"Products": demoProducts,
	})
}

func (h *HTTPHandler) AccountPage(c *gin.Context) {
	current := CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	user, err := h.users.GetByID(ctx, current.ID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", current.ID).Error("failed to load account")
		addFlash(c, FlashDanger, "アカウントページの読み込み中にエラーが発生しました")
		h.redirect(c, "/")
		return
	}
	addresses, err := h.addresses.List(ctx, current.ID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", current.ID).Warn("failed to load addresses")
		addFlash(c, FlashWarning, "住所の読み込みに失敗しました")
	}
	h.render(c, http.StatusOK, "crud_account.html", gin.H{
		"Title":     "アカウント設定",
		"User":      user,
		"Addresses": addresses,
	})
}

// AccountSubmit action=update|delete，作用于当前用户本人
func (h *HTTPHandler) AccountSubmit(c *gin.Context) {
	current := CurrentUser(c)
	resource := auth.Resource{Kind: auth.ResourceAccount, ID: current.ID, OwnerID: current.ID}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	switch c.PostForm("action") {
	case "update":
		if err := auth.Authorize(current.Subject(), resource, auth.ActionUpdate); err != nil {
			h.renderError(c, http.StatusForbidden, "")
			return
		}
		username := c.PostForm("username")
		email := c.PostForm("email")
		if username == "" || email == "" {
			addFlash(c, FlashDanger, "ユーザー名とメールアドレスは必須です")
			break
		}
		req := entity.UserUpdateRequest{Username: &username, Email: &email}
		if password := c.PostForm("password"); password != "" {
			confirm := c.PostForm("password_confirm")
			req.Password = &password
			req.PasswordConfirm = &confirm
		}
		if _, err := h.users.Update(ctx, current.ID, req, validators.RegisterPasswordMinLength); err != nil {
			addFlashes(c, FlashDanger, h.userErrorMessages(err, "アカウントの更新中にエラーが発生しました"))
			break
		}
		logrus.WithField("user_id", current.ID).Info("account_updated")
		addFlash(c, FlashSuccess, "アカウント情報を更新しました")

	case "delete":
		if err := auth.Authorize(current.Subject(), resource, auth.ActionDelete); err != nil {
			h.renderError(c, http.StatusForbidden, "")
			return
		}
		if err := h.users.Delete(ctx, current.ID); err != nil {
			addFlashes(c, FlashDanger, h.userErrorMessages(err, "アカウントの削除中にエラーが発生しました"))
			break
		}
		logrus.WithFields(logrus.Fields{"user_id": current.ID, "username": current.Username}).Warn("account_deleted")
		h.clearSessionCookie(c)
		addFlash(c, FlashSuccess, "アカウントを削除しました。ご利用ありがとうございました。")
		h.redirect(c, "/auth/login")
		return

	default:
		addFlash(c, FlashDanger, "無効な操作です")
	}
	h.redirect(c, accountPath)
}

// AddressesSubmit action=add|edit|delete|default；他人的地址按不存在处理
func (h *HTTPHandler) AddressesSubmit(c *gin.Context) {
	current := CurrentUser(c)
	subject := current.Subject()

	var form entity.AddressForm
	if err := c.ShouldBind(&form); err != nil {
		addFlash(c, FlashDanger, "入力内容が正しくありません")
		h.redirect(c, accountPath)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	action := c.PostForm("action")
	if action == "add" {
		if err := auth.Authorize(subject, auth.Resource{Kind: auth.ResourceAddress}, auth.ActionCreate); err != nil {
			h.renderError(c, http.StatusForbidden, "")
			return
		}
		if _, err := h.addresses.Add(ctx, current.ID, form); err != nil {
			addFlashes(c, FlashDanger, h.userErrorMessages(err, "住所の追加中にエラーが発生しました"))
		} else {
			addFlash(c, FlashSuccess, "住所を追加しました")
		}
		h.redirect(c, accountPath)
		return
	}

	address, err := h.addresses.Get(ctx, form.AddressID, current.ID)
	if err == nil {
		err = auth.Authorize(subject, auth.Resource{Kind: auth.ResourceAddress, ID: address.ID, OwnerID: address.UserID}, addressAction(action))
	}
	if err != nil {
		if errors.Is(err, service.ErrAddressNotFound) || errors.Is(err, auth.ErrForbidden) {
			addFlash(c, FlashDanger, service.ErrAddressNotFound.Error())
		} else {
			addFlashes(c, FlashDanger, h.userErrorMessages(err, "住所の読み込みに失敗しました"))
		}
		h.redirect(c, accountPath)
		return
	}

	switch action {
	case "edit":
		err = h.addresses.Edit(ctx, current.ID, form)
		if err == nil {
			addFlash(c, FlashSuccess, "住所を更新しました")
		}
	case "delete":
		err = h.addresses.Delete(ctx, address.ID, current.ID)
		if err == nil {
			addFlash(c, FlashSuccess, "住所を削除しました")
		}
	case "default":
		err = h.addresses.SetDefault(ctx, address.ID, current.ID)
		if err == nil {
			addFlash(c, FlashSuccess, "既定の住所を変更しました")
		}
	default:
		addFlash(c, FlashDanger, "無効な操作です")
	}
	if err != nil {
		addFlashes(c, FlashDanger, h.userErrorMessages(err, "住所の更新中にエラーが発生しました"))
	}
	h.redirect(c, accountPath)
}

func addressAction(action string) auth.Action {
	switch action {
	case "edit", "default":
		return auth.ActionUpdate
	case "delete":
		return auth.ActionDelete
	default:
		return auth.ActionRead
	}
}
