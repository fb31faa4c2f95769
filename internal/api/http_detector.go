package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"portal/internal/auth"
	"portal/internal/detector"
	"portal/internal/entity"
	"portal/internal/service"
	"portal/internal/validators"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	galleryPath = "/detector/gallery"
	uploadPath  = "/detector/upload"
)

func (h *HTTPHandler) DetectorIndex(c *gin.Context) {
	h.renderGallery(c, "物体検知")
}

func (h *HTTPHandler) DetectorGallery(c *gin.Context) {
	h.renderGallery(c, "ギャラリー")
}

func (h *HTTPHandler) DetectorResults(c *gin.Context) {
	h.redirect(c, galleryPath)
}

func (h *HTTPHandler) renderGallery(c *gin.Context, title string) {
	user := CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	items, err := h.images.List(ctx, user.ID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to list images")
		addFlash(c, FlashDanger, "画像一覧の読み込みに失敗しました")
	}
	h.render(c, http.StatusOK, "detector_index.html", gin.H{
		"Title": title,
		"Items": items,
	})
}

// acceptAttr 上传表单 input 的 accept 属性
func acceptAttr() string {
	exts := make([]string, 0, len(validators.AllowedImageExtensions))
	for ext := range validators.AllowedImageExtensions {
		exts = append(exts, "."+ext)
	}
	sort.Strings(exts)
	return strings.Join(exts, ",")
}

func (h *HTTPHandler) UploadPage(c *gin.Context) {
	h.render(c, http.StatusOK, "detector_upload.html", gin.H{
		"Title":    "画像アップロード",
		"Accept":   acceptAttr(),
		"MaxBytes": h.cfg.MaxUploadBytes,
	})
}

func (h *HTTPHandler) UploadSubmit(c *gin.Context) {
	user := CurrentUser(c)
	if h.authorize(user.Subject(), auth.Resource{Kind: auth.ResourceImage}, auth.ActionCreate) != nil {
		h.renderError(c, http.StatusForbidden, "")
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		fh, err = c.FormFile("image")
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		logrus.WithFields(logrus.Fields{"user_id": user.ID, "limit": tooLarge.Limit}).Warn("rejected upload")
		addFlash(c, FlashDanger, validators.ErrFileTooLarge.Error())
		h.redirect(c, uploadPath)
		return
	}
	if err != nil {
		addFlash(c, FlashDanger, validators.ErrNoFile.Error())
		h.redirect(c, uploadPath)
		return
	}

	status, upload, err := validators.ImageFileValidator(fh, h.cfg.MaxUploadBytes)
	if err != nil {
		if status >= http.StatusInternalServerError {
			logrus.WithError(err).Error("failed to read uploaded file")
			addFlash(c, FlashDanger, "ファイルの読み込みに失敗しました")
		} else {
			logrus.WithFields(logrus.Fields{"user_id": user.ID, "filename": fh.Filename, "status": status}).Warn("rejected upload")
			addFlash(c, FlashDanger, err.Error())
		}
		h.redirect(c, uploadPath)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	image, err := h.images.Upload(ctx, user.ID, upload)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to store upload")
		addFlash(c, FlashDanger, "アップロード中にエラーが発生しました")
		h.redirect(c, uploadPath)
		return
	}

	logrus.WithFields(logrus.Fields{"user_id": user.ID, "image_id": image.ID, "filename": image.Filename}).Info("image_uploaded")
	addFlash(c, FlashSuccess, "画像をアップロードしました")
	h.redirect(c, detectPath(image.ID))
}

func detectPath(id uint) string {
	return "/detector/detect/" + strconv.FormatUint(uint64(id), 10)
}

// DetectPage GET 使用已有结果（没有时检测一次），POST 强制重新检测后跳转回 GET
func (h *HTTPHandler) DetectPage(c *gin.Context) {
	user := CurrentUser(c)
	id, ok := parseIDParam(c, "id")
	if !ok {
		addFlash(c, FlashDanger, service.ErrImageNotFound.Error())
		h.redirect(c, uploadPath)
		return
	}
	force := c.Request.Method == http.MethodPost

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.detectTimeout())
	defer cancel()

	action := auth.ActionRead
	if force {
		action = auth.ActionUpdate
	}
	if !h.canAccessImage(ctx, user, id, action) {
		addFlash(c, FlashDanger, service.ErrImageNotFound.Error())
		h.redirect(c, uploadPath)
		return
	}

	image, record, err := h.images.Detect(ctx, id, user.ID, force)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrImageNotFound):
			addFlash(c, FlashDanger, err.Error())
			h.redirect(c, uploadPath)
		case errors.Is(err, service.ErrImageFileMissing):
			addFlash(c, FlashDanger, err.Error())
			h.redirect(c, galleryPath)
		default:
			logrus.WithError(err).WithField("image_id", id).Error("detection failed")
			addFlash(c, FlashDanger, "検知処理中にエラーが発生しました")
			h.redirect(c, galleryPath)
		}
		return
	}

	if force {
		addFlash(c, FlashSuccess, "再検知しました")
		h.redirect(c, detectPath(image.ID))
		return
	}
	if record.Fallback {
		addFlash(c, FlashInfo, "検知モデルが利用できないため、サンプル結果を表示しています")
	}
	h.render(c, http.StatusOK, "detector_detect.html", gin.H{
		"Title":  "検知結果",
		"Image":  image,
		"Record": record,
	})
}

func (h *HTTPHandler) DeleteImage(c *gin.Context) {
	user := CurrentUser(c)
	id, ok := parseIDParam(c, "id")
	if !ok {
		addFlash(c, FlashDanger, service.ErrImageNotFound.Error())
		h.redirect(c, galleryPath)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if !h.canAccessImage(ctx, user, id, auth.ActionDelete) {
		addFlash(c, FlashDanger, service.ErrImageNotFound.Error())
		h.redirect(c, galleryPath)
		return
	}
	if err := h.images.Delete(ctx, id, user.ID); err != nil {
		if errors.Is(err, service.ErrImageNotFound) {
			addFlash(c, FlashDanger, err.Error())
		} else {
			logrus.WithError(err).WithField("image_id", id).Error("failed to delete image")
			addFlash(c, FlashDanger, "削除中にエラーが発生しました")
		}
		h.redirect(c, galleryPath)
		return
	}

	logrus.WithFields(logrus.Fields{"user_id": user.ID, "image_id": id}).Info("image_deleted")
	addFlash(c, FlashSuccess, "画像を削除しました")
	h.redirect(c, galleryPath)
}

// ServeUpload 只返回当前用户自己的图片，其余一律裸 404
func (h *HTTPHandler) ServeUpload(c *gin.Context) {
	user := CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	image, data, err := h.images.Open(ctx, c.Param("filename"), user.ID)
	if err != nil {
		if !errors.Is(err, service.ErrImageNotFound) && !errors.Is(err, service.ErrImageFileMissing) {
			logrus.WithError(err).WithField("filename", c.Param("filename")).Error("failed to open image")
		}
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	if h.authorize(user.Subject(), imageResource(image), auth.ActionRead) != nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	contentType := image.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, contentType, data)
}

func (h *HTTPHandler) APIDetect(c *gin.Context) {
	user := CurrentUser(c)
	var req entity.DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ImageID == 0 {
		MissingField(c, "image_id")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.detectTimeout())
	defer cancel()

	if !h.canAccessImage(ctx, user, req.ImageID, auth.ActionUpdate) {
		NotFound(c, ErrCodeImageNotFound, "image not found")
		return
	}
	image, record, err := h.images.Detect(ctx, req.ImageID, user.ID, true)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrImageNotFound):
			NotFound(c, ErrCodeImageNotFound, "image not found")
		case errors.Is(err, service.ErrImageFileMissing):
			NotFound(c, ErrCodeImageNotFound, "image file not found")
		default:
			logrus.WithError(err).WithField("image_id", req.ImageID).Error("detection failed")
			InternalError(c, "detection failed")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"image_id":        image.ID,
		"filename":        image.Filename,
		"results":         record.Results,
		"detection_count": record.Count,
		"updated_at":      record.UpdatedAt,
		"model":           record.Model,
		"fallback":        record.Fallback,
	})
}

func (h *HTTPHandler) APIResults(c *gin.Context) {
	user := CurrentUser(c)
	id, ok := parseIDParam(c, "id")
	if !ok {
		BadRequest(c, ErrCodeInvalidRequest, "invalid image id")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if !h.canAccessImage(ctx, user, id, auth.ActionRead) {
		NotFound(c, ErrCodeImageNotFound, "image not found")
		return
	}
	_, record, err := h.images.Results(ctx, id, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrImageNotFound):
			NotFound(c, ErrCodeImageNotFound, "image not found")
		case errors.Is(err, detector.ErrNoResults):
			NotFound(c, ErrCodeNoResults, "no detection results")
		default:
			logrus.WithError(err).WithField("image_id", id).Error("failed to load results")
			InternalError(c, "failed to load results")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"image_filename": record.ImageFilename,
		"updated_at":     record.UpdatedAt,
		"model":          record.Model,
		"fallback":       record.Fallback,
		"results":        record.Results,
		"count":          record.Count,
	})
}

// canAccessImage 图片存在且授权策略允许；不区分“不存在”和“不属于你”
func (h *HTTPHandler) canAccessImage(ctx context.Context, user *RequestUser, id uint, action auth.Action) bool {
	image, err := h.images.Get(ctx, id, user.ID)
	if err != nil {
		if !errors.Is(err, service.ErrImageNotFound) {
			logrus.WithError(err).WithField("image_id", id).Error("failed to load image")
		}
		return false
	}
	if err := h.authorize(user.Subject(), imageResource(image), action); err != nil {
		logrus.WithFields(logrus.Fields{"user_id": user.ID, "image_id": id, "action": action}).Warn("image_access_denied")
		return false
	}
	return true
}

func imageResource(image *entity.DbUserImage) auth.Resource {
	return auth.Resource{Kind: auth.ResourceImage, ID: image.ID, OwnerID: image.UserID}
}

func (h *HTTPHandler) detectTimeout() time.Duration {
	if h.cfg.DetectorTimeout > 0 {
		return h.cfg.DetectorTimeout
	}
	return 30 * time.Second
}
