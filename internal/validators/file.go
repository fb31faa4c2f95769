package validators

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrNoFile              = errors.New("ファイルが選択されていません")
	ErrFileTooLarge        = errors.New("ファイルサイズが大きすぎます")
	ErrFileNameTooLong     = errors.New("ファイル名が長すぎます")
	ErrFileTypeUnsupported = errors.New("対応していないファイル形式です。PNG、JPG、JPEG、GIF、BMP、WEBPファイルをアップロードしてください。")
)

const maxFileNameSize = 255

// AllowedImageExtensions 检测功能接受的图片扩展名
var AllowedImageExtensions = map[string]struct{}{
	"png": {}, "jpg": {}, "jpeg": {}, "gif": {}, "bmp": {}, "webp": {}, "jfif": {},
}

// ImageExtension 返回小写扩展名（不含点），不在白名单内时返回空串
func ImageExtension(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(strings.TrimSpace(filename)), "."))
	if _, ok := AllowedImageExtensions[ext]; !ok {
		return ""
	}
	return ext
}

// UploadedImage 通过校验的上传内容
type UploadedImage struct {
	OriginalFilename string
	Extension        string
	ContentType      string
	Data             []byte
}

// ImageFileValidator checks the declared name against the extension
// allow-list, then sniffs the actual bytes so a renamed non-image is
// rejected. It returns the HTTP status to use on failure.
func ImageFileValidator(fh *multipart.FileHeader, maxSize int64) (int, *UploadedImage, error) {
	if fh == nil || strings.TrimSpace(fh.Filename) == "" {
		return http.StatusBadRequest, nil, ErrNoFile
	}

	if len(fh.Filename) > maxFileNameSize {
		return http.StatusBadRequest, nil, ErrFileNameTooLong
	}

	ext := ImageExtension(fh.Filename)
	if ext == "" {
		return http.StatusBadRequest, nil, ErrFileTypeUnsupported
	}

	if maxSize > 0 && fh.Size > maxSize {
		return http.StatusRequestEntityTooLarge, nil, ErrFileTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return http.StatusInternalServerError, nil, err
	}
	defer f.Close()

	var reader io.Reader = f
	if maxSize > 0 {
		reader = io.LimitReader(f, maxSize+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return http.StatusInternalServerError, nil, err
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return http.StatusRequestEntityTooLarge, nil, ErrFileTooLarge
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return http.StatusBadRequest, nil, ErrFileTypeUnsupported
	}

	return 0, &UploadedImage{
		OriginalFilename: filepath.Base(strings.ReplaceAll(fh.Filename, "\\", "/")),
		Extension:        ext,
		ContentType:      mime.String(),
		Data:             data,
	}, nil
}
