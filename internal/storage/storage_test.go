package storage

import (
	"regexp"
	"testing"

	"portal/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	dated := regexp.MustCompile(`^uploads/\d{4}/\d{2}/\d{2}/cat-photo_01\.png$`)
	assert.Regexp(t, dated, objectKey(SaveOptions{Category: "Uploads", BaseName: " Cat Photo_01 ", Extension: ".PNG"}))

	assert.Regexp(t, `^misc/\d{4}/\d{2}/\d{2}/\d+\.bin$`, objectKey(SaveOptions{Category: "../..", BaseName: "日本語"}))
}

func TestWithPrefix(t *testing.T) {
	assert.Equal(t, "a/b.png", withPrefix("", "/a/b.png"))
	assert.Equal(t, "portal/a/b.png", withPrefix(" /portal/ ", "a/b.png"))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "application/json", contentTypeFor("uploads/a.png.det.json", ""))
	assert.Equal(t, "image/png", contentTypeFor("uploads/A.PNG", ""))
	assert.Equal(t, "image/webp", contentTypeFor("uploads/a.png", "image/webp"))
	assert.Equal(t, "application/octet-stream", contentTypeFor("uploads/noext", ""))
}

func TestR2TargetFromConfig(t *testing.T) {
	_, err := r2TargetFromConfig(config.Config{StorageR2Bucket: "b"})
	assert.Error(t, err)

	target, err := r2TargetFromConfig(config.Config{
		StorageR2Bucket:    "images",
		StorageR2AccountID: "acc123",
		StorageR2Prefix:    "/detector/",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://acc123.r2.cloudflarestorage.com", target.client.Endpoint)
	assert.Equal(t, "auto", target.client.Region)
	assert.True(t, target.client.ForcePathStyle)
	assert.Equal(t, "detector", target.prefix)
}

func TestNewStorage(t *testing.T) {
	s, err := NewStorage(config.Config{StorageLocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = NewStorage(config.Config{StorageType: "ftp"})
	assert.ErrorContains(t, err, "unsupported type")

	_, err = NewStorage(config.Config{StorageType: "S3", StorageS3Region: "us-east-1"})
	assert.ErrorContains(t, err, "missing S3 bucket")

	assert.Equal(t, []string{"cos", "local", "oss", "r2", "s3"}, Backends())
}
