package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func respond(fn func(c *gin.Context)) (*httptest.ResponseRecorder, APIError) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	fn(c)
	var body APIError
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name   string
		fn     func(c *gin.Context)
		status int
		code   string
	}{
		{"bad request", func(c *gin.Context) { BadRequest(c, ErrCodeInvalidMove, "bad move") }, http.StatusBadRequest, ErrCodeInvalidMove},
		{"unauthorized", func(c *gin.Context) { Unauthorized(c, "login") }, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"forbidden", func(c *gin.Context) { Forbidden(c, "no") }, http.StatusForbidden, ErrCodeForbidden},
		{"kifu not found", func(c *gin.Context) { NotFound(c, ErrCodeKifuNotFound, "棋譜が見つかりません") }, http.StatusNotFound, ErrCodeKifuNotFound},
		{"internal", func(c *gin.Context) { InternalError(c, "boom") }, http.StatusInternalServerError, ErrCodeInternalError},
		{"too many", TooManyRequests, http.StatusTooManyRequests, ErrCodeTooManyRequests},
		{"invalid payload", InvalidPayload, http.StatusBadRequest, ErrCodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := respond(tt.fn)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.Message)
			assert.Nil(t, body.Details)
		})
	}
}

func TestMissingFieldDetails(t *testing.T) {
	w, body := respond(func(c *gin.Context) { MissingField(c, "image_id") })
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrCodeMissingField, body.Code)
	assert.Equal(t, "image_id is required", body.Message)
	assert.Equal(t, map[string]any{"field": "image_id"}, body.Details)
}

func TestCodeForStatus(t *testing.T) {
	for status, want := range map[int]string{
		http.StatusBadRequest:          ErrCodeInvalidRequest,
		http.StatusUnauthorized:        ErrCodeUnauthorized,
		http.StatusForbidden:           ErrCodeForbidden,
		http.StatusNotFound:            ErrCodeNotFound,
		http.StatusMethodNotAllowed:    ErrCodeNotFound,
		http.StatusTooManyRequests:     ErrCodeTooManyRequests,
		http.StatusServiceUnavailable:  ErrCodeServiceUnavailable,
		http.StatusTeapot:              ErrCodeInternalError,
	} {
		assert.Equal(t, want, codeForStatus(status), "status %d", status)
	}
}
