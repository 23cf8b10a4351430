package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Kariqs/amexan-marketplace/initializers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStorage struct {
	keys []string
}

func (m *memoryStorage) Upload(_ context.Context, key string, body io.Reader, _ string) (string, error) {
	if _, err := io.ReadAll(body); err != nil {
		return "", err
	}
	m.keys = append(m.keys, key)
	return "https://cdn.example.com/" + key, nil
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for name, content := range files {
		part, err := w.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestUploadImages(t *testing.T) {
	mock := setupDB(t)
	storage := &memoryStorage{}
	prev := initializers.Storage
	initializers.Storage = storage
	initializers.Config.S3Prefix = "products"
	t.Cleanup(func() { initializers.Storage = prev })

	r := newRouter(seller(9))
	r.POST("/uploads/images", UploadImages)

	body, contentType := multipartBody(t, map[string][]byte{
		"basket.png": pngHeader,
		"notes.txt":  []byte("plain text is not an image"),
	})
	req := httptest.NewRequest(http.MethodPost, "/uploads/images", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var data uploadResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
	require.Len(t, data.URLs, 1)
	assert.Equal(t, []string{"notes.txt"}, data.Failed)
	require.Len(t, storage.keys, 1)
	assert.True(t, strings.HasPrefix(storage.keys[0], "products/9/"))
	assert.True(t, strings.HasSuffix(storage.keys[0], ".png"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadImagesRequiresFiles(t *testing.T) {
	setupDB(t)
	prev := initializers.Storage
	initializers.Storage = &memoryStorage{}
	t.Cleanup(func() { initializers.Storage = prev })

	r := newRouter(seller(9))
	r.POST("/uploads/images", UploadImages)

	body, contentType := multipartBody(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/uploads/images", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "is required", decode(t, rec).Error.Details["images"])
}
