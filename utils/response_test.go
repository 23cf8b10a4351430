package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type signupPayload struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,strongpassword"`
	Role     string `json:"sellerRole" binding:"omitempty,sellerrole"`
	Quantity int    `json:"quantity" binding:"omitempty,gte=1"`
}

func respondWith(t *testing.T, err error) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	RespondError(ctx, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"app error", Forbidden("nope"), http.StatusForbidden, CodeForbidden},
		{"wrapped app error", fmt.Errorf("ctx: %w", Unauthorized("who")), http.StatusUnauthorized, CodeUnauthorized},
		{"record not found", gorm.ErrRecordNotFound, http.StatusNotFound, CodeNotFound},
		{"duplicate key", gorm.ErrDuplicatedKey, http.StatusConflict, CodeConflict},
		{"foreign key", gorm.ErrForeignKeyViolated, http.StatusConflict, CodeConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec, env := respondWith(t, c.err)
			assert.Equal(t, c.status, rec.Code)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, c.code, env.Error.Code)
		})
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	_, env := respondWith(t, errors.New("dial tcp 10.0.0.3:3306: connection refused"))
	assert.Equal(t, "Internal server error", env.Message)
	assert.NotContains(t, env.Message, "10.0.0.3")
}

func TestRespondErrorValidationDetails(t *testing.T) {
	RegisterValidations()
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	ctx.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"bad","sellerRole":"owner","quantity":-1}`))
	ctx.Request.Header.Set("Content-Type", "application/json")

	var payload signupPayload
	err := ctx.ShouldBindJSON(&payload)
	require.Error(t, err)
	RespondError(ctx, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotNil(t, env.Error)
	assert.Equal(t, CodeValidation, env.Error.Code)
	assert.Equal(t, "must be a valid email address", env.Error.Details["email"])
	assert.Equal(t, "is required", env.Error.Details["password"])
	assert.Equal(t, "must be one of: manager, accountant, inventory_staff", env.Error.Details["sellerRole"])
	assert.Equal(t, "must be greater than or equal to 1", env.Error.Details["quantity"])
}

func TestRespondErrorMalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	ctx.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":`))
	ctx.Request.Header.Set("Content-Type", "application/json")

	var payload signupPayload
	RespondError(ctx, ctx.ShouldBindJSON(&payload))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStrongPassword(t *testing.T) {
	assert.True(t, IsStrongPassword("abcdefg1"))
	assert.False(t, IsStrongPassword("abcdefgh"))
	assert.False(t, IsStrongPassword("12345678"))
	assert.False(t, IsStrongPassword("abc1"))
}

func TestRespondPaginated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	RespondPaginated(ctx, "Products retrieved", []string{"a"}, NewPageMeta(Pagination{Page: 1, Limit: 1}, 2))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.NotContains(t, body, "error")
	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(2), meta["totalPages"])
	assert.Equal(t, true, meta["hasNextPage"])
}
