package middlewares

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Kariqs/amexan-marketplace/initializers"
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/Kariqs/amexan-marketplace/utils"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	prevDB, prevCfg := initializers.DB, initializers.Config
	initializers.DB = db
	initializers.Config.JWTSecret = "test-secret"
	t.Cleanup(func() {
		initializers.DB = prevDB
		initializers.Config = prevCfg
	})
	return mock
}

func signedToken(t *testing.T, user models.User) string {
	t.Helper()
	token, _, err := utils.GenerateAccessToken(user, "test-secret", time.Minute)
	require.NoError(t, err)
	return token
}

func userRows(id uint, role, sellerRole, status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "role", "seller_role", "status"}).
		AddRow(id, "user@example.com", role, sellerRole, status)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) utils.Envelope {
	t.Helper()
	var env utils.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	chain := append(handlers, func(ctx *gin.Context) {
		user, _ := utils.CurrentUser(ctx)
		utils.RespondOK(ctx, "ok", gin.H{"id": user.ID})
	})
	r.GET("/protected", chain...)
	return r
}

func TestRequireAuthMissingToken(t *testing.T) {
	setupDB(t)
	w := httptest.NewRecorder()
	newRouter(RequireAuth()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	env := decode(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, utils.CodeUnauthorized, env.Error.Code)
}

func TestRequireAuthInvalidToken(t *testing.T) {
	setupDB(t)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w := httptest.NewRecorder()
	newRouter(RequireAuth()).ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuthBearer(t *testing.T) {
	mock := setupDB(t)
	mock.ExpectQuery("SELECT \\* FROM `users`").WillReturnRows(userRows(5, models.RoleBuyer, "", models.UserStatusActive))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, models.User{Model: gorm.Model{ID: 5}, Role: models.RoleBuyer}))
	w := httptest.NewRecorder()
	newRouter(RequireAuth()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":5}`, string(mustMarshal(t, decode(t, w).Data)))
}

func TestRequireAuthCookie(t *testing.T) {
	mock := setupDB(t)
	mock.ExpectQuery("SELECT \\* FROM `users`").WillReturnRows(userRows(5, models.RoleBuyer, "", models.UserStatusActive))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: signedToken(t, models.User{Model: gorm.Model{ID: 5}})})
	w := httptest.NewRecorder()
	newRouter(RequireAuth()).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAuthSuspendedUser(t *testing.T) {
	mock := setupDB(t)
	mock.ExpectQuery("SELECT \\* FROM `users`").WillReturnRows(userRows(5, models.RoleBuyer, "", models.UserStatusSuspended))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, models.User{Model: gorm.Model{ID: 5}}))
	w := httptest.NewRecorder()
	newRouter(RequireAuth()).ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireAuthDeletedUser(t *testing.T) {
	mock := setupDB(t)
	mock.ExpectQuery("SELECT \\* FROM `users`").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, models.User{Model: gorm.Model{ID: 5}}))
	w := httptest.NewRecorder()
	newRouter(RequireAuth()).ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOptionalAuthAnonymous(t *testing.T) {
	setupDB(t)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	newRouter(OptionalAuth()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":0}`, string(mustMarshal(t, decode(t, w).Data)))
}

func withUser(user models.User) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set(utils.UserKey, user)
		ctx.Next()
	}
}

func TestRequireRoles(t *testing.T) {
	storeID := uint(1)
	cases := []struct {
		name   string
		user   models.User
		roles  []string
		status int
	}{
		{"buyer allowed", models.User{Role: models.RoleBuyer}, []string{models.RoleBuyer}, http.StatusOK},
		{"buyer on seller route", models.User{Role: models.RoleBuyer}, []string{models.RoleSeller}, http.StatusForbidden},
		{"admin passes", models.User{Role: models.RoleAdmin}, []string{models.RoleSeller}, http.StatusOK},
		{"seller staff", models.User{Role: models.RoleSeller, StoreID: &storeID}, []string{models.RoleSeller}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newRouter(withUser(tc.user), RequireRoles(tc.roles...)).
				ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestRequireRolesWithoutUser(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(RequireAdmin()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireSellerPermission(t *testing.T) {
	storeID := uint(1)
	staff := func(sub string) models.User {
		return models.User{Role: models.RoleSeller, SellerRole: sub, StoreID: &storeID}
	}
	cases := []struct {
		name   string
		user   models.User
		perm   string
		status int
	}{
		{"owner", models.User{Role: models.RoleSeller}, models.PermStaffManage, http.StatusOK},
		{"admin", models.User{Role: models.RoleAdmin}, models.PermFinanceRead, http.StatusOK},
		{"buyer", models.User{Role: models.RoleBuyer}, models.PermOrderRead, http.StatusForbidden},
		{"manager staff", staff(models.SellerRoleManager), models.PermStaffManage, http.StatusOK},
		{"accountant reads finance", staff(models.SellerRoleAccountant), models.PermFinanceRead, http.StatusOK},
		{"accountant writes product", staff(models.SellerRoleAccountant), models.PermProductWrite, http.StatusForbidden},
		{"inventory updates stock", staff(models.SellerRoleInventoryStaff), models.PermInventoryUpdate, http.StatusOK},
		{"inventory deletes product", staff(models.SellerRoleInventoryStaff), models.PermProductDelete, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newRouter(withUser(tc.user), RequireSellerPermission(tc.perm)).
				ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	r := newRouter(rl.Middleware())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, utils.CodeRateLimited, decode(t, w).Error.Code)
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Now()
	rl.limiter("10.0.0.1", now.Add(-time.Hour))
	rl.limiter("10.0.0.2", now)
	assert.Equal(t, 1, rl.Cleanup(now))
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	r := newRouter(RequestID())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestRecoveryAndLogger(t *testing.T) {
	log, hook := test.NewNullLogger()
	r := gin.New()
	r.Use(RequestID(), RequestLogger(log), Recovery(log))
	r.GET("/boom", func(ctx *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, utils.CodeInternal, decode(t, w).Error.Code)

	var levels []logrus.Level
	for _, e := range hook.AllEntries() {
		levels = append(levels, e.Level)
	}
	assert.Equal(t, []logrus.Level{logrus.ErrorLevel, logrus.ErrorLevel}, levels)
	assert.Equal(t, "Request failed", hook.LastEntry().Message)
	assert.Contains(t, hook.LastEntry().Data, "duration_ms")
	assert.Equal(t, http.StatusInternalServerError, hook.LastEntry().Data["status"])
}

func TestMetricsInFlightSurvivesPanic(t *testing.T) {
	log, _ := test.NewNullLogger()
	r := gin.New()
	r.Use(Recovery(log), Metrics())
	r.GET("/boom", func(ctx *gin.Context) { panic("boom") })

	before := testutil.ToFloat64(httpInFlight)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, before, testutil.ToFloat64(httpInFlight))
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
