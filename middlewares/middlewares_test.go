package middlewares

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/pharmacy-marketplace/models"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testCookie = "tigerToken"

func init() {
	gin.SetMode(gin.TestMode)
}

func setupAuth(t *testing.T) (*gorm.DB, *utils.JWTManager, *Authenticator) {
	t.Helper()
	dsn := fmt.Sprintf("file:mw_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, models.AutoMigrate(db))

	jwt := utils.NewJWTManager("test-secret", time.Hour)
	return db, jwt, NewAuthenticator(db, jwt, testCookie)
}

func createUser(t *testing.T, db *gorm.DB, role models.Role) models.User {
	t.Helper()
	u := models.User{Name: string(role), Email: string(role) + "@example.dz", Password: "x", Role: role}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func decode(t *testing.T, w *httptest.ResponseRecorder) utils.JSONResponse {
	t.Helper()
	var resp utils.JSONResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func protectedRouter(a *Authenticator, roles ...models.Role) *gin.Engine {
	r := gin.New()
	r.GET("/private", a.AuthMiddleware(), RequireRoles(roles...), func(c *gin.Context) {
		user, _ := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetUint(utils.UserIDKey), "email": user.Email})
	})
	r.GET("/ws", a.WebSocketAuthMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestAuthMiddlewareTokenSources(t *testing.T) {
	db, jwt, auth := setupAuth(t)
	cashier := createUser(t, db, models.RoleCashier)
	token, err := jwt.GenerateToken(cashier.ID, string(cashier.Role))
	require.NoError(t, err)
	r := protectedRouter(auth, models.RoleCashier)

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.AddCookie(&http.Cookie{Name: testCookie, Value: token})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "cashier@example.dz")
	})

	t.Run("bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, utils.CodeUnauthorized, decode(t, w).Code)
	})

	t.Run("query token only works for websocket", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private?token="+token, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("revoked", func(t *testing.T) {
		revoked, err := jwt.GenerateToken(cashier.ID, string(cashier.Role))
		require.NoError(t, err)
		jwt.Blacklist(revoked)
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.Header.Set("Authorization", "Bearer "+revoked)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthMiddlewareDeletedUser(t *testing.T) {
	_, jwt, auth := setupAuth(t)
	token, err := jwt.GenerateToken(404, string(models.RoleAdmin))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	protectedRouter(auth, models.RoleAdmin).ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "User not found", decode(t, w).Message)
}

func TestRequireRoles(t *testing.T) {
	db, jwt, auth := setupAuth(t)
	client := createUser(t, db, models.RoleClient)
	token, err := jwt.GenerateToken(client.ID, string(client.Role))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	protectedRouter(auth, models.RoleAdmin, models.RoleCashier).ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, utils.CodeForbidden, decode(t, w).Code)

	// the role stored on the user wins over the one in the token
	require.NoError(t, db.Model(&client).Update("role", models.RoleCashier).Error)
	w = httptest.NewRecorder()
	protectedRouter(auth, models.RoleCashier).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiters(t *testing.T) {
	r := gin.New()
	r.POST("/login", NewRateLimiter(2, time.Minute).RateLimit(), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/pay", NewIPRateLimiter(0.001, 1).Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := func(path, ip string, n int) []int {
		var out []int
		for i := 0; i < n; i++ {
			req := httptest.NewRequest(http.MethodPost, path, nil)
			req.RemoteAddr = ip + ":1234"
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			out = append(out, w.Code)
		}
		return out
	}

	assert.Equal(t, []int{200, 200, 429}, codes("/login", "10.0.0.1", 3))
	assert.Equal(t, []int{200}, codes("/login", "10.0.0.2", 1))
	assert.Equal(t, []int{200, 429}, codes("/pay", "10.0.0.1", 2))
	assert.Equal(t, []int{200}, codes("/pay", "10.0.0.3", 1))
}

func TestLoggerMiddlewareRequestID(t *testing.T) {
	r := gin.New()
	r.Use(LoggerMiddleware(), CORSMiddleware("http://localhost:3000"), SecurityHeaders(false))
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(utils.RequestIDKey))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	id := w.Header().Get(RequestIDHeader)
	assert.Len(t, id, 36)
	assert.Equal(t, id, w.Body.String())
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/health", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
