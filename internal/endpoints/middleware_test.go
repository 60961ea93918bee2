package endpoints

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"verbatim/internal/config"
	"verbatim/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdentityMiddleware())
	r.GET("/whoami", func(c *gin.Context) {
		id, err := GetUserID(c)
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		c.String(http.StatusOK, id)
	})
	return r
}

func setIdentityConfig(t *testing.T, online bool, secret string) {
	t.Helper()
	prevOnline, prevSecret := config.Online, config.StorageSecret
	config.Online, config.StorageSecret = online, secret
	t.Cleanup(func() {
		config.Online, config.StorageSecret = prevOnline, prevSecret
	})
}

func TestIdentityMiddlewareOffline(t *testing.T) {
	setIdentityConfig(t, false, "")
	router := identityRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/whoami", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, store.LocalUser, w.Body.String())
	assert.Empty(t, w.Result().Cookies())
}

func TestIdentityMiddlewareOnline(t *testing.T) {
	setIdentityConfig(t, true, "test-secret")
	router := identityRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/whoami", nil)
	router.ServeHTTP(w, req)

	firstID := w.Body.String()
	require.NotEmpty(t, firstID)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, strings.HasPrefix(cookies[0].Value, firstID+"."))

	t.Run("Signed cookie keeps the identity", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/whoami", nil)
		req.AddCookie(cookies[0])
		router.ServeHTTP(w, req)
		assert.Equal(t, firstID, w.Body.String())
		assert.Empty(t, w.Result().Cookies())
	})

	t.Run("Tampered cookie gets a fresh identity", func(t *testing.T) {
		forged := *cookies[0]
		forged.Value = "someone-else." + strings.SplitN(cookies[0].Value, ".", 2)[1]

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/whoami", nil)
		req.AddCookie(&forged)
		router.ServeHTTP(w, req)

		assert.NotEqual(t, "someone-else", w.Body.String())
		assert.NotEqual(t, firstID, w.Body.String())
		assert.Len(t, w.Result().Cookies(), 1)
	})
}
