package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/pkg/errors"
	"github.com/kart-io/docqa/pkg/infra/middleware/common"
	"github.com/kart-io/docqa/pkg/utils/json"
	"github.com/kart-io/docqa/pkg/utils/response"
)

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.Use(Recovery(), RequestID(), Logger("/healthz"))
	return e
}

func TestRequestIDGenerated(t *testing.T) {
	e := newEngine()
	var seen string
	e.GET("/ping", func(c *gin.Context) {
		seen = common.GetRequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.NotEmpty(t, seen)
	assert.Len(t, seen, 26)
	assert.Equal(t, seen, w.Header().Get(common.HeaderXRequestID))
}

func TestRequestIDPropagated(t *testing.T) {
	e := newEngine()
	e.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(common.HeaderXRequestID, "upstream-id")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	assert.Equal(t, "upstream-id", w.Header().Get(common.HeaderXRequestID))
}

func TestRecoveryReturnsEnvelope(t *testing.T) {
	e := newEngine()
	e.GET("/boom", func(*gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var r response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	assert.Equal(t, errors.ErrPanic.Code, r.Code)
	assert.Contains(t, r.Message, "kaboom")
}

func TestULIDsAreOrdered(t *testing.T) {
	a := common.NewULID()
	b := common.NewULID()
	assert.Less(t, a, b)
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.Use(CORS(CORSConfig{AllowOrigins: []string{"http://localhost:3000"}, AllowCredentials: true}))
	e.POST("/ask", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantOrigin string
	}{
		{"allowed origin", http.MethodPost, "http://localhost:3000", http.StatusOK, "http://localhost:3000"},
		{"other origin", http.MethodPost, "http://evil.example", http.StatusOK, ""},
		{"no origin", http.MethodPost, "", http.StatusOK, ""},
		{"preflight", http.MethodOptions, "http://localhost:3000", http.StatusNoContent, "http://localhost:3000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/ask", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			e.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantOrigin != "" {
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			}
			if tt.method == http.MethodOptions {
				assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
			}
		})
	}
}

func TestCORSRejectsInvalidConfig(t *testing.T) {
	assert.Error(t, CORSConfig{}.Validate())
	assert.Error(t, CORSConfig{AllowOrigins: []string{"*"}, AllowCredentials: true}.Validate())
	assert.NoError(t, CORSConfig{AllowOrigins: []string{"*"}}.Validate())
	assert.Panics(t, func() { CORS(CORSConfig{}) })
}

func TestVersion(t *testing.T) {
	e := newEngine()
	e.GET("/version", Version())

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var r struct {
		Code int             `json:"code"`
		Data VersionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	assert.Equal(t, errors.OK.Code, r.Code)
	assert.Equal(t, version.Get().GitVersion, r.Data.GitVersion)
}
