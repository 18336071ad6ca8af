package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulatminnakhmetov/canvas2image/internal/metrics"
	"github.com/bulatminnakhmetov/canvas2image/internal/permission"
)

var secret = []byte("middleware-secret")

func claimsEcho(w http.ResponseWriter, r *http.Request) {
	claims, ok := permission.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "no claims", http.StatusInternalServerError)
		return
	}
	w.Write([]byte(claims.Subject))
}

func TestAuth(t *testing.T) {
	token, err := permission.IssueToken(secret, "device-9", true, time.Hour)
	require.NoError(t, err)
	handler := Auth(secret)(http.HandlerFunc(claimsEcho))

	tests := []struct {
		name         string
		header       string
		query        string
		expectedCode int
		expectedBody string
	}{
		{"Bearer header", "Bearer " + token, "", http.StatusOK, "device-9"},
		{"Query token", "", "?token=" + token, http.StatusOK, "device-9"},
		{"Missing token", "", "", http.StatusUnauthorized, "Authorization header required"},
		{"Wrong scheme", "Basic abc", "", http.StatusUnauthorized, "Authorization header required"},
		{"Bad token", "Bearer nope", "", http.StatusUnauthorized, "Invalid token"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/bridge"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code)
			assert.Contains(t, rr.Body.String(), tc.expectedBody)
		})
	}
}

func TestRequestLogger(t *testing.T) {
	reg := metrics.NewRegistry()
	var sawLogger bool

	handler := RequestLogger(reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawLogger = log.Ctx(r.Context()) != nil
		if r.URL.Path == "/boom" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/images", nil)
	req.Header.Set("X-Request-ID", "rid-1")
	handler.ServeHTTP(rr, req)

	assert.True(t, sawLogger)
	assert.Equal(t, "rid-1", rr.Header().Get("X-Request-ID"))
	assert.Equal(t, int64(1), reg.Value("http_requests_total", map[string]string{"method": "POST", "status": "2xx"}))

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, int64(1), reg.Value("http_requests_errors_total", map[string]string{"method": "GET", "status": "5xx"}))
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "4xx", statusClass(413))
	assert.Equal(t, "0", statusClass(0))
}
