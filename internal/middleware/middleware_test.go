package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/testhub-backend/internal/model"
	"github.com/stemsi/testhub-backend/internal/response"
	"github.com/stemsi/testhub-backend/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubValidator map[string]*service.Claims

func (v stubValidator) ValidateToken(token string) (*service.Claims, error) {
	if c, ok := v[token]; ok {
		return c, nil
	}
	return nil, errors.New("bad token")
}

type stubRevocations map[string]bool

func (r stubRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	return r[jti], nil
}

func userClaims(id int, role model.Role, jti string) *service.Claims {
	c := &service.Claims{UserID: id, Role: role}
	c.ID = jti
	return c
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) response.ErrCode {
	t.Helper()
	var body response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v (%s)", err, w.Body.String())
	}
	if body.Error == nil {
		return ""
	}
	return body.Error.Code
}

func TestRequireAuth(t *testing.T) {
	validator := stubValidator{
		"user-token":  userClaims(1, model.RoleUser, "j1"),
		"admin-token": userClaims(2, model.RoleAdmin, "j2"),
	}

	r := gin.New()
	r.GET("/me", RequireAuth(validator), func(c *gin.Context) {
		c.String(http.StatusOK, "%d", GetClaims(c).UserID)
	})
	r.GET("/admin", RequireAuth(validator), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	cases := []struct {
		name   string
		path   string
		header string
		status int
		code   response.ErrCode
	}{
		{"missing token", "/me", "", http.StatusUnauthorized, response.ErrTokenRequired},
		{"invalid token", "/me", "Bearer nope", http.StatusUnauthorized, response.ErrTokenInvalid},
		{"wrong scheme", "/me", "Basic user-token", http.StatusUnauthorized, response.ErrTokenRequired},
		{"valid token", "/me", "Bearer user-token", http.StatusOK, ""},
		{"query fallback", "/me?token=user-token", "", http.StatusOK, ""},
		{"user on admin route", "/admin", "Bearer user-token", http.StatusForbidden, response.ErrAdminAccessOnly},
		{"admin on admin route", "/admin", "bearer admin-token", http.StatusOK, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d", w.Code, tc.status)
			}
			if tc.code != "" {
				if got := errorCode(t, w); got != tc.code {
					t.Errorf("code = %s, want %s", got, tc.code)
				}
			}
		})
	}
}

func TestRequireWSAuth(t *testing.T) {
	validator := stubValidator{"ok": userClaims(5, model.RoleUser, "j")}

	r := gin.New()
	r.GET("/ws", RequireWSAuth(validator), func(c *gin.Context) { c.Status(http.StatusOK) })

	for path, want := range map[string]int{
		"/ws":          http.StatusUnauthorized,
		"/ws?token=no": http.StatusUnauthorized,
		"/ws?token=ok": http.StatusOK,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != want {
			t.Errorf("%s: status = %d, want %d", path, w.Code, want)
		}
	}
}

func TestRejectRevokedTokens(t *testing.T) {
	validator := stubValidator{
		"live":   userClaims(1, model.RoleUser, "live-jti"),
		"logout": userClaims(1, model.RoleUser, "dead-jti"),
	}

	r := gin.New()
	r.GET("/me", RequireAuth(validator), RejectRevokedTokens(stubRevocations{"dead-jti": true}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer live")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("live token: status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer logout")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized || errorCode(t, w) != response.ErrTokenRevoked {
		t.Fatalf("revoked token: status = %d body = %s", w.Code, w.Body.String())
	}
}

func TestRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	rl := NewRateLimiter(rdb, "auth", 2, time.Minute)
	rl.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 30, 0, time.UTC) }

	r := gin.New()
	r.POST("/login", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		return w
	}

	for i := 0; i < 2; i++ {
		if w := send(); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i+1, w.Code)
		}
	}
	w := send()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status = %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", w.Header().Get("Retry-After"))
	}

	rl.now = func() time.Time { return time.Date(2024, 1, 1, 12, 1, 30, 0, time.UTC) }
	if w := send(); w.Code != http.StatusOK {
		t.Fatalf("next window: status = %d", w.Code)
	}
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	r := gin.New()
	r.GET("/", NewRateLimiter(rdb, "auth", 1, time.Minute).Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with redis down", w.Code)
	}
}

func TestBrotli(t *testing.T) {
	large := strings.Repeat("question ", 500)

	r := gin.New()
	r.Use(Brotli())
	r.GET("/big", func(c *gin.Context) { c.String(http.StatusOK, large) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/results/export", func(c *gin.Context) { c.String(http.StatusOK, large) })

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Accept-Encoding", "gzip, br;q=1.0")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := get("/big")
	if w.Header().Get("Content-Encoding") != "br" {
		t.Fatalf("large body not compressed")
	}
	plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if string(plain) != large {
		t.Error("round trip mismatch")
	}

	if w := get("/small"); w.Header().Get("Content-Encoding") != "" || w.Body.String() != "ok" {
		t.Errorf("small body: encoding=%q body=%q", w.Header().Get("Content-Encoding"), w.Body.String())
	}
	if w := get("/results/export"); w.Header().Get("Content-Encoding") != "" {
		t.Error("export was compressed")
	}
}

func TestNoStoreAndRequestLogger(t *testing.T) {
	var logs bytes.Buffer
	r := gin.New()
	r.Use(response.RequestIDMiddleware(), RequestLogger(zerolog.New(&logs)), NoStore())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q", w.Header().Get("Cache-Control"))
	}

	var line map[string]interface{}
	if err := json.Unmarshal(logs.Bytes(), &line); err != nil {
		t.Fatalf("decode log: %v (%s)", err, logs.String())
	}
	if line["request_id"] != "req-123" || line["level"] != "warn" || line["status"] != float64(http.StatusTeapot) {
		t.Errorf("log line = %v", line)
	}
}
