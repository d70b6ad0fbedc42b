package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// TestCORS はCORSミドルウェアを検証する。
func TestCORS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		allowed          []string
		method           string
		origin           string
		requestMethod    string
		wantStatus       int
		wantOrigin       string
		wantAllowMethods string
		wantHandler      bool
	}{
		{
			name:        "許可されたオリジンからのGETにCORSヘッダーが設定されること",
			allowed:     []string{"http://localhost:3000", "https://fitsync.example.com"},
			method:      http.MethodGet,
			origin:      "https://fitsync.example.com",
			wantStatus:  http.StatusOK,
			wantOrigin:  "https://fitsync.example.com",
			wantHandler: true,
		},
		{
			name:        "許可されていないオリジンにはCORSヘッダーが設定されないこと",
			allowed:     []string{"http://localhost:3000"},
			method:      http.MethodGet,
			origin:      "https://evil.com",
			wantStatus:  http.StatusOK,
			wantHandler: true,
		},
		{
			name:        "ワイルドカード指定では任意のオリジンを許可すること",
			allowed:     []string{"*"},
			method:      http.MethodGet,
			origin:      "https://any.example.com",
			wantStatus:  http.StatusOK,
			wantOrigin:  "https://any.example.com",
			wantHandler: true,
		},
		{
			name:        "ワイルドカード指定でもOriginヘッダーが無ければ設定しないこと",
			allowed:     []string{"*"},
			method:      http.MethodGet,
			wantStatus:  http.StatusOK,
			wantHandler: true,
		},
		{
			name:        "空のオリジンリストではCORSヘッダーが設定されないこと",
			method:      http.MethodGet,
			origin:      "http://localhost:3000",
			wantStatus:  http.StatusOK,
			wantHandler: true,
		},
		{
			name:             "プリフライトで204が返り設定したメソッドだけを許可すること",
			allowed:          []string{"http://localhost:3000"},
			method:           http.MethodOptions,
			origin:           "http://localhost:3000",
			requestMethod:    http.MethodPut,
			wantStatus:       http.StatusNoContent,
			wantOrigin:       "http://localhost:3000",
			wantAllowMethods: "GET, PUT, OPTIONS",
			wantHandler:      false,
		},
		{
			name:          "許可されていないメソッドのプリフライトには許可ヘッダーを返さないこと",
			allowed:       []string{"http://localhost:3000"},
			method:        http.MethodOptions,
			origin:        "http://localhost:3000",
			requestMethod: http.MethodPatch,
			wantStatus:    http.StatusNoContent,
			wantHandler:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handlerCalled := false
			router := gin.New()
			router.Use(CORS(CORSConfig{
				AllowedOrigins: tt.allowed,
				AllowedMethods: []string{"get", http.MethodPut, http.MethodGet},
			}))
			router.Handle(tt.method, "/test", func(c *gin.Context) {
				handlerCalled = true
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(tt.method, "/test", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.requestMethod != "" {
				req.Header.Set("Access-Control-Request-Method", tt.requestMethod)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("ステータスコード = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := w.Header().Get("Access-Control-Allow-Methods"); got != tt.wantAllowMethods {
				t.Errorf("Access-Control-Allow-Methods = %q, want %q", got, tt.wantAllowMethods)
			}
			if handlerCalled != tt.wantHandler {
				t.Errorf("handlerCalled = %v, want %v", handlerCalled, tt.wantHandler)
			}
		})
	}
}

// TestCORS_Defaults は省略した設定の既定値を検証する。
func TestCORS_Defaults(t *testing.T) {
	t.Parallel()

	router := gin.New()
	router.Use(CORS(CORSConfig{AllowedOrigins: []string{"*"}}))

	req := httptest.NewRequest(http.MethodOptions, "/test", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Methods"); got != "OPTIONS" {
		t.Errorf("Access-Control-Allow-Methods = %q, want OPTIONS", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type" {
		t.Errorf("Access-Control-Allow-Headers = %q, want Content-Type", got)
	}
	if got := w.Header().Get("Access-Control-Max-Age"); got != "86400" {
		t.Errorf("Access-Control-Max-Age = %q, want 86400", got)
	}

	router = gin.New()
	router.Use(CORS(CORSConfig{AllowedOrigins: []string{"*"}, MaxAge: 10 * time.Minute}))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Max-Age"); got != "600" {
		t.Errorf("Access-Control-Max-Age = %q, want 600", got)
	}
}
