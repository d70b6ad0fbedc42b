package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// CORSConfig はCORSミドルウェアの設定。
type CORSConfig struct {
	// AllowedOrigins は許可するオリジン。"*" を含めると全てのオリジンを許可する。
	AllowedOrigins []string
	// AllowedMethods は許可するHTTPメソッド。OPTIONSは常に追加される。
	AllowedMethods []string
	// AllowedHeaders は許可するリクエストヘッダー。空の場合はContent-Typeのみ。
	AllowedHeaders []string
	// MaxAge はプリフライト結果のキャッシュ時間。0の場合は24時間。
	MaxAge time.Duration
}

// CORS は設定されたオリジンからのクロスオリジンリクエストを許可するGinミドルウェアを返す。
// プリフライトで要求されたメソッドが許可されていない場合は許可ヘッダーを返さない。
func CORS(cfg CORSConfig) gin.HandlerFunc {
	allowAll := slices.Contains(cfg.AllowedOrigins, "*")
	origins := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		origins[o] = struct{}{}
	}

	methods := make([]string, 0, len(cfg.AllowedMethods)+1)
	for _, m := range cfg.AllowedMethods {
		m = strings.ToUpper(m)
		if !slices.Contains(methods, m) {
			methods = append(methods, m)
		}
	}
	if !slices.Contains(methods, http.MethodOptions) {
		methods = append(methods, http.MethodOptions)
	}
	allowMethods := strings.Join(methods, ", ")

	headers := cfg.AllowedHeaders
	if len(headers) == 0 {
		headers = []string{"Content-Type"}
	}
	allowHeaders := strings.Join(headers, ", ")

	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	maxAgeSeconds := strconv.Itoa(int(maxAge.Seconds()))

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		_, listed := origins[origin]
		allowed := origin != "" && (allowAll || listed)

		if c.Request.Method == http.MethodOptions {
			requested := strings.ToUpper(c.GetHeader("Access-Control-Request-Method"))
			if allowed && (requested == "" || slices.Contains(methods, requested)) {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Methods", allowMethods)
				c.Header("Access-Control-Allow-Headers", allowHeaders)
				c.Header("Access-Control-Max-Age", maxAgeSeconds)
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		if allowed {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Next()
	}
}
