package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FitSync-G13/fitsync-notification-service/pkg/response"
)

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// パニック値はログにのみ出力し、クライアントには汎用メッセージのINTERNAL_ERRORを返す。
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("パニックから回復しました",
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("panic", r),
					zap.Stack("stack"),
				)
				response.Abort(c, http.StatusInternalServerError, response.CodeInternalError, "An unexpected error occurred")
			}
		}()
		c.Next()
	}
}
