// Package response はHTTP APIの共通レスポンス形式を提供する。
//
// 全てのレスポンスは {success, data?, error?{code, message}} の形をとる。
package response

import "github.com/gin-gonic/gin"

// エラーコード。クライアントはこの値で分岐する。
const (
	CodeMissingUserID  = "MISSING_USER_ID"
	CodeNotFound       = "NOT_FOUND"
	CodeInternalError  = "INTERNAL_ERROR"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeUnknownEvent   = "UNKNOWN_EVENT"
)

// Envelope はレスポンス全体の構造。
type Envelope struct {
	// Success はリクエストが成功したかどうか。
	Success bool `json:"success"`
	// Data は成功時のペイロード。
	Data any `json:"data,omitempty"`
	// Error は失敗時のエラー情報。
	Error *ErrorBody `json:"error,omitempty"`
}

// ErrorBody はエラー情報。
type ErrorBody struct {
	// Code は機械判読用のエラーコード。
	Code string `json:"code"`
	// Message は人が読むためのメッセージ。
	Message string `json:"message"`
}

// OK は成功レスポンスを書き込む。
func OK(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

// Error は失敗レスポンスを書き込む。
func Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, Envelope{Success: false, Error: &ErrorBody{Code: code, Message: message}})
}

// Abort は失敗レスポンスを書き込み、以降のハンドラを中断する。
func Abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Error: &ErrorBody{Code: code, Message: message}})
}
