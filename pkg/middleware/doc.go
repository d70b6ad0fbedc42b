// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// zapによるリクエストログ、パニックリカバリ、CORS設定を含む。
package middleware
