// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// 通知サービスがユーザー・プログラム・予約の各サービスを呼び出す際に使用する。
// タイムアウトは固定で、リトライは行わない。
package httpclient
