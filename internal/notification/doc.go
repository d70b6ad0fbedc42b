// Package notification は通知サービスの内部実装を提供する。
//
// 他サービスから発行されるドメインイベント（予約・プログラム・実績）を受信し、
// ユーザー向けの通知を生成してメール送信とアプリ内通知の保存を行う。
// 保存した通知の一覧取得、既読化、削除、未読件数の取得をHTTP APIとして公開する。
//
// 処理の流れ:
//
//	Redis Pub/Sub → Subscriber → Dispatcher → Handlers → (ContactResolver) → Sender → Store
//	HTTP → Server → Store
package notification
