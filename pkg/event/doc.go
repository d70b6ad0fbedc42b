// Package event は通知サービスが購読するドメインイベントの種別とペイロードを定義する。
//
// イベント種別の文字列はPub/Subのチャンネル名を兼ねる。各ペイロードは型付きの構造体で、
// Decodeでデシリアライズと必須フィールドの検証を同時に行う。
package event
