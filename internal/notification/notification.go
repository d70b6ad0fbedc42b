package notification

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound は指定された通知がユーザーの通知一覧に存在しないことを表す。
var ErrNotFound = errors.New("通知が見つかりません")

// Type は通知の発生元イベントを識別する種別。
type Type string

const (
	TypeBookingConfirmation Type = "booking_confirmation"
	TypeBookingCancellation Type = "booking_cancellation"
	TypeBookingCompleted    Type = "booking_completed"
	TypeProgramAssigned     Type = "program_assigned"
	TypeProgramCompleted    Type = "program_completed"
	TypeAchievement         Type = "achievement"
	TypeMilestone           Type = "milestone"
)

// Category はクライアント側の絞り込みに使う粗い分類。Typeと一致するとは限らない。
type Category string

const (
	CategoryBookingConfirmation Category = "booking_confirmation"
	CategoryBookingReminder     Category = "booking_reminder"
	CategoryProgramAssigned     Category = "program_assigned"
	CategoryAchievement         Category = "achievement"
)

// Notification はユーザー1人に対する1件の通知。
type Notification struct {
	// ID はユーザーの通知一覧内で一意な識別子。
	ID string `json:"id"`
	// UserID は通知の所有者。
	UserID string `json:"user_id"`
	// Type は発生元イベントの種別。
	Type Type `json:"type"`
	// Category は分類。
	Category Category `json:"category"`
	// Title は短い見出し。
	Title string `json:"title"`
	// Message は本文。
	Message string `json:"message"`
	// Metadata はディープリンク用のイベント固有ID等。スキーマは種別ごとに異なる。
	Metadata map[string]any `json:"metadata"`
	// ReadAt は既読日時。nilは未読を表し、一度設定されたら変化しない。
	ReadAt *time.Time `json:"read_at"`
	// CreatedAt は保存日時。一覧はこの順（挿入順）に並ぶ。
	CreatedAt time.Time `json:"created_at"`
}

// IsRead は既読かどうかを返す。
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}

// clone は保存中のレコードと参照を共有しないコピーを返す。
func (n *Notification) clone() Notification {
	c := *n
	c.Metadata = maps.Clone(n.Metadata)
	if n.ReadAt != nil {
		readAt := *n.ReadAt
		c.ReadAt = &readAt
	}
	return c
}

// Draft はハンドラがストアに渡す保存前の通知内容。IDと日時はストアが採番する。
type Draft struct {
	Type     Type
	Category Category
	Title    string
	Message  string
	Metadata map[string]any
}

// Store は通知の保存先。全ての操作はユーザー単位の通知一覧に対して行う。
// 実装は挿入順の保持、ユーザー内でのID一意性、ReadAtの一方向遷移を保証しなければならない。
type Store interface {
	// Append は通知を採番してユーザーの一覧の末尾に追加し、保存したレコードを返す。
	Append(ctx context.Context, userID string, draft Draft) (Notification, error)
	// List はユーザーの通知を挿入順に返す。未知のユーザーの場合は空のスライスを返す。
	List(ctx context.Context, userID string) ([]Notification, error)
	// FindByID は通知を1件返す。存在しない場合は第2戻り値がfalseになる。
	FindByID(ctx context.Context, userID, id string) (Notification, bool, error)
	// MarkRead は通知を既読にして更新後のレコードを返す。存在しない場合はErrNotFound。
	MarkRead(ctx context.Context, userID, id string) (Notification, error)
	// MarkAllRead はユーザーの未読通知を全て既読にし、更新件数を返す。
	MarkAllRead(ctx context.Context, userID string) (int, error)
	// Delete は通知を1件削除する。残りの順序は保たれる。存在しない場合はErrNotFound。
	Delete(ctx context.Context, userID, id string) error
	// UnreadCount は未読件数を返す。未知のユーザーの場合は0。
	UnreadCount(ctx context.Context, userID string) (int, error)
}

// storeOptions はストア実装に共通の設定。
type storeOptions struct {
	now   func() time.Time
	newID func() string
}

// StoreOption はストアの設定を変更する関数。
type StoreOption func(*storeOptions)

// WithClock は日時の取得方法を差し替える。
func WithClock(now func() time.Time) StoreOption {
	return func(o *storeOptions) { o.now = now }
}

// WithIDGenerator はIDの採番方法を差し替える。
func WithIDGenerator(newID func() string) StoreOption {
	return func(o *storeOptions) { o.newID = newID }
}

func newStoreOptions(opts []StoreOption) storeOptions {
	o := storeOptions{
		now:   func() time.Time { return time.Now().UTC() },
		newID: newNotificationID,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// newNotificationID は時刻順に並ぶUUIDv7を採番する。
func newNotificationID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
