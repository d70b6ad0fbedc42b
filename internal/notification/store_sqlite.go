package notification

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/FitSync-G13/fitsync-notification-service/pkg/migration"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore はSQLiteを使う通知ストア。既定のDSN ":memory:" では再起動で内容が失われる。
type SQLiteStore struct {
	db   *sql.DB
	opts storeOptions
	// appendMu はseqの順序と作成日時の順序を一致させるためAppendを直列化する。
	appendMu sync.Mutex
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore はSQLiteデータベースを開き、スキーマを適用する。
func NewSQLiteStore(ctx context.Context, dsn string, logger *zap.Logger, opts ...StoreOption) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// インメモリDBは接続ごとに別物になるため、接続を1本に固定する
	db.SetMaxOpenConns(1)

	if _, err := migration.Run(ctx, db, migrations, "migrations", logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	return &SQLiteStore{db: db, opts: newStoreOptions(opts)}, nil
}

// Close はデータベース接続を閉じる。
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const selectColumns = `id, user_id, type, category, title, message, metadata, read_at, created_at`

// Append は通知を採番して保存する。
func (s *SQLiteStore) Append(ctx context.Context, userID string, draft Draft) (Notification, error) {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	n := Notification{
		ID:        s.opts.newID(),
		UserID:    userID,
		Type:      draft.Type,
		Category:  draft.Category,
		Title:     draft.Title,
		Message:   draft.Message,
		Metadata:  maps.Clone(draft.Metadata),
		CreatedAt: s.opts.now(),
	}
	if n.Metadata == nil {
		n.Metadata = map[string]any{}
	}

	metadata, err := json.Marshal(n.Metadata)
	if err != nil {
		return Notification{}, fmt.Errorf("メタデータのシリアライズに失敗: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, type, category, title, message, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, string(n.Type), string(n.Category), n.Title, n.Message, string(metadata),
		n.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Notification{}, fmt.Errorf("通知の保存に失敗: %w", err)
	}
	return n, nil
}

// List はユーザーの通知を挿入順に返す。
func (s *SQLiteStore) List(ctx context.Context, userID string) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM notifications WHERE user_id = ? ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// FindByID は通知を1件返す。
func (s *SQLiteStore) FindByID(ctx context.Context, userID, id string) (Notification, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM notifications WHERE user_id = ? AND id = ?`, userID, id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Notification{}, false, nil
	}
	if err != nil {
		return Notification{}, false, err
	}
	return n, true, nil
}

// MarkRead は通知を既読にする。既読済みの場合はread_atを変更しない。
func (s *SQLiteStore) MarkRead(ctx context.Context, userID, id string) (Notification, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read_at = COALESCE(read_at, ?) WHERE user_id = ? AND id = ?`,
		s.opts.now().Format(time.RFC3339Nano), userID, id)
	if err != nil {
		return Notification{}, fmt.Errorf("通知の既読処理に失敗: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return Notification{}, ErrNotFound
	}

	n, found, err := s.FindByID(ctx, userID, id)
	if err != nil {
		return Notification{}, err
	}
	if !found {
		return Notification{}, ErrNotFound
	}
	return n, nil
}

// MarkAllRead はユーザーの未読通知を全て既読にする。
func (s *SQLiteStore) MarkAllRead(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read_at = ? WHERE user_id = ? AND read_at IS NULL`,
		s.opts.now().Format(time.RFC3339Nano), userID)
	if err != nil {
		return 0, fmt.Errorf("全通知の既読処理に失敗: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	return int(affected), nil
}

// Delete は通知を1件削除する。
func (s *SQLiteStore) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("通知の削除に失敗: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UnreadCount は未読件数を返す。
func (s *SQLiteStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read_at IS NULL`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("未読件数の取得に失敗: %w", err)
	}
	return count, nil
}

// scanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type scanner interface {
	Scan(dest ...any) error
}

// scanNotification は1行を通知に変換する。
func scanNotification(row scanner) (Notification, error) {
	var (
		n                   Notification
		typ, category       string
		metadata, createdAt string
		readAt              sql.NullString
	)
	if err := row.Scan(&n.ID, &n.UserID, &typ, &category, &n.Title, &n.Message, &metadata, &readAt, &createdAt); err != nil {
		return Notification{}, err
	}
	n.Type = Type(typ)
	n.Category = Category(category)

	if err := json.Unmarshal([]byte(metadata), &n.Metadata); err != nil {
		return Notification{}, fmt.Errorf("メタデータのデシリアライズに失敗: %w", err)
	}

	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Notification{}, fmt.Errorf("作成日時の解析に失敗: %w", err)
	}
	n.CreatedAt = created

	if readAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, readAt.String)
		if err != nil {
			return Notification{}, fmt.Errorf("既読日時の解析に失敗: %w", err)
		}
		n.ReadAt = &t
	}
	return n, nil
}
