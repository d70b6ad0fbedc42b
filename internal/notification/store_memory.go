package notification

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// MemoryStore はプロセスメモリ上の通知ストア。再起動すると全ての通知が失われる。
// ハンドラは並行に実行されるため、全ての操作をミューテックスで直列化する。
type MemoryStore struct {
	mu     sync.RWMutex
	byUser map[string][]*Notification
	opts   storeOptions
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	return &MemoryStore{
		byUser: make(map[string][]*Notification),
		opts:   newStoreOptions(opts),
	}
}

// Append は通知を採番してユーザーの一覧の末尾に追加する。
// 採番と作成日時の取得もロック内で行い、一覧の順序と作成日時の順序を一致させる。
func (s *MemoryStore) Append(_ context.Context, userID string, draft Draft) (Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := &Notification{
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
	s.byUser[userID] = append(s.byUser[userID], n)
	return n.clone(), nil
}

// List はユーザーの通知を挿入順に返す。
func (s *MemoryStore) List(_ context.Context, userID string) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.byUser[userID]
	out := make([]Notification, 0, len(list))
	for _, n := range list {
		out = append(out, n.clone())
	}
	return out, nil
}

// FindByID は通知を線形探索で1件返す。
func (s *MemoryStore) FindByID(_ context.Context, userID, id string) (Notification, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(userID, id)
	if i < 0 {
		return Notification{}, false, nil
	}
	return s.byUser[userID][i].clone(), true, nil
}

// MarkRead は通知を既読にする。既読済みの場合はReadAtを変更しない。
func (s *MemoryStore) MarkRead(_ context.Context, userID, id string) (Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(userID, id)
	if i < 0 {
		return Notification{}, ErrNotFound
	}
	n := s.byUser[userID][i]
	if n.ReadAt == nil {
		now := s.opts.now()
		n.ReadAt = &now
	}
	return n.clone(), nil
}

// MarkAllRead はユーザーの未読通知を全て既読にする。
func (s *MemoryStore) MarkAllRead(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.now()
	updated := 0
	for _, n := range s.byUser[userID] {
		if n.ReadAt == nil {
			readAt := now
			n.ReadAt = &readAt
			updated++
		}
	}
	return updated, nil
}

// Delete は通知を1件削除する。残りの通知の相対順序は保たれる。
func (s *MemoryStore) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(userID, id)
	if i < 0 {
		return ErrNotFound
	}
	s.byUser[userID] = slices.Delete(s.byUser[userID], i, i+1)
	return nil
}

// UnreadCount は未読件数を返す。
func (s *MemoryStore) UnreadCount(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.byUser[userID] {
		if n.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

// indexOf は通知の位置を返す。見つからない場合は-1。呼び出し側でロックを保持すること。
func (s *MemoryStore) indexOf(userID, id string) int {
	return slices.IndexFunc(s.byUser[userID], func(n *Notification) bool {
		return n.ID == id
	})
}
