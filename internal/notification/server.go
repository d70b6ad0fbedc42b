package notification

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FitSync-G13/fitsync-notification-service/pkg/event"
	"github.com/FitSync-G13/fitsync-notification-service/pkg/middleware"
	"github.com/FitSync-G13/fitsync-notification-service/pkg/response"
)

// serviceName はヘルスチェックで返すサービス名。
const serviceName = "notification-service"

// Server は通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// store は通知の保存先。
	store Store
	// dispatcher は内部APIで受け取ったイベントの処理先。
	dispatcher EventDispatcher
	// logger はアプリケーションロガー。
	logger *zap.Logger
	// now は現在時刻の取得関数。テストで差し替える。
	now func() time.Time
}

// route はAPIルートの定義。
type route struct {
	method  string
	path    string
	handler gin.HandlerFunc
}

// NewServer は新しい通知サーバーを生成し、ルーティングを設定する。
// CORSで許可するメソッドは登録したルートから導出する。
func NewServer(store Store, dispatcher EventDispatcher, logger *zap.Logger, allowedOrigins []string) *Server {
	s := &Server{
		router:     gin.New(),
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}

	routes := s.routes()
	methods := make([]string, 0, len(routes))
	for _, r := range routes {
		if !slices.Contains(methods, r.method) {
			methods = append(methods, r.method)
		}
	}

	s.router.Use(middleware.Logger(logger))
	s.router.Use(middleware.Recovery(logger))
	s.router.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: methods,
	}))

	for _, r := range routes {
		s.router.Handle(r.method, r.path, r.handler)
	}
	s.router.NoRoute(func(c *gin.Context) {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "Route not found")
	})

	return s
}

// Handler はhttp.Serverに渡すハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// routes はAPIルーティングの一覧を返す。
func (s *Server) routes() []route {
	const notifications = "/api/notifications"
	return []route{
		// 通知一覧取得
		{http.MethodGet, notifications, s.handleList()},
		// 未読件数取得
		{http.MethodGet, notifications + "/unread/count", s.handleUnreadCount()},
		// 全通知を既読にする
		{http.MethodPut, notifications + "/read-all", s.handleMarkAllAsRead()},
		// 通知を既読にする
		{http.MethodPut, notifications + "/:id/read", s.handleMarkAsRead()},
		// 通知を削除する
		{http.MethodDelete, notifications + "/:id", s.handleDelete()},
		// イベント投入（内部API - 運用・動作確認用）
		{http.MethodPost, "/api/internal/events", s.handlePublishEvent()},
		// ヘルスチェック
		{http.MethodGet, "/health", s.handleHealth()},
	}
}

// handleHealth はヘルスチェックのハンドラ。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   serviceName,
			"timestamp": s.now().Format(time.RFC3339),
		})
	}
}

// requireUserID はクエリパラメータuser_idを取得する。
// 未指定の場合は400を書き込み、第2戻り値にfalseを返す。
func requireUserID(c *gin.Context) (string, bool) {
	userID := c.Query("user_id")
	if userID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeMissingUserID, "user_id is required")
		return "", false
	}
	return userID, true
}

// internalError はストアのエラーを記録し、詳細を含まない500を返す。
func (s *Server) internalError(c *gin.Context, msg string, err error) {
	s.logger.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
	response.Error(c, http.StatusInternalServerError, response.CodeInternalError, "An unexpected error occurred")
}

// handleList はユーザーの通知一覧を返すハンドラ。categoryを指定すると該当する通知のみ返す。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUserID(c)
		if !ok {
			return
		}

		notifications, err := s.store.List(c.Request.Context(), userID)
		if err != nil {
			s.internalError(c, "通知一覧の取得に失敗しました", err)
			return
		}

		if category := c.Query("category"); category != "" {
			filtered := make([]Notification, 0, len(notifications))
			for _, n := range notifications {
				if n.Category == Category(category) {
					filtered = append(filtered, n)
				}
			}
			notifications = filtered
		}

		response.OK(c, http.StatusOK, notifications)
	}
}

// handleMarkAsRead は指定された通知を既読にするハンドラ。
func (s *Server) handleMarkAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUserID(c)
		if !ok {
			return
		}

		n, err := s.store.MarkRead(c.Request.Context(), userID, c.Param("id"))
		if errors.Is(err, ErrNotFound) {
			response.Error(c, http.StatusNotFound, response.CodeNotFound, "Notification not found")
			return
		}
		if err != nil {
			s.internalError(c, "通知の既読処理に失敗しました", err)
			return
		}

		response.OK(c, http.StatusOK, n)
	}
}

// handleMarkAllAsRead はユーザーの全通知を既読にするハンドラ。
func (s *Server) handleMarkAllAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUserID(c)
		if !ok {
			return
		}

		updated, err := s.store.MarkAllRead(c.Request.Context(), userID)
		if err != nil {
			s.internalError(c, "全通知の既読処理に失敗しました", err)
			return
		}

		response.OK(c, http.StatusOK, gin.H{"updated": updated})
	}
}

// handleDelete は指定された通知を削除するハンドラ。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUserID(c)
		if !ok {
			return
		}

		err := s.store.Delete(c.Request.Context(), userID, c.Param("id"))
		if errors.Is(err, ErrNotFound) {
			response.Error(c, http.StatusNotFound, response.CodeNotFound, "Notification not found")
			return
		}
		if err != nil {
			s.internalError(c, "通知の削除に失敗しました", err)
			return
		}

		response.OK(c, http.StatusOK, gin.H{"message": "Notification deleted"})
	}
}

// handleUnreadCount はユーザーの未読件数を返すハンドラ。
func (s *Server) handleUnreadCount() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUserID(c)
		if !ok {
			return
		}

		count, err := s.store.UnreadCount(c.Request.Context(), userID)
		if err != nil {
			s.internalError(c, "未読件数の取得に失敗しました", err)
			return
		}

		response.OK(c, http.StatusOK, gin.H{"count": count})
	}
}

// publishEventRequest はイベント投入リクエストのJSON構造。
type publishEventRequest struct {
	// Event はイベント名（チャンネル名と同じ）。
	Event string `json:"event" binding:"required"`
	// Payload はイベントデータ。
	Payload json.RawMessage `json:"payload" binding:"required"`
}

// handlePublishEvent はイベントを受け取り、購読経路と同じディスパッチャで同期的に処理するハンドラ。
// ハンドラ内部の失敗はレスポンスに反映しない。
func (s *Server) handlePublishEvent() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req publishEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeInvalidRequest, "event and payload are required")
			return
		}

		t, ok := event.Parse(req.Event)
		if !ok {
			response.Error(c, http.StatusBadRequest, response.CodeUnknownEvent, "unknown event: "+req.Event)
			return
		}

		s.dispatcher.Dispatch(c.Request.Context(), t.String(), req.Payload)

		response.OK(c, http.StatusAccepted, gin.H{"event": t.String()})
	}
}
