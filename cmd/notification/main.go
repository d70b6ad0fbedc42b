// 通知サービスのエントリポイント。
// Redis Pub/Subでドメインイベントを購読し、ユーザーへの通知を生成・保存する。
// 保存した通知はHTTP APIで参照・既読化・削除できる。
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/FitSync-G13/fitsync-notification-service/internal/config"
	"github.com/FitSync-G13/fitsync-notification-service/internal/notification"
	"github.com/FitSync-G13/fitsync-notification-service/pkg/httpclient"
	"github.com/FitSync-G13/fitsync-notification-service/pkg/logger"
)

// serviceName はサービストークンの発行者名。
const serviceName = "notification-service"

// shutdownTimeout はHTTPサーバーの停止待ち時間。
const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	l, err := logger.New(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗: %v", err)
	}
	defer func() { _ = l.Sync() }()

	if err := run(cfg, l); err != nil {
		l.Error("通知サービスが異常終了しました", zap.Error(err))
		_ = l.Sync()
		os.Exit(1)
	}
}

// run は依存関係を組み立ててサービスを起動し、終了シグナルを受けるまでブロックする。
func run(cfg *config.Config, l *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newStore(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer closeStore()

	sender, err := newSender(cfg, l)
	if err != nil {
		return err
	}

	clientOpts := []httpclient.Option{
		httpclient.WithTimeout(cfg.ServiceClientTimeout),
		httpclient.WithServiceToken(cfg.ServiceJWTSecret, serviceName),
	}
	resolver := notification.NewResolver(
		httpclient.New(cfg.UserServiceURL, clientOpts...),
		httpclient.New(cfg.ProgramServiceURL, clientOpts...),
		httpclient.New(cfg.BookingServiceURL, clientOpts...),
		l.Named("resolver"),
	)

	handlers := notification.NewHandlers(store, resolver, sender, l.Named("handler"))
	dispatcher, err := notification.NewDispatcher(handlers.Routes(), l.Named("dispatcher"))
	if err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rdb.Close() }()

	subscriber := notification.NewSubscriber(rdb, dispatcher, l.Named("subscriber"))
	subErr := make(chan error, 1)
	go func() {
		subErr <- subscriber.Run(ctx)
	}()

	gin.SetMode(ginMode(cfg))
	server := notification.NewServer(store, dispatcher, l.Named("http"), cfg.CORSAllowedOrigins)
	httpServer := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpErr := make(chan error, 1)
	go func() {
		l.Info("通知サービスを起動します", zap.String("addr", httpServer.Addr), zap.String("env", cfg.Env))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		l.Info("終了シグナルを受信しました")
	case err := <-httpErr:
		stop()
		return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
	case err := <-subErr:
		// Redisに接続できなくてもHTTP APIは提供を続ける
		if err != nil {
			l.Error("イベントの購読が停止しました", zap.Error(err))
		}
		<-ctx.Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTPサーバーの停止に失敗: %w", err)
	}
	subscriber.Wait()
	l.Info("通知サービスを停止しました")
	return nil
}

// newStore は設定に応じた通知ストアと、その後始末をする関数を返す。
func newStore(ctx context.Context, cfg *config.Config, l *zap.Logger) (notification.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreDriverSQLite:
		s, err := notification.NewSQLiteStore(ctx, cfg.Store.DSN, l.Named("store"))
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return notification.NewMemoryStore(), func() {}, nil
	}
}

// newSender は設定に応じたメール送信方式を返す。
func newSender(cfg *config.Config, l *zap.Logger) (notification.Sender, error) {
	switch cfg.Mail.Driver {
	case config.MailDriverSMTP:
		s, err := notification.NewSMTPSender(
			cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.From,
			l.Named("mail"),
		)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return notification.NewLogSender(l.Named("mail")), nil
	}
}

// ginMode は環境に応じたGinの動作モードを返す。開発環境以外ではルート一覧などのデバッグ出力を抑止する。
func ginMode(cfg *config.Config) string {
	if cfg.IsDevelopment() {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}
