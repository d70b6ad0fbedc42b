package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/FitSync-G13/fitsync-notification-service/pkg/event"
)

// EventDispatcher はイベントを受け取って処理する。Dispatcherが実装する。
type EventDispatcher interface {
	Dispatch(ctx context.Context, name string, payload []byte)
}

// Subscriber はRedis Pub/Subの各イベントチャンネルを購読し、受信したメッセージを
// 1件ずつ別のゴルーチンでディスパッチする。完了順は受信順と一致しない場合がある。
type Subscriber struct {
	client     *redis.Client
	dispatcher EventDispatcher
	logger     *zap.Logger
	wg         sync.WaitGroup
}

// NewSubscriber は新しいSubscriberを生成する。
func NewSubscriber(client *redis.Client, dispatcher EventDispatcher, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		client:     client,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Channels は購読するチャンネル名の一覧を返す。チャンネル名はイベント名と同じ。
func Channels() []string {
	types := event.Types()
	channels := make([]string, 0, len(types))
	for _, t := range types {
		channels = append(channels, t.String())
	}
	return channels
}

// Run は購読を開始し、ctxがキャンセルされるまでブロックする。
// 終了時は処理中のハンドラの完了を待つ。
func (s *Subscriber) Run(ctx context.Context) error {
	channels := Channels()
	pubsub := s.client.Subscribe(ctx, channels...)
	defer func() { _ = pubsub.Close() }()

	// 購読の確立を待つ
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("イベントチャンネルの購読に失敗: %w", err)
	}
	s.logger.Info("イベントの購読を開始しました", zap.Strings("channels", channels))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.logger.Info("イベントの購読を終了しました")
			return nil
		case msg, ok := <-ch:
			if !ok {
				s.wg.Wait()
				return errors.New("イベントチャンネルが閉じられました")
			}
			s.handle(ctx, msg.Channel, []byte(msg.Payload))
		}
	}
}

// handle はメッセージを別のゴルーチンでディスパッチする。
// 購読の終了で処理中のハンドラが中断されないよう、キャンセルを伝播しないコンテキストを渡す。
func (s *Subscriber) handle(ctx context.Context, channel string, payload []byte) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.dispatcher.Dispatch(context.WithoutCancel(ctx), channel, payload)
	}()
}

// Wait は処理中のハンドラが全て完了するまで待つ。
func (s *Subscriber) Wait() {
	s.wg.Wait()
}
