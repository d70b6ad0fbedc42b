package notification

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"go.uber.org/zap"

	"github.com/FitSync-G13/fitsync-notification-service/pkg/event"
)

// ErrHandlerMissing はイベント種別に対応するハンドラが登録されていないことを表す。
var ErrHandlerMissing = errors.New("ハンドラが登録されていないイベント種別があります")

// HandlerFunc は1件のイベントペイロードを処理する関数。
type HandlerFunc func(ctx context.Context, payload []byte) error

// Dispatcher はイベント名に応じてハンドラを呼び出す。
// ハンドラの結果は呼び出し元へ返さず、ログにのみ記録する。
type Dispatcher struct {
	handlers map[event.Type]HandlerFunc
	logger   *zap.Logger
}

// NewDispatcher は新しいDispatcherを生成する。
// event.Typesの全ての種別にハンドラが無い場合はエラーを返す。
func NewDispatcher(handlers map[event.Type]HandlerFunc, logger *zap.Logger) (*Dispatcher, error) {
	var missing []string
	for _, t := range event.Types() {
		if handlers[t] == nil {
			missing = append(missing, t.String())
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrHandlerMissing, strings.Join(missing, ", "))
	}

	return &Dispatcher{
		handlers: maps.Clone(handlers),
		logger:   logger,
	}, nil
}

// Dispatch はイベントをハンドラに渡す。未知のイベント名は破棄する。
// ハンドラのエラーとパニックはここで記録し、呼び出し元には伝えない。
func (d *Dispatcher) Dispatch(ctx context.Context, name string, payload []byte) {
	t, ok := event.Parse(name)
	if !ok {
		d.logger.Debug("未知のイベントを破棄しました", zap.String("event", name))
		return
	}
	handler, ok := d.handlers[t]
	if !ok {
		d.logger.Debug("未知のイベントを破棄しました", zap.String("event", name))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("イベント処理中にパニックが発生しました",
				zap.String("event", name),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()

	if err := handler(ctx, payload); err != nil {
		d.logger.Warn("イベントを処理せずに破棄しました",
			zap.String("event", name),
			zap.Error(err),
		)
		return
	}
	d.logger.Debug("イベントを処理しました", zap.String("event", name))
}
