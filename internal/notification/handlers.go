package notification

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/FitSync-G13/fitsync-notification-service/pkg/event"
)

// ErrContactUnavailable はユーザーの連絡先を解決できず、通知を作成しなかったことを表す。
var ErrContactUnavailable = errors.New("ユーザーの連絡先を取得できません")

// defaultProgramName はプログラム名を取得できなかった場合の表示名。
const defaultProgramName = "Training Program"

// Handlers はイベントごとの通知作成処理をまとめたもの。
type Handlers struct {
	store    Store
	resolver ContactResolver
	sender   Sender
	logger   *zap.Logger
}

// NewHandlers は新しいHandlersを生成する。
func NewHandlers(store Store, resolver ContactResolver, sender Sender, logger *zap.Logger) *Handlers {
	return &Handlers{
		store:    store,
		resolver: resolver,
		sender:   sender,
		logger:   logger,
	}
}

// Routes はイベント種別からハンドラへの対応表を返す。NewDispatcherにそのまま渡す。
func (h *Handlers) Routes() map[event.Type]HandlerFunc {
	return map[event.Type]HandlerFunc{
		event.TypeBookingCreated:    h.BookingCreated,
		event.TypeBookingCancelled:  h.BookingCancelled,
		event.TypeBookingCompleted:  h.BookingCompleted,
		event.TypeProgramAssigned:   h.ProgramAssigned,
		event.TypeProgramCompleted:  h.ProgramCompleted,
		event.TypeAchievementEarned: h.AchievementEarned,
		event.TypeMilestoneReached:  h.MilestoneReached,
	}
}

// BookingCreated は予約確定の通知を作成する。連絡先は解決しない。
func (h *Handlers) BookingCreated(ctx context.Context, payload []byte) error {
	data, err := event.Decode[event.BookingCreatedData](payload)
	if err != nil {
		return err
	}

	return h.notify(ctx, data.ClientID, "", Draft{
		Type:     TypeBookingConfirmation,
		Category: CategoryBookingConfirmation,
		Title:    "Booking Confirmed",
		Message:  fmt.Sprintf("Your training session has been confirmed for %s at %s.", data.BookingDate, data.StartTime),
		Metadata: map[string]any{
			"booking_id":   data.BookingID,
			"booking_date": data.BookingDate,
			"start_time":   data.StartTime,
		},
	})
}

// BookingCancelled は予約キャンセルの通知を作成する。理由が無い場合も本文末尾の空白は残す。
func (h *Handlers) BookingCancelled(ctx context.Context, payload []byte) error {
	data, err := event.Decode[event.BookingCancelledData](payload)
	if err != nil {
		return err
	}

	reason := ""
	if data.Reason != "" {
		reason = "Reason: " + data.Reason
	}

	return h.notify(ctx, data.ClientID, "", Draft{
		Type:     TypeBookingCancellation,
		Category: CategoryBookingReminder,
		Title:    "Booking Cancelled",
		Message:  "Your booking has been cancelled. " + reason,
		Metadata: map[string]any{
			"booking_id": data.BookingID,
		},
	})
}

// BookingCompleted はセッション完了の通知を作成する。
func (h *Handlers) BookingCompleted(ctx context.Context, payload []byte) error {
	data, err := event.Decode[event.BookingCompletedData](payload)
	if err != nil {
		return err
	}

	user, ok := h.resolver.GetUserContact(ctx, data.ClientID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrContactUnavailable, data.ClientID)
	}

	return h.notify(ctx, data.ClientID, user.Email, Draft{
		Type:     TypeBookingCompleted,
		Category: CategoryBookingConfirmation,
		Title:    "Session Completed",
		Message:  fmt.Sprintf("Great job, %s! Your training session has been completed.", user.FirstName),
		Metadata: map[string]any{
			"booking_id": data.BookingID,
		},
	})
}

// ProgramAssigned はプログラム割り当ての通知を作成する。
// プログラム情報を取得できない場合も既定の名前で通知する。
func (h *Handlers) ProgramAssigned(ctx context.Context, payload []byte) error {
	data, err := event.Decode[event.ProgramAssignedData](payload)
	if err != nil {
		return err
	}

	user, ok := h.resolver.GetUserContact(ctx, data.ClientID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrContactUnavailable, data.ClientID)
	}

	name := defaultProgramName
	if program, ok := h.resolver.GetProgramDetails(ctx, data.ProgramID); ok && program.Name != "" {
		name = program.Name
	}

	metadata := map[string]any{"program_id": data.ProgramID}
	if data.WorkoutPlanID != "" {
		metadata["workout_plan_id"] = data.WorkoutPlanID
	}
	if data.DietPlanID != "" {
		metadata["diet_plan_id"] = data.DietPlanID
	}

	return h.notify(ctx, data.ClientID, user.Email, Draft{
		Type:     TypeProgramAssigned,
		Category: CategoryProgramAssigned,
		Title:    "New Program Assigned",
		Message:  fmt.Sprintf("You have been assigned a new training program: %s.", name),
		Metadata: metadata,
	})
}

// ProgramCompleted はプログラム完了の通知を作成する。
func (h *Handlers) ProgramCompleted(ctx context.Context, payload []byte) error {
	data, err := event.Decode[event.ProgramCompletedData](payload)
	if err != nil {
		return err
	}

	user, ok := h.resolver.GetUserContact(ctx, data.ClientID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrContactUnavailable, data.ClientID)
	}

	return h.notify(ctx, data.ClientID, user.Email, Draft{
		Type:     TypeProgramCompleted,
		Category: CategoryProgramAssigned,
		Title:    "Program Completed",
		Message:  fmt.Sprintf("Congratulations %s! You have completed your training program.", user.FirstName),
		Metadata: map[string]any{
			"program_id": data.ProgramID,
		},
	})
}

// AchievementEarned は実績獲得の通知を作成する。実績名が無い場合は種類を表示する。
func (h *Handlers) AchievementEarned(ctx context.Context, payload []byte) error {
	data, err := event.Decode[event.AchievementEarnedData](payload)
	if err != nil {
		return err
	}

	user, ok := h.resolver.GetUserContact(ctx, data.UserID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrContactUnavailable, data.UserID)
	}

	name := data.Name
	if name == "" {
		name = data.Type
	}

	metadata := map[string]any{"achievement_id": data.AchievementID}
	if data.Type != "" {
		metadata["type"] = data.Type
	}

	return h.notify(ctx, data.UserID, user.Email, Draft{
		Type:     TypeAchievement,
		Category: CategoryAchievement,
		Title:    "Achievement Unlocked!",
		Message:  fmt.Sprintf("Congratulations %s! You earned the \"%s\" achievement.", user.FirstName, name),
		Metadata: metadata,
	})
}

// MilestoneReached はマイルストーン到達の通知を作成する。メタデータはペイロード全体。
func (h *Handlers) MilestoneReached(ctx context.Context, payload []byte) error {
	data, err := event.Decode[event.MilestoneReachedData](payload)
	if err != nil {
		return err
	}

	user, ok := h.resolver.GetUserContact(ctx, data.UserID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrContactUnavailable, data.UserID)
	}

	return h.notify(ctx, data.UserID, user.Email, Draft{
		Type:     TypeMilestone,
		Category: CategoryAchievement,
		Title:    "Milestone Reached!",
		Message:  fmt.Sprintf("Congratulations %s! You reached a new milestone: %s.", user.FirstName, data.Milestone),
		Metadata: data.Raw,
	})
}

// notify はメールを送信してから通知を保存する。送信の失敗は記録するだけで保存は続行する。
func (h *Handlers) notify(ctx context.Context, userID, to string, draft Draft) error {
	err := h.sender.Send(ctx, Email{
		UserID:  userID,
		To:      to,
		Subject: draft.Title,
		Body:    draft.Message,
	})
	if err != nil {
		h.logger.Warn("メール送信に失敗しました",
			zap.String("user_id", userID),
			zap.String("type", string(draft.Type)),
			zap.Error(err),
		)
	}

	n, err := h.store.Append(ctx, userID, draft)
	if err != nil {
		return fmt.Errorf("通知の保存に失敗: %w", err)
	}

	h.logger.Info("通知を作成しました",
		zap.String("notification_id", n.ID),
		zap.String("user_id", userID),
		zap.String("type", string(n.Type)),
	)
	return nil
}
