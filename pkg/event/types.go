package event

import (
	"encoding/json"
	"fmt"
)

// Type はイベントの種類を表す。値はPub/Subのチャンネル名と一致する。
type Type string

const (
	// TypeBookingCreated は予約が作成されたことを表す。
	TypeBookingCreated Type = "booking.created"
	// TypeBookingCancelled は予約がキャンセルされたことを表す。
	TypeBookingCancelled Type = "booking.cancelled"
	// TypeBookingCompleted はトレーニングセッションが完了したことを表す。
	TypeBookingCompleted Type = "booking.completed"
	// TypeProgramAssigned はクライアントにプログラムが割り当てられたことを表す。
	TypeProgramAssigned Type = "program.assigned"
	// TypeProgramCompleted はクライアントがプログラムを完了したことを表す。
	TypeProgramCompleted Type = "program.completed"
	// TypeAchievementEarned はユーザーが実績を獲得したことを表す。
	TypeAchievementEarned Type = "achievement.earned"
	// TypeMilestoneReached はユーザーがマイルストーンに到達したことを表す。
	TypeMilestoneReached Type = "milestone.reached"
)

// Types は通知サービスが購読する全イベント種別を返す。
// ディスパッチャはこの一覧の全要素にハンドラを持たなければならない。
func Types() []Type {
	return []Type{
		TypeBookingCreated,
		TypeBookingCancelled,
		TypeBookingCompleted,
		TypeProgramAssigned,
		TypeProgramCompleted,
		TypeAchievementEarned,
		TypeMilestoneReached,
	}
}

// Parse はチャンネル名をイベント種別に変換する。未知の名前の場合はfalseを返す。
func Parse(name string) (Type, bool) {
	for _, t := range Types() {
		if string(t) == name {
			return t, true
		}
	}
	return "", false
}

// String はイベント種別の文字列表現を返す。
func (t Type) String() string {
	return string(t)
}

// Validator は必須フィールドを検証できるペイロードを表す。
type Validator interface {
	Validate() error
}

// requireFields は空文字列のフィールドがあればErrMissingFieldを返す。
// fieldsはJSONフィールド名と値の組を交互に並べたもの。
func requireFields(fields ...string) error {
	for i := 0; i+1 < len(fields); i += 2 {
		if fields[i+1] == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, fields[i])
		}
	}
	return nil
}

// BookingCreatedData はbooking.createdイベントのデータ。
type BookingCreatedData struct {
	// BookingID は予約ID。
	BookingID string `json:"booking_id"`
	// ClientID は予約したクライアントのユーザーID。
	ClientID string `json:"client_id"`
	// TrainerID は担当トレーナーのユーザーID。
	TrainerID string `json:"trainer_id,omitempty"`
	// BookingDate は予約日（例: 2025-01-15）。
	BookingDate string `json:"booking_date"`
	// StartTime は開始時刻（例: 10:00）。
	StartTime string `json:"start_time"`
	// EndTime は終了時刻。
	EndTime string `json:"end_time,omitempty"`
}

// Validate は必須フィールドを検証する。
func (d *BookingCreatedData) Validate() error {
	return requireFields(
		"booking_id", d.BookingID,
		"client_id", d.ClientID,
		"booking_date", d.BookingDate,
		"start_time", d.StartTime,
	)
}

// BookingCancelledData はbooking.cancelledイベントのデータ。
type BookingCancelledData struct {
	// BookingID は予約ID。
	BookingID string `json:"booking_id"`
	// ClientID は予約したクライアントのユーザーID。
	ClientID string `json:"client_id"`
	// Reason はキャンセル理由。省略可能。
	Reason string `json:"reason,omitempty"`
}

// Validate は必須フィールドを検証する。
func (d *BookingCancelledData) Validate() error {
	return requireFields("booking_id", d.BookingID, "client_id", d.ClientID)
}

// BookingCompletedData はbooking.completedイベントのデータ。
type BookingCompletedData struct {
	BookingID string `json:"booking_id"`
	ClientID  string `json:"client_id"`
}

// Validate は必須フィールドを検証する。
func (d *BookingCompletedData) Validate() error {
	return requireFields("booking_id", d.BookingID, "client_id", d.ClientID)
}

// ProgramAssignedData はprogram.assignedイベントのデータ。
type ProgramAssignedData struct {
	// ProgramID は割り当てられたプログラムのID。
	ProgramID string `json:"program_id"`
	// ClientID は割り当て先クライアントのユーザーID。
	ClientID string `json:"client_id"`
	// WorkoutPlanID はワークアウトプランのID。省略可能。
	WorkoutPlanID string `json:"workout_plan_id,omitempty"`
	// DietPlanID は食事プランのID。省略可能。
	DietPlanID string `json:"diet_plan_id,omitempty"`
}

// Validate は必須フィールドを検証する。
func (d *ProgramAssignedData) Validate() error {
	return requireFields("program_id", d.ProgramID, "client_id", d.ClientID)
}

// ProgramCompletedData はprogram.completedイベントのデータ。
type ProgramCompletedData struct {
	ProgramID string `json:"program_id"`
	ClientID  string `json:"client_id"`
}

// Validate は必須フィールドを検証する。
func (d *ProgramCompletedData) Validate() error {
	return requireFields("program_id", d.ProgramID, "client_id", d.ClientID)
}

// AchievementEarnedData はachievement.earnedイベントのデータ。
type AchievementEarnedData struct {
	// UserID は実績を獲得したユーザーのID。
	UserID string `json:"user_id"`
	// AchievementID は実績ID。
	AchievementID string `json:"achievement_id"`
	// Type は実績の種類（例: streak, first_session）。
	Type string `json:"type,omitempty"`
	// Name は表示用の実績名。省略時はTypeを使う。
	Name string `json:"name,omitempty"`
}

// Validate は必須フィールドを検証する。
func (d *AchievementEarnedData) Validate() error {
	return requireFields("user_id", d.UserID, "achievement_id", d.AchievementID)
}

// MilestoneReachedData はmilestone.reachedイベントのデータ。
// 通知のメタデータにはペイロード全体を保存するため、元のJSONをRawに保持する。
type MilestoneReachedData struct {
	// UserID はマイルストーンに到達したユーザーのID。
	UserID string `json:"user_id"`
	// Milestone はマイルストーンの説明（例: 10 sessions completed）。
	Milestone string `json:"milestone"`
	// Value はマイルストーンに関連する値。送信元によって数値と文字列が混在するため解釈しない。
	Value json.RawMessage `json:"value,omitempty"`
	// Raw はペイロード全体。
	Raw map[string]any `json:"-"`
}

// Validate は必須フィールドを検証する。
func (d *MilestoneReachedData) Validate() error {
	return requireFields("user_id", d.UserID, "milestone", d.Milestone)
}

// UnmarshalJSON は型付きフィールドに加えてペイロード全体をRawに保持する。
func (d *MilestoneReachedData) UnmarshalJSON(b []byte) error {
	type plain MilestoneReachedData
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*d = MilestoneReachedData(p)
	d.Raw = raw
	return nil
}
