package notification

import (
	"context"
	"errors"
	"net/url"

	"go.uber.org/zap"

	"github.com/FitSync-G13/fitsync-notification-service/pkg/httpclient"
)

// User はユーザーサービスから取得する連絡先情報。
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Role      string `json:"role,omitempty"`
}

// Program はプログラムサービスから取得するトレーニングプログラム。
type Program struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TrainerID   string `json:"trainer_id,omitempty"`
}

// Booking は予約サービスから取得する予約。
type Booking struct {
	ID          string `json:"id"`
	ClientID    string `json:"client_id"`
	TrainerID   string `json:"trainer_id"`
	BookingDate string `json:"booking_date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time,omitempty"`
	Status      string `json:"status,omitempty"`
}

// ContactResolver はIDを通知本文に必要な情報に変換する。
// 取得に失敗した場合はエラーを返さず、不在（falseまたは空スライス）として扱う。
type ContactResolver interface {
	GetUserContact(ctx context.Context, userID string) (*User, bool)
	GetUsersBatch(ctx context.Context, userIDs []string) []User
	GetProgramDetails(ctx context.Context, programID string) (*Program, bool)
	GetBookingDetails(ctx context.Context, bookingID string) (*Booking, bool)
}

// dataEnvelope は各サービスのレスポンス形式 {data: ...}。
type dataEnvelope[T any] struct {
	Data T `json:"data"`
}

// Resolver はユーザー・プログラム・予約の各サービスをHTTPで呼び出すContactResolver。
// リトライは行わず、タイムアウトはhttpclientの設定に従う。
type Resolver struct {
	users    *httpclient.Client
	programs *httpclient.Client
	bookings *httpclient.Client
	logger   *zap.Logger
}

var _ ContactResolver = (*Resolver)(nil)

// NewResolver は新しいResolverを生成する。
func NewResolver(users, programs, bookings *httpclient.Client, logger *zap.Logger) *Resolver {
	return &Resolver{
		users:    users,
		programs: programs,
		bookings: bookings,
		logger:   logger,
	}
}

// GetUserContact はユーザーの連絡先を取得する。
func (r *Resolver) GetUserContact(ctx context.Context, userID string) (*User, bool) {
	if userID == "" {
		return nil, false
	}
	var resp dataEnvelope[*User]
	if err := r.users.GetJSON(ctx, "/api/users/"+url.PathEscape(userID), &resp); err != nil {
		r.logFailure("ユーザー情報の取得に失敗", err, zap.String("user_id", userID))
		return nil, false
	}
	if resp.Data == nil {
		r.logger.Warn("ユーザー情報が空です", zap.String("user_id", userID))
		return nil, false
	}
	return resp.Data, true
}

// batchRequest はユーザー一括取得のリクエストボディ。
type batchRequest struct {
	UserIDs []string `json:"user_ids"`
}

// GetUsersBatch は複数ユーザーの連絡先をまとめて取得する。
// 失敗時は空のスライスを返す。存在しないIDは結果に含まれないため、要求数より少ないことがある。
func (r *Resolver) GetUsersBatch(ctx context.Context, userIDs []string) []User {
	ids := uniqueNonEmpty(userIDs)
	if len(ids) == 0 {
		return []User{}
	}

	var resp dataEnvelope[[]User]
	if err := r.users.PostJSON(ctx, "/api/users/batch", batchRequest{UserIDs: ids}, &resp); err != nil {
		r.logFailure("ユーザー情報の一括取得に失敗", err, zap.Int("count", len(ids)))
		return []User{}
	}
	if resp.Data == nil {
		return []User{}
	}
	return resp.Data
}

// GetProgramDetails はプログラムの詳細を取得する。
func (r *Resolver) GetProgramDetails(ctx context.Context, programID string) (*Program, bool) {
	if programID == "" {
		return nil, false
	}
	var resp dataEnvelope[*Program]
	if err := r.programs.GetJSON(ctx, "/api/programs/"+url.PathEscape(programID), &resp); err != nil {
		r.logFailure("プログラム情報の取得に失敗", err, zap.String("program_id", programID))
		return nil, false
	}
	if resp.Data == nil {
		return nil, false
	}
	return resp.Data, true
}

// GetBookingDetails は予約の詳細を取得する。
func (r *Resolver) GetBookingDetails(ctx context.Context, bookingID string) (*Booking, bool) {
	if bookingID == "" {
		return nil, false
	}
	var resp dataEnvelope[*Booking]
	if err := r.bookings.GetJSON(ctx, "/api/bookings/"+url.PathEscape(bookingID), &resp); err != nil {
		r.logFailure("予約情報の取得に失敗", err, zap.String("booking_id", bookingID))
		return nil, false
	}
	if resp.Data == nil {
		return nil, false
	}
	return resp.Data, true
}

// logFailure は呼び出し失敗を記録する。接続先のステータスが分かる場合はそれも出力する。
func (r *Resolver) logFailure(msg string, err error, fields ...zap.Field) {
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		fields = append(fields, zap.Int("status", statusErr.StatusCode))
	}
	r.logger.Warn(msg, append(fields, zap.Error(err))...)
}

// uniqueNonEmpty は空文字と重複を除き、出現順を保ったスライスを返す。
func uniqueNonEmpty(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
