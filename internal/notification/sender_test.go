package notification

import (
	"bytes"
	"errors"
	"io"
	"net/smtp"
	"testing"

	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogSender はLogSenderが送信内容をログに記録することを検証する。
func TestLogSender(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	s := NewLogSender(zap.New(core))

	err := s.Send(t.Context(), Email{UserID: "u1", To: "alice@example.com", Subject: "Session Completed", Body: "Great job"})
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("ログの件数: got %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["to"] != "alice@example.com" {
		t.Errorf("to: got %v, want alice@example.com", fields["to"])
	}
	if fields["subject"] != "Session Completed" {
		t.Errorf("subject: got %v, want Session Completed", fields["subject"])
	}
}

// sentMail はテスト用に差し替えたsendMailが受け取った引数。
type sentMail struct {
	addr string
	from string
	to   []string
	msg  []byte
}

// newTestSMTPSender は送信を記録するだけのSMTPSenderを生成する。
func newTestSMTPSender(t *testing.T, sendErr error) (*SMTPSender, *[]sentMail) {
	t.Helper()

	s, err := NewSMTPSender("smtp.example.com", 587, "", "", "FitSync <noreply@fitsync.example.com>", zap.NewNop())
	if err != nil {
		t.Fatalf("SMTPSenderの作成に失敗: %v", err)
	}
	var sent []sentMail
	s.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, sentMail{addr: addr, from: from, to: to, msg: msg})
		return sendErr
	}
	return s, &sent
}

// TestSMTPSender はSMTPSenderのメッセージ生成と送信を検証する。
func TestSMTPSender(t *testing.T) {
	t.Parallel()

	t.Run("メッセージを組み立てて送信すること", func(t *testing.T) {
		t.Parallel()
		s, sent := newTestSMTPSender(t, nil)

		err := s.Send(t.Context(), Email{
			UserID:  "u1",
			To:      "alice@example.com",
			Subject: "Achievement Unlocked!",
			Body:    "Congratulations Alice!",
		})
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if len(*sent) != 1 {
			t.Fatalf("送信回数: got %d, want 1", len(*sent))
		}

		got := (*sent)[0]
		if got.addr != "smtp.example.com:587" {
			t.Errorf("addr: got %s, want smtp.example.com:587", got.addr)
		}
		if got.from != "noreply@fitsync.example.com" {
			t.Errorf("from: got %s", got.from)
		}
		if len(got.to) != 1 || got.to[0] != "alice@example.com" {
			t.Errorf("to: got %v", got.to)
		}

		r, err := mail.CreateReader(bytes.NewReader(got.msg))
		if err != nil {
			t.Fatalf("メッセージの解析に失敗: %v", err)
		}
		subject, err := r.Header.Subject()
		if err != nil {
			t.Fatalf("件名の取得に失敗: %v", err)
		}
		if subject != "Achievement Unlocked!" {
			t.Errorf("件名: got %q", subject)
		}
		if id, err := r.Header.MessageID(); err != nil || id == "" {
			t.Errorf("Message-IDが設定されていない: %v", err)
		}

		part, err := r.NextPart()
		if err != nil {
			t.Fatalf("本文の取得に失敗: %v", err)
		}
		body, err := io.ReadAll(part.Body)
		if err != nil {
			t.Fatalf("本文の読み込みに失敗: %v", err)
		}
		if string(body) != "Congratulations Alice!" {
			t.Errorf("本文: got %q", body)
		}
	})

	t.Run("宛先が無い場合は送信しないこと", func(t *testing.T) {
		t.Parallel()
		s, sent := newTestSMTPSender(t, nil)

		if err := s.Send(t.Context(), Email{UserID: "u1", Subject: "Booking Confirmed"}); err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if len(*sent) != 0 {
			t.Errorf("送信回数: got %d, want 0", len(*sent))
		}
	})

	t.Run("送信に失敗した場合はエラーを返すこと", func(t *testing.T) {
		t.Parallel()
		sendErr := errors.New("connection refused")
		s, _ := newTestSMTPSender(t, sendErr)

		err := s.Send(t.Context(), Email{UserID: "u1", To: "alice@example.com", Subject: "x", Body: "y"})
		if !errors.Is(err, sendErr) {
			t.Errorf("エラー: got %v, want %v", err, sendErr)
		}
	})
}

// TestNewSMTPSender は送信元アドレスの検証を確認する。
func TestNewSMTPSender(t *testing.T) {
	t.Parallel()

	if _, err := NewSMTPSender("localhost", 25, "", "", "not an address", zap.NewNop()); err == nil {
		t.Error("不正な送信元アドレスでエラーにならなかった")
	}
}
