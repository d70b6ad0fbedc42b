package notification

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"
)

// Email は送信するメール1通。
type Email struct {
	// UserID は宛先ユーザーのID。ログ出力用。
	UserID string
	// To は宛先メールアドレス。連絡先を解決しないイベントでは空になる。
	To string
	// Subject は件名。
	Subject string
	// Body は本文（プレーンテキスト）。
	Body string
}

// Sender はメールを送信する。ハンドラは送信結果を待たずに通知の保存へ進むため、
// 返されたエラーはログにのみ記録される。
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// LogSender は実際には送信せず、ログに記録するだけのSender。開発環境とテストで使う。
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender は新しいLogSenderを生成する。
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send はメール内容をログに出力し、常に成功する。
func (s *LogSender) Send(_ context.Context, email Email) error {
	s.logger.Info("メールを送信しました（モック）",
		zap.String("user_id", email.UserID),
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
	)
	return nil
}

// sendMailFunc はnet/smtp.SendMailと同じシグネチャ。テストで差し替える。
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender はSMTPでメールを配送するSender。
type SMTPSender struct {
	addr     string
	auth     smtp.Auth
	from     *mail.Address
	logger   *zap.Logger
	sendMail sendMailFunc
}

// NewSMTPSender は新しいSMTPSenderを生成する。usernameが空の場合は認証を行わない。
func NewSMTPSender(host string, port int, username, password, from string, logger *zap.Logger) (*SMTPSender, error) {
	fromAddr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("送信元アドレスが不正です: %q: %w", from, err)
	}

	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	return &SMTPSender{
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		auth:     auth,
		from:     fromAddr,
		logger:   logger,
		sendMail: smtp.SendMail,
	}, nil
}

// Send はメールを組み立ててSMTPサーバーへ送る。宛先が空の場合は何もしない。
func (s *SMTPSender) Send(_ context.Context, email Email) error {
	if email.To == "" {
		s.logger.Debug("宛先が無いためメール送信をスキップしました",
			zap.String("user_id", email.UserID),
			zap.String("subject", email.Subject),
		)
		return nil
	}

	msg, err := s.compose(email)
	if err != nil {
		return err
	}
	if err := s.sendMail(s.addr, s.auth, s.from.Address, []string{email.To}, msg); err != nil {
		return fmt.Errorf("メール送信に失敗: %w", err)
	}

	s.logger.Info("メールを送信しました",
		zap.String("user_id", email.UserID),
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
	)
	return nil
}

// compose はRFC 5322形式のメッセージを生成する。
func (s *SMTPSender) compose(email Email) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{s.from})
	h.SetAddressList("To", []*mail.Address{{Address: email.To}})
	h.SetSubject(email.Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("Message-IDの生成に失敗: %w", err)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("メッセージの生成に失敗: %w", err)
	}
	if _, err := io.WriteString(w, email.Body); err != nil {
		return nil, fmt.Errorf("本文の書き込みに失敗: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("メッセージの生成に失敗: %w", err)
	}
	return buf.Bytes(), nil
}
