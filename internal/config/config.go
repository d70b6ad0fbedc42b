// Package config は環境変数（および任意の.envファイル）からサービス設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// メール送信方式。
const (
	MailDriverLog  = "log"
	MailDriverSMTP = "smtp"
)

// 通知ストアの実装。
const (
	StoreDriverMemory = "memory"
	StoreDriverSQLite = "sqlite"
)

// Config は通知サービスの設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `mapstructure:"port"`
	// Env は実行環境（development / production）。
	Env string `mapstructure:"app_env"`
	// LogLevel はログレベル。
	LogLevel string `mapstructure:"log_level"`

	Redis RedisConfig `mapstructure:",squash"`

	// UserServiceURL はユーザーサービスのベースURL。
	UserServiceURL string `mapstructure:"user_service_url"`
	// ProgramServiceURL はプログラムサービスのベースURL。
	ProgramServiceURL string `mapstructure:"program_service_url"`
	// BookingServiceURL は予約サービスのベースURL。
	BookingServiceURL string `mapstructure:"booking_service_url"`
	// ServiceClientTimeout はサービス間通信のタイムアウト。
	ServiceClientTimeout time.Duration `mapstructure:"service_client_timeout"`
	// ServiceJWTSecret はサービストークンの署名鍵。空の場合はトークンを付与しない。
	ServiceJWTSecret string `mapstructure:"service_jwt_secret"`

	// CORSAllowedOrigins はCORSを許可するオリジン（カンマ区切り）。
	CORSAllowedOrigins []string `mapstructure:"-"`

	Mail  MailConfig  `mapstructure:",squash"`
	Store StoreConfig `mapstructure:",squash"`
}

// RedisConfig はイベント購読に使うRedisの接続設定。
type RedisConfig struct {
	Addr     string `mapstructure:"redis_addr"`
	Password string `mapstructure:"redis_password"`
	DB       int    `mapstructure:"redis_db"`
}

// MailConfig はメール送信の設定。
type MailConfig struct {
	// Driver は送信方式（log / smtp）。
	Driver   string `mapstructure:"mail_driver"`
	Host     string `mapstructure:"smtp_host"`
	Port     int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"smtp_username"`
	Password string `mapstructure:"smtp_password"`
	From     string `mapstructure:"smtp_from"`
}

// StoreConfig は通知ストアの設定。
type StoreConfig struct {
	// Driver はストア実装（memory / sqlite）。
	Driver string `mapstructure:"store_driver"`
	// DSN はSQLiteの接続文字列。既定はインメモリ。
	DSN string `mapstructure:"store_dsn"`
}

// IsDevelopment は開発環境かどうかを返す。
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// defaults は設定キーと既定値。キーは環境変数名を小文字にしたもの。
var defaults = map[string]any{
	"port":                   "3005",
	"app_env":                "development",
	"log_level":              "info",
	"redis_addr":             "localhost:6379",
	"redis_password":         "",
	"redis_db":               0,
	"user_service_url":       "http://localhost:3001",
	"program_service_url":    "http://localhost:3002",
	"booking_service_url":    "http://localhost:3003",
	"service_client_timeout": "5s",
	"service_jwt_secret":     "",
	"cors_allowed_origins":   "",
	"mail_driver":            MailDriverLog,
	"smtp_host":              "",
	"smtp_port":              587,
	"smtp_username":          "",
	"smtp_password":          "",
	"smtp_from":              "noreply@fitsync.local",
	"store_driver":           StoreDriverMemory,
	"store_dsn":              ":memory:",
}

// Load はカレントディレクトリの.envファイル（存在する場合）と環境変数から設定を読み込む。
// .envより既に設定されている環境変数が優先される。
func Load() (*Config, error) {
	// .envが無いのは正常系
	_ = godotenv.Load()
	return load(viper.New())
}

// load はviperインスタンスから設定を組み立てて検証する。
func load(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("環境変数のバインドに失敗: %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	cfg.CORSAllowedOrigins = splitList(v.GetString("cors_allowed_origins"))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate は設定値の整合性を検証する。
func (c *Config) validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORTが空です"))
	}
	if c.ServiceClientTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SERVICE_CLIENT_TIMEOUTは正の値である必要があります: %s", c.ServiceClientTimeout))
	}
	switch c.Mail.Driver {
	case MailDriverLog:
	case MailDriverSMTP:
		if c.Mail.Host == "" {
			errs = append(errs, errors.New("MAIL_DRIVER=smtpの場合はSMTP_HOSTが必要です"))
		}
	default:
		errs = append(errs, fmt.Errorf("MAIL_DRIVERが不正です: %q", c.Mail.Driver))
	}
	switch c.Store.Driver {
	case StoreDriverMemory, StoreDriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVERが不正です: %q", c.Store.Driver))
	}
	return errors.Join(errs...)
}

// splitList はカンマ区切りの文字列を空要素を除いたスライスに変換する。
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
