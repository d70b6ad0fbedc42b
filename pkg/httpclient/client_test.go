package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// testUser はテスト用のレスポンスペイロード。
type testUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("タイムアウトが既定で5秒に設定されていること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:3001")
		if client.baseURL != "http://localhost:3001" {
			t.Errorf("baseURL = %q, want %q", client.baseURL, "http://localhost:3001")
		}
		if client.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want 5s", client.httpClient.Timeout)
		}
	})

	t.Run("WithTimeoutでタイムアウトを変更できること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:3001", WithTimeout(2*time.Second))
		if client.httpClient.Timeout != 2*time.Second {
			t.Errorf("Timeout = %v, want 2s", client.httpClient.Timeout)
		}
	})

	t.Run("WithTimeoutに0以下を渡しても既定値が維持されること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:3001", WithTimeout(0))
		if client.httpClient.Timeout != DefaultTimeout {
			t.Errorf("Timeout = %v, want %v", client.httpClient.Timeout, DefaultTimeout)
		}
	})
}

// TestGetJSON はGetJSON関数を検証する。
func TestGetJSON(t *testing.T) {
	t.Parallel()

	t.Run("正常にGETリクエストを送信してレスポンスを取得できること", func(t *testing.T) {
		t.Parallel()

		var gotMethod, gotPath, gotAuth string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(testUser{ID: "u1", Email: "u1@example.com"})
		}))
		defer ts.Close()

		var result testUser
		if err := New(ts.URL).GetJSON(context.Background(), "/api/users/u1", &result); err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}

		if gotMethod != http.MethodGet {
			t.Errorf("Method = %q, want %q", gotMethod, http.MethodGet)
		}
		if gotPath != "/api/users/u1" {
			t.Errorf("Path = %q, want %q", gotPath, "/api/users/u1")
		}
		if gotAuth != "" {
			t.Errorf("サービストークン未設定なのにAuthorizationが付与された: %q", gotAuth)
		}
		if result.Email != "u1@example.com" {
			t.Errorf("result.Email = %q, want %q", result.Email, "u1@example.com")
		}
	})

	t.Run("サーバーが404を返した場合にStatusErrorが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not found"}`))
		}))
		defer ts.Close()

		var result testUser
		err := New(ts.URL).GetJSON(context.Background(), "/api/users/none", &result)

		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("err = %v, want *StatusError", err)
		}
		if statusErr.StatusCode != http.StatusNotFound {
			t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, http.StatusNotFound)
		}
	})

	t.Run("不正なJSONレスポンスでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{invalid json}`))
		}))
		defer ts.Close()

		var result testUser
		if err := New(ts.URL).GetJSON(context.Background(), "/api/users/u1", &result); err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("タイムアウトを超えた場合にエラーが返ること", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			<-release
		}))
		defer ts.Close()
		defer close(release)

		var result testUser
		err := New(ts.URL, WithTimeout(50*time.Millisecond)).GetJSON(context.Background(), "/api/users/u1", &result)
		if err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("接続できないサーバーに対してエラーが返ること", func(t *testing.T) {
		t.Parallel()

		var result testUser
		if err := New("http://127.0.0.1:1").GetJSON(context.Background(), "/api/users/u1", &result); err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestPostJSON はPostJSON関数を検証する。
func TestPostJSON(t *testing.T) {
	t.Parallel()

	t.Run("JSONボディを送信してレスポンスを取得できること", func(t *testing.T) {
		t.Parallel()

		var gotBody []byte
		var gotContentType string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotBody, _ = io.ReadAll(r.Body)
			gotContentType = r.Header.Get("Content-Type")
			json.NewEncoder(w).Encode([]testUser{{ID: "u1"}, {ID: "u2"}})
		}))
		defer ts.Close()

		var result []testUser
		body := map[string][]string{"user_ids": {"u1", "u2"}}
		if err := New(ts.URL).PostJSON(context.Background(), "/api/users/batch", body, &result); err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}

		if gotContentType != "application/json" {
			t.Errorf("Content-Type = %q, want %q", gotContentType, "application/json")
		}
		if !strings.Contains(string(gotBody), `"user_ids":["u1","u2"]`) {
			t.Errorf("送信ボディが不正: %s", gotBody)
		}
		if len(result) != 2 {
			t.Errorf("len(result) = %d, want 2", len(result))
		}
	})

	t.Run("シリアライズ不可能なボディでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		err := New("http://127.0.0.1:1").PostJSON(context.Background(), "/api/users/batch", make(chan int), nil)
		if err == nil {
			t.Fatal("PostJSON()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestWithServiceToken はサービストークンの付与を検証する。
func TestWithServiceToken(t *testing.T) {
	t.Parallel()

	const secret = "test-secret"

	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(testUser{ID: "u1"})
	}))
	defer ts.Close()

	client := New(ts.URL, WithServiceToken(secret, "notification-service"))
	var result testUser
	if err := client.GetJSON(context.Background(), "/api/users/u1", &result); err != nil {
		t.Fatalf("GetJSON()でエラーが発生: %v", err)
	}

	tokenString, found := strings.CutPrefix(gotAuth, "Bearer ")
	if !found {
		t.Fatalf("Authorization = %q, Bearer形式ではない", gotAuth)
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		t.Fatalf("トークンの検証に失敗: %v", err)
	}
	if claims.Issuer != "notification-service" {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, "notification-service")
	}
}
