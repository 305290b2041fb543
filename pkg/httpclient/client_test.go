package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestGetJSON はGETリクエストの正常系と異常系を検証する。
func TestGetJSON(t *testing.T) {
	t.Parallel()

	t.Run("2xxレスポンスをデシリアライズできる", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":"course-1","title":"Go入門"}`)
		}))
		t.Cleanup(server.Close)

		var result struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		}
		if err := New(server.URL).GetJSON(context.Background(), "/api/courses/course-1", &result); err != nil {
			t.Fatalf("GetJSONに失敗: %v", err)
		}
		if result.ID != "course-1" {
			t.Errorf("id: got %s, want course-1", result.ID)
		}
		if result.Title != "Go入門" {
			t.Errorf("title: got %s, want Go入門", result.Title)
		}
	})

	t.Run("2xx以外はStatusErrorを返す", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		}))
		t.Cleanup(server.Close)

		err := New(server.URL).GetJSON(context.Background(), "/api/courses/missing", nil)
		if err == nil {
			t.Fatal("エラーが返されませんでした")
		}

		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("StatusErrorではありません: %v", err)
		}
		if statusErr.StatusCode != http.StatusNotFound {
			t.Errorf("StatusCode: got %d, want %d", statusErr.StatusCode, http.StatusNotFound)
		}
	})

	t.Run("接続できない場合はStatusError以外のエラーを返す", func(t *testing.T) {
		t.Parallel()

		// 到達不能なアドレス
		err := New("http://127.0.0.1:1").GetJSON(context.Background(), "/api/courses/1", nil)
		if err == nil {
			t.Fatal("エラーが返されませんでした")
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			t.Errorf("トランスポート障害がStatusErrorになっています: %v", err)
		}
	})

	t.Run("コンテキストのBearerトークンをAuthorizationヘッダーとして転送する", func(t *testing.T) {
		t.Parallel()

		var gotAuth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			fmt.Fprint(w, `{}`)
		}))
		t.Cleanup(server.Close)

		ctx := WithAuthorization(context.Background(), "Bearer token-123")
		if err := New(server.URL).GetJSON(ctx, "/api/users/1", nil); err != nil {
			t.Fatalf("GetJSONに失敗: %v", err)
		}
		if gotAuth != "Bearer token-123" {
			t.Errorf("Authorization: got %s, want Bearer token-123", gotAuth)
		}
	})
}

// TestPostJSON はPOSTリクエストのボディ送信を検証する。
func TestPostJSON(t *testing.T) {
	t.Parallel()

	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"n-1"}`)
	}))
	t.Cleanup(server.Close)

	var result struct {
		ID string `json:"id"`
	}
	body := map[string]string{"user_id": "user-1", "message": "テスト"}
	if err := New(server.URL).PostJSON(context.Background(), "/api/notifications", body, &result); err != nil {
		t.Fatalf("PostJSONに失敗: %v", err)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type: got %s, want application/json", gotContentType)
	}
	if result.ID != "n-1" {
		t.Errorf("id: got %s, want n-1", result.ID)
	}
}

// TestQueryPath はクエリパラメータ付きパスの生成を検証する。
func TestQueryPath(t *testing.T) {
	t.Parallel()

	t.Run("パラメータを付加する", func(t *testing.T) {
		t.Parallel()
		got := QueryPath("/api/enrollments/check", "courseId", "course-1")
		want := "/api/enrollments/check?courseId=course-1"
		if got != want {
			t.Errorf("got %s, want %s", got, want)
		}
	})

	t.Run("パラメータが無い場合はパスをそのまま返す", func(t *testing.T) {
		t.Parallel()
		got := QueryPath("/api/enrollments/check")
		if got != "/api/enrollments/check" {
			t.Errorf("got %s, want /api/enrollments/check", got)
		}
	})

	t.Run("値はURLエンコードされる", func(t *testing.T) {
		t.Parallel()
		got := QueryPath("/api/enrollments/check", "courseId", "a b")
		want := "/api/enrollments/check?courseId=a+b"
		if got != want {
			t.Errorf("got %s, want %s", got, want)
		}
	})
}

// TestClassify はクロスサービス検証結果の3値分類を検証する。
func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"エラー無しはconfirmed", nil, OutcomeConfirmed},
		{"404はrejected", &StatusError{StatusCode: http.StatusNotFound}, OutcomeRejected},
		{"500はindeterminate", &StatusError{StatusCode: http.StatusInternalServerError}, OutcomeIndeterminate},
		{"502はindeterminate", &StatusError{StatusCode: http.StatusBadGateway}, OutcomeIndeterminate},
		{"ラップされた404もrejected", fmt.Errorf("検証に失敗: %w", &StatusError{StatusCode: http.StatusNotFound}), OutcomeRejected},
		{"トランスポート障害はindeterminate", errors.New("connection refused"), OutcomeIndeterminate},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify: got %s, want %s", got, tt.want)
			}
		})
	}
}
