package progress

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	progressdb "github.com/Arukast/UTS-IAE-Kelompok2/internal/progress/db"
	"github.com/Arukast/UTS-IAE-Kelompok2/pkg/httpclient"
	"github.com/Arukast/UTS-IAE-Kelompok2/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newMockGateway は登録確認エンドポイントを模したテスト用ゲートウェイを構築する。
// enrollStatusは登録確認が返すステータスコード。
func newMockGateway(t *testing.T, enrollStatus int) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if enrollStatus != http.StatusOK {
			w.WriteHeader(enrollStatus)
			fmt.Fprint(w, `{"error":"mock"}`)
			return
		}
		fmt.Fprint(w, `{"id":"enrollment-1","status":"active"}`)
	}))
	t.Cleanup(server.Close)
	return server
}

// setupTestServer はテスト用のprogressサーバーをインメモリSQLiteで構築する。
func setupTestServer(t *testing.T, gatewayURL string) (*Server, *gin.Engine) {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	// :memory: は接続ごとに別のDBになるため、接続を1本に固定する
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := initSchema(sqlDB); err != nil {
		t.Fatalf("スキーマ初期化に失敗: %v", err)
	}

	router := gin.New()
	s := &Server{
		router:        router,
		port:          "0",
		queries:       progressdb.New(sqlDB),
		db:            sqlDB,
		gatewayClient: httpclient.New(gatewayURL),
	}
	s.setupRoutes()

	return s, router
}

// doRequest は信頼ヘッダーとトークン付きのテストリクエストを実行するヘルパー関数。
func doRequest(router *gin.Engine, method, path, userID string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(middleware.HeaderUserID, userID)
		req.Header.Set(middleware.HeaderUserRole, middleware.RoleStudent)
		req.Header.Set("Authorization", "Bearer test-token")
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// parseJSON はレスポンスボディをmapにデコードするヘルパー関数。
func parseJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("JSONのデコードに失敗: %v, body=%s", err, w.Body.String())
	}
	return result
}

// TestHandleCompleteLesson はレッスン完了ハンドラのテスト。
func TestHandleCompleteLesson(t *testing.T) {
	t.Parallel()

	body := map[string]string{"course_id": "course-1", "lesson_id": "lesson-1"}

	t.Run("登録が確認できれば完了を記録できる", func(t *testing.T) {
		t.Parallel()
		gateway := newMockGateway(t, http.StatusOK)
		s, router := setupTestServer(t, gateway.URL)

		w := doRequest(router, http.MethodPost, "/lessons/complete", "user-1", body)

		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
		}

		p, err := s.queries.GetLessonProgress(context.Background(), progressdb.GetLessonProgressParams{
			EnrollmentID: "enrollment-1",
			LessonID:     "lesson-1",
		})
		if err != nil {
			t.Fatalf("進捗レコードの取得に失敗: %v", err)
		}
		if p.LessonID != "lesson-1" {
			t.Errorf("lesson_id: got %s, want lesson-1", p.LessonID)
		}
	})

	t.Run("同じレッスンの再完了はOKでエラーにならない", func(t *testing.T) {
		t.Parallel()
		gateway := newMockGateway(t, http.StatusOK)
		_, router := setupTestServer(t, gateway.URL)

		w := doRequest(router, http.MethodPost, "/lessons/complete", "user-1", body)
		if w.Code != http.StatusCreated {
			t.Fatalf("1回目の完了記録に失敗: status=%d, body=%s", w.Code, w.Body.String())
		}

		w = doRequest(router, http.MethodPost, "/lessons/complete", "user-1", body)
		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}
	})

	t.Run("登録が無い場合はForbiddenで記録されない", func(t *testing.T) {
		t.Parallel()
		gateway := newMockGateway(t, http.StatusNotFound)
		s, router := setupTestServer(t, gateway.URL)

		w := doRequest(router, http.MethodPost, "/lessons/complete", "user-1", body)

		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
		if _, err := s.queries.GetLessonProgress(context.Background(), progressdb.GetLessonProgressParams{
			EnrollmentID: "enrollment-1",
			LessonID:     "lesson-1",
		}); err != sql.ErrNoRows {
			t.Errorf("拒否されたのに進捗が記録されています: err=%v", err)
		}
	})

	t.Run("enrollmentサービスに到達できない場合はBadGateway", func(t *testing.T) {
		t.Parallel()

		// 即座にクローズしたゲートウェイで接続失敗を再現する
		deadGateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
		deadGateway.Close()
		_, router := setupTestServer(t, deadGateway.URL)

		w := doRequest(router, http.MethodPost, "/lessons/complete", "user-1", body)

		if w.Code != http.StatusBadGateway {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadGateway)
		}
	})

	t.Run("enrollmentサービスの5xxはForbiddenではなくBadGateway", func(t *testing.T) {
		t.Parallel()
		gateway := newMockGateway(t, http.StatusInternalServerError)
		_, router := setupTestServer(t, gateway.URL)

		w := doRequest(router, http.MethodPost, "/lessons/complete", "user-1", body)

		if w.Code != http.StatusBadGateway {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadGateway)
		}
	})

	t.Run("必須フィールドが無い場合はBadRequest", func(t *testing.T) {
		t.Parallel()
		gateway := newMockGateway(t, http.StatusOK)
		_, router := setupTestServer(t, gateway.URL)

		w := doRequest(router, http.MethodPost, "/lessons/complete", "user-1", map[string]string{"course_id": "course-1"})

		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("信頼ヘッダーが無い場合はUnauthorized", func(t *testing.T) {
		t.Parallel()
		gateway := newMockGateway(t, http.StatusOK)
		_, router := setupTestServer(t, gateway.URL)

		w := doRequest(router, http.MethodPost, "/lessons/complete", "", body)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}

// TestHandleSubmitGrade は成績記録ハンドラのテスト。
func TestHandleSubmitGrade(t *testing.T) {
	t.Parallel()

	t.Run("成績を記録できる", func(t *testing.T) {
		t.Parallel()
		gateway := newMockGateway(t, http.StatusOK)
		s, router := setupTestServer(t, gateway.URL)

		body := map[string]any{"course_id": "course-1", "lesson_id": "quiz-1", "score": 85}
		w := doRequest(router, http.MethodPost, "/grades/submit", "user-1", body)

		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
		}

		grades, err := s.queries.ListGradesByEnrollmentID(context.Background(), "enrollment-1")
		if err != nil {
			t.Fatalf("成績の取得に失敗: %v", err)
		}
		if len(grades) != 1 || grades[0].Score != 85 {
			t.Errorf("成績: got %+v, want score=85の1件", grades)
		}
	})

	t.Run("再提出はスコアを上書きして件数は増えない", func(t *testing.T) {
		t.Parallel()
		gateway := newMockGateway(t, http.StatusOK)
		s, router := setupTestServer(t, gateway.URL)

		first := map[string]any{"course_id": "course-1", "lesson_id": "quiz-1", "score": 60}
		if w := doRequest(router, http.MethodPost, "/grades/submit", "user-1", first); w.Code != http.StatusCreated {
			t.Fatalf("1回目の提出に失敗: status=%d, body=%s", w.Code, w.Body.String())
		}

		second := map[string]any{"course_id": "course-1", "lesson_id": "quiz-1", "score": 90}
		if w := doRequest(router, http.MethodPost, "/grades/submit", "user-1", second); w.Code != http.StatusCreated {
			t.Fatalf("2回目の提出に失敗: status=%d", w.Code)
		}

		grades, err := s.queries.ListGradesByEnrollmentID(context.Background(), "enrollment-1")
		if err != nil {
			t.Fatalf("成績の取得に失敗: %v", err)
		}
		if len(grades) != 1 {
			t.Fatalf("成績件数: got %d, want 1", len(grades))
		}
		if grades[0].Score != 90 {
			t.Errorf("score: got %v, want 90", grades[0].Score)
		}
	})

	t.Run("スコアが範囲外の場合はBadRequest", func(t *testing.T) {
		t.Parallel()
		gateway := newMockGateway(t, http.StatusOK)
		_, router := setupTestServer(t, gateway.URL)

		body := map[string]any{"course_id": "course-1", "lesson_id": "quiz-1", "score": 101}
		w := doRequest(router, http.MethodPost, "/grades/submit", "user-1", body)

		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("スコア0は有効", func(t *testing.T) {
		t.Parallel()
		gateway := newMockGateway(t, http.StatusOK)
		_, router := setupTestServer(t, gateway.URL)

		body := map[string]any{"course_id": "course-1", "lesson_id": "quiz-1", "score": 0}
		w := doRequest(router, http.MethodPost, "/grades/submit", "user-1", body)

		if w.Code != http.StatusCreated {
			t.Errorf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
		}
	})

	t.Run("登録が無い場合はForbidden", func(t *testing.T) {
		t.Parallel()
		gateway := newMockGateway(t, http.StatusNotFound)
		_, router := setupTestServer(t, gateway.URL)

		body := map[string]any{"course_id": "course-1", "lesson_id": "quiz-1", "score": 85}
		w := doRequest(router, http.MethodPost, "/grades/submit", "user-1", body)

		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
	})
}

// TestHandleMyProgress は進捗取得ハンドラのテスト。
func TestHandleMyProgress(t *testing.T) {
	t.Parallel()

	t.Run("完了済みレッスンと成績の一覧を返す", func(t *testing.T) {
		t.Parallel()
		gateway := newMockGateway(t, http.StatusOK)
		s, router := setupTestServer(t, gateway.URL)

		insertTestProgress(t, s, "enrollment-1", "lesson-1")
		insertTestProgress(t, s, "enrollment-1", "lesson-2")
		if err := s.queries.UpsertGrade(context.Background(), progressdb.UpsertGradeParams{
			ID:           "g-1",
			EnrollmentID: "enrollment-1",
			LessonID:     "quiz-1",
			Score:        85,
		}); err != nil {
			t.Fatalf("テスト用成績の作成に失敗: %v", err)
		}

		w := doRequest(router, http.MethodGet, "/my-progress/course-1", "user-1", nil)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}

		result := parseJSON(t, w)
		if result["enrollment_id"] != "enrollment-1" {
			t.Errorf("enrollment_id: got %v, want enrollment-1", result["enrollment_id"])
		}
		completed, ok := result["completed_lessons"].([]any)
		if !ok || len(completed) != 2 {
			t.Errorf("completed_lessons: got %v, want 2件", result["completed_lessons"])
		}
		grades, ok := result["grades"].([]any)
		if !ok || len(grades) != 1 {
			t.Errorf("grades: got %v, want 1件", result["grades"])
		}
	})

	t.Run("進捗が無い場合は空の一覧を返す", func(t *testing.T) {
		t.Parallel()
		gateway := newMockGateway(t, http.StatusOK)
		_, router := setupTestServer(t, gateway.URL)

		w := doRequest(router, http.MethodGet, "/my-progress/course-1", "user-1", nil)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		result := parseJSON(t, w)
		completed, ok := result["completed_lessons"].([]any)
		if !ok || len(completed) != 0 {
			t.Errorf("completed_lessons: got %v, want 空配列", result["completed_lessons"])
		}
	})

	t.Run("登録が無い場合はForbidden", func(t *testing.T) {
		t.Parallel()
		gateway := newMockGateway(t, http.StatusNotFound)
		_, router := setupTestServer(t, gateway.URL)

		w := doRequest(router, http.MethodGet, "/my-progress/course-1", "user-1", nil)

		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
	})
}

// insertTestProgress はテスト用の進捗レコードをDBに直接挿入するヘルパー関数。
func insertTestProgress(t *testing.T, s *Server, enrollmentID, lessonID string) {
	t.Helper()
	err := s.queries.CreateLessonProgress(context.Background(), progressdb.CreateLessonProgressParams{
		ID:           enrollmentID + "-" + lessonID,
		EnrollmentID: enrollmentID,
		LessonID:     lessonID,
	})
	if err != nil {
		t.Fatalf("テスト用進捗の作成に失敗: %v", err)
	}
}
