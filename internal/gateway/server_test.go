package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Arukast/UTS-IAE-Kelompok2/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testJWTSecret = "test-secret"

// backendRecord はモックバックエンドが受信したリクエストの記録。
type backendRecord struct {
	// Count は受信したリクエスト数。
	Count atomic.Int64
	// Path は最後に受信したリクエストのパス（クエリ含む）。
	Path atomic.Value
	// UserID / Role / Email は最後に受信した信頼ヘッダーの値。
	UserID atomic.Value
	Role   atomic.Value
	Email  atomic.Value
}

// setupTestGateway は全サービスを同一のモックバックエンドに向けた
// テスト用ゲートウェイを構築する。
func setupTestGateway(t *testing.T) (*gin.Engine, *backendRecord) {
	t.Helper()

	record := &backendRecord{}
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		record.Count.Add(1)
		record.Path.Store(r.URL.RequestURI())
		record.UserID.Store(r.Header.Get(middleware.HeaderUserID))
		record.Role.Store(r.Header.Get(middleware.HeaderUserRole))
		record.Email.Store(r.Header.Get(middleware.HeaderUserEmail))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true}`)
	}))
	t.Cleanup(backend.Close)

	router := newTestGatewayRouter(t, backend.URL)
	return router, record
}

// newTestGatewayRouter は指定したバックエンドURLに全ルートを向けた
// テスト用ゲートウェイルーターを構築する。
func newTestGatewayRouter(t *testing.T, backendURL string) *gin.Engine {
	t.Helper()

	routes, err := buildRouteTable(serviceURLConfig{
		Identity:     backendURL,
		Catalog:      backendURL,
		Enrollment:   backendURL,
		Progress:     backendURL,
		Notification: backendURL,
	})
	if err != nil {
		t.Fatalf("ルーティングテーブルの構築に失敗: %v", err)
	}

	router := gin.New()
	s := &Server{
		router:     router,
		port:       "0",
		jwtSecret:  testJWTSecret,
		routes:     routes,
		httpClient: &http.Client{},
	}
	s.setupRoutes()
	return router
}

// validToken はテスト用の有効なJWTトークンを生成するヘルパー関数。
func validToken(t *testing.T) string {
	t.Helper()
	token, err := middleware.GenerateJWT(testJWTSecret, "user-1", "taro@example.com", middleware.RoleStudent)
	if err != nil {
		t.Fatalf("トークン生成に失敗: %v", err)
	}
	return token
}

// expiredToken はテスト用の期限切れJWTトークンを生成するヘルパー関数。
func expiredToken(t *testing.T) string {
	t.Helper()
	claims := middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			Issuer:    "identity-service",
		},
		UserID: "user-1",
		Email:  "taro@example.com",
		Role:   middleware.RoleStudent,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("トークン署名に失敗: %v", err)
	}
	return token
}

// doGatewayRequest はゲートウェイへのテストリクエストを実行するヘルパー関数。
func doGatewayRequest(router *gin.Engine, method, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
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

// TestGatewayAuthGate は認証ゲートのテスト。
// 認証に失敗したリクエストがバックエンドに転送されないことも検証する。
func TestGatewayAuthGate(t *testing.T) {
	t.Parallel()

	t.Run("Authorizationヘッダーが無い場合はUnauthorized", func(t *testing.T) {
		t.Parallel()
		router, record := setupTestGateway(t)

		w := doGatewayRequest(router, http.MethodGet, "/api/courses", "")

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if got := record.Count.Load(); got != 0 {
			t.Errorf("認証失敗がバックエンドに転送されました: %d回", got)
		}
	})

	t.Run("期限切れトークンはForbidden", func(t *testing.T) {
		t.Parallel()
		router, record := setupTestGateway(t)

		w := doGatewayRequest(router, http.MethodGet, "/api/courses", "Bearer "+expiredToken(t))

		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
		if got := record.Count.Load(); got != 0 {
			t.Errorf("認証失敗がバックエンドに転送されました: %d回", got)
		}
	})

	t.Run("不正な形式のトークンはForbidden", func(t *testing.T) {
		t.Parallel()
		router, record := setupTestGateway(t)

		w := doGatewayRequest(router, http.MethodGet, "/api/courses", "Bearer garbage")

		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
		if got := record.Count.Load(); got != 0 {
			t.Errorf("認証失敗がバックエンドに転送されました: %d回", got)
		}
	})

	t.Run("Bearer形式でないヘッダーはForbidden", func(t *testing.T) {
		t.Parallel()
		router, _ := setupTestGateway(t)

		w := doGatewayRequest(router, http.MethodGet, "/api/courses", "Basic dXNlcjpwYXNz")

		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("期限切れと形式不正でレスポンスボディが同一", func(t *testing.T) {
		t.Parallel()
		router, _ := setupTestGateway(t)

		wExpired := doGatewayRequest(router, http.MethodGet, "/api/courses", "Bearer "+expiredToken(t))
		wMalformed := doGatewayRequest(router, http.MethodGet, "/api/courses", "Bearer garbage")

		if wExpired.Body.String() != wMalformed.Body.String() {
			t.Errorf("失敗理由がレスポンスで区別できてしまいます: expired=%s, malformed=%s",
				wExpired.Body.String(), wMalformed.Body.String())
		}
	})

	t.Run("有効なトークンはプロキシされる", func(t *testing.T) {
		t.Parallel()
		router, record := setupTestGateway(t)

		w := doGatewayRequest(router, http.MethodGet, "/api/courses/42", "Bearer "+validToken(t))

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}
		if got := record.Path.Load(); got != "/42" {
			t.Errorf("バックエンドのパス: got %v, want /42", got)
		}
	})
}

// TestGatewayTrustHeaders は信頼ヘッダーの付与と外部からの持ち込み排除のテスト。
func TestGatewayTrustHeaders(t *testing.T) {
	t.Parallel()

	t.Run("検証済みクレームが信頼ヘッダーとして付与される", func(t *testing.T) {
		t.Parallel()
		router, record := setupTestGateway(t)

		doGatewayRequest(router, http.MethodGet, "/api/courses", "Bearer "+validToken(t))

		if got := record.UserID.Load(); got != "user-1" {
			t.Errorf("X-User-Id: got %v, want user-1", got)
		}
		if got := record.Role.Load(); got != middleware.RoleStudent {
			t.Errorf("X-User-Role: got %v, want %s", got, middleware.RoleStudent)
		}
		if got := record.Email.Load(); got != "taro@example.com" {
			t.Errorf("X-User-Email: got %v, want taro@example.com", got)
		}
	})

	t.Run("外部から持ち込まれた信頼ヘッダーは上書きされる", func(t *testing.T) {
		t.Parallel()
		router, record := setupTestGateway(t)

		req := httptest.NewRequest(http.MethodGet, "/api/courses", nil)
		req.Header.Set("Authorization", "Bearer "+validToken(t))
		req.Header.Set(middleware.HeaderUserID, "attacker")
		req.Header.Set(middleware.HeaderUserRole, middleware.RoleAdmin)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if got := record.UserID.Load(); got != "user-1" {
			t.Errorf("X-User-Id: got %v, want user-1", got)
		}
		if got := record.Role.Load(); got != middleware.RoleStudent {
			t.Errorf("X-User-Role: got %v, want %s", got, middleware.RoleStudent)
		}
	})

	t.Run("公開ルートでは信頼ヘッダーを付与しない", func(t *testing.T) {
		t.Parallel()
		router, record := setupTestGateway(t)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.Header.Set(middleware.HeaderUserID, "attacker")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		if got := record.Path.Load(); got != "/auth/login" {
			t.Errorf("バックエンドのパス: got %v, want /auth/login", got)
		}
		if got := record.UserID.Load(); got != "" {
			t.Errorf("公開ルートで信頼ヘッダーが付与されました: X-User-Id=%v", got)
		}
	})
}

// TestGatewayProxy はプロキシ処理のテスト。
func TestGatewayProxy(t *testing.T) {
	t.Parallel()

	t.Run("クエリ文字列はそのまま転送される", func(t *testing.T) {
		t.Parallel()
		router, record := setupTestGateway(t)

		doGatewayRequest(router, http.MethodGet, "/api/enrollments/check?courseId=course-1", "Bearer "+validToken(t))

		if got := record.Path.Load(); got != "/check?courseId=course-1" {
			t.Errorf("バックエンドのパス: got %v, want /check?courseId=course-1", got)
		}
	})

	t.Run("マッチしないパスはNotFoundと元のパスを返す", func(t *testing.T) {
		t.Parallel()
		router, record := setupTestGateway(t)

		w := doGatewayRequest(router, http.MethodGet, "/api/unknown/1", "Bearer "+validToken(t))

		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusNotFound)
		}
		result := parseJSON(t, w)
		if result["path"] != "/api/unknown/1" {
			t.Errorf("path: got %v, want /api/unknown/1", result["path"])
		}
		if got := record.Count.Load(); got != 0 {
			t.Errorf("マッチしないパスがバックエンドに転送されました: %d回", got)
		}
	})

	t.Run("バックエンドに到達できない場合はBadGateway", func(t *testing.T) {
		t.Parallel()

		// 即座にクローズしたバックエンドで接続失敗を再現する
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
		backend.Close()
		router := newTestGatewayRouter(t, backend.URL)

		w := doGatewayRequest(router, http.MethodGet, "/api/courses", "Bearer "+validToken(t))

		if w.Code != http.StatusBadGateway {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadGateway)
		}
	})

	t.Run("バックエンドのステータスコードはそのまま返す", func(t *testing.T) {
		t.Parallel()

		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":"conflict"}`, http.StatusConflict)
		}))
		t.Cleanup(backend.Close)
		router := newTestGatewayRouter(t, backend.URL)

		w := doGatewayRequest(router, http.MethodPost, "/api/enrollments/course-1", "Bearer "+validToken(t))

		if w.Code != http.StatusConflict {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusConflict)
		}
	})
}

// TestGatewayHealthCheck はヘルスチェックエンドポイントのテスト。
func TestGatewayHealthCheck(t *testing.T) {
	t.Parallel()

	router, _ := setupTestGateway(t)

	w := doGatewayRequest(router, http.MethodGet, "/health", "")

	if w.Code != http.StatusOK {
		t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
	}

	result := parseJSON(t, w)
	if result["status"] != "healthy" {
		t.Errorf("status: got %v, want healthy", result["status"])
	}
	services, ok := result["services"].([]any)
	if !ok || len(services) != 5 {
		t.Errorf("services: got %v, want 5サービスの一覧", result["services"])
	}
}
