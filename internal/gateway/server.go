package gateway

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Arukast/UTS-IAE-Kelompok2/pkg/middleware"
)

// Server はAPI GatewayサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// jwtSecret はJWT検証用の秘密鍵。ゲートウェイだけが検証を行う。
	jwtSecret string
	// routes は公開パスから内部サービスへのルーティングテーブル。
	routes *routeTable
	// httpClient は内部サービスへのプロキシに使用するHTTPクライアント。
	httpClient *http.Client
}

// serviceURLConfig は内部サービスのURL設定。
type serviceURLConfig struct {
	Identity     string
	Catalog      string
	Enrollment   string
	Progress     string
	Notification string
}

// NewServer は新しいGatewayサーバーを生成する。
// ルーティングテーブルの構築に失敗した場合（プレフィックスの重複等）は
// エラーを返し、起動しない。
func NewServer(port string) (*Server, error) {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "dev-secret-key"
	}

	urls := serviceURLConfig{
		Identity:     getEnvOr("IDENTITY_SERVICE_URL", "http://localhost:8081"),
		Catalog:      getEnvOr("CATALOG_SERVICE_URL", "http://localhost:8082"),
		Enrollment:   getEnvOr("ENROLLMENT_SERVICE_URL", "http://localhost:8083"),
		Progress:     getEnvOr("PROGRESS_SERVICE_URL", "http://localhost:8084"),
		Notification: getEnvOr("NOTIFICATION_SERVICE_URL", "http://localhost:8085"),
	}

	routes, err := buildRouteTable(urls)
	if err != nil {
		return nil, fmt.Errorf("ルーティングテーブルの構築に失敗: %w", err)
	}

	frontendURL := getEnvOr("FRONTEND_URL", "http://localhost:5000")

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS([]string{frontendURL}))

	s := &Server{
		router:     router,
		port:       port,
		jwtSecret:  jwtSecret,
		routes:     routes,
		httpClient: &http.Client{},
	}
	s.setupRoutes()

	return s, nil
}

// buildRouteTable は公開APIのルーティングテーブルを構築する。
// /api/auth だけは認証ゲートを通さない公開ルートで、identityサービスの
// /auth 名前空間に固定リマップされる。/api/modules はcatalogサービスが
// モジュールを /modules 配下にマウントしているため /api だけを除去する。
func buildRouteTable(urls serviceURLConfig) (*routeTable, error) {
	return newRouteTable([]routeEntry{
		{Prefix: "/api/auth", Service: "identity", Target: urls.Identity, Mount: "/auth", Public: true},
		{Prefix: "/api/users", Service: "identity", Target: urls.Identity},
		{Prefix: "/api/courses", Service: "catalog", Target: urls.Catalog},
		{Prefix: "/api/modules", Service: "catalog", Target: urls.Catalog, Mount: "/modules"},
		{Prefix: "/api/enrollments", Service: "enrollment", Target: urls.Enrollment},
		{Prefix: "/api/progress", Service: "progress", Target: urls.Progress},
		{Prefix: "/api/notifications", Service: "notification", Target: urls.Notification},
	})
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// ヘルスチェックは常に公開。/api 配下はすべてパイプラインハンドラが処理し、
// 認証の要否はルーティングテーブルのエントリ側で決まる。
func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"services":  s.routes.serviceNames(),
		})
	})

	s.router.Any("/api/*proxyPath", s.handlePipeline())

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Endpoint Not Found",
			"path":  c.Request.URL.Path,
		})
	})
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
