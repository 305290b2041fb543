package identity

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	identitydb "github.com/Arukast/UTS-IAE-Kelompok2/internal/identity/db"
	"github.com/Arukast/UTS-IAE-Kelompok2/pkg/middleware"
)

// Server はidentityサービスのHTTPサーバー。
// ユーザーの登録・ログイン（トークン発行）とユーザーレコードのCRUDを担当する。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はDBクエリ実行オブジェクト。
	queries *identitydb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// jwtSecret はJWT署名用の秘密鍵。ゲートウェイと共有する。
	jwtSecret string
}

// NewServer は新しいidentityサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(port string) (*Server, error) {
	dbPath := getEnvOr("IDENTITY_DB_PATH", "/data/identity.db")
	sqlDB, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "dev-secret-key"
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:    router,
		port:      port,
		queries:   identitydb.New(sqlDB),
		db:        sqlDB,
		jwtSecret: jwtSecret,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// /auth 配下はゲートウェイが認証ゲートを通さずに転送してくる公開ルート。
// それ以外のルートはゲートウェイの信頼ヘッダーを前提とする。
func (s *Server) setupRoutes() {
	auth := s.router.Group("/auth")
	{
		// ユーザー登録
		auth.POST("/register", s.handleRegister())
		// ログイン（トークン発行）
		auth.POST("/login", s.handleLogin())
	}

	// ユーザー詳細取得（他サービスからの参照を許すため、信頼ヘッダーの存在だけを要求する）
	s.router.GET("/:id", middleware.RequireTrustHeaders(), s.handleGetUser())
	// ユーザー更新（管理者または本人のみ）
	s.router.PUT("/:id", s.handleUpdateUser())

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "identity"})
	})
}

// registerRequest はユーザー登録リクエストのJSON構造。
type registerRequest struct {
	// Username はユーザー名。
	Username string `json:"username" binding:"required"`
	// Email はメールアドレス。
	Email string `json:"email" binding:"required,email"`
	// Password は平文パスワード。保存前にbcryptでハッシュ化される。
	Password string `json:"password" binding:"required"`
	// Role はユーザーの役割。省略時はstudent。
	Role string `json:"role" binding:"omitempty,oneof=student instructor admin"`
}

// loginRequest はログインリクエストのJSON構造。
type loginRequest struct {
	// Email はメールアドレス。
	Email string `json:"email" binding:"required"`
	// Password は平文パスワード。
	Password string `json:"password" binding:"required"`
}

// updateUserRequest はユーザー更新リクエストのJSON構造。
// 指定されたフィールドだけを置き換え、省略されたフィールドは既存値を維持する。
type updateUserRequest struct {
	// Username はユーザー名。
	Username string `json:"username"`
	// Email はメールアドレス。
	Email string `json:"email" binding:"omitempty,email"`
}

// userResponse はユーザーのJSONレスポンス構造。パスワードハッシュは含めない。
type userResponse struct {
	// ID はユーザーの一意識別子。
	ID string `json:"id"`
	// Username はユーザー名。
	Username string `json:"username"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// Role はユーザーの役割。
	Role string `json:"role"`
	// CreatedAt は作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

// toUserResponse はDB行をJSONレスポンスに変換する。
func toUserResponse(u identitydb.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

// handleRegister はユーザー登録を処理するハンドラを返す。
// パスワードをbcryptでハッシュ化して保存する。ユーザー名または
// メールアドレスが既に使用されている場合は409を返す。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("ユーザー名・メールアドレス・パスワードが必要です: %v", err)})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "パスワードのハッシュ化に失敗しました"})
			log.Printf("パスワードハッシュ化エラー: %v", err)
			return
		}

		role := req.Role
		if role == "" {
			role = middleware.RoleStudent
		}

		userID := uuid.New().String()
		if err := s.queries.CreateUser(c.Request.Context(), identitydb.CreateUserParams{
			ID:           userID,
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: string(hash),
			Role:         role,
		}); err != nil {
			if isUniqueViolation(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "ユーザー名またはメールアドレスは既に使用されています"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの作成に失敗しました"})
			log.Printf("ユーザー作成エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"message": "ユーザーを作成しました",
			"user": gin.H{
				"id":       userID,
				"username": req.Username,
				"email":    req.Email,
				"role":     role,
			},
		})
	}
}

// handleLogin はログインを処理するハンドラを返す。
// 認証に成功した場合、24時間有効なJWTトークンを発行する。
// メールアドレスの存在有無を漏らさないよう、失敗レスポンスは常に同一にする。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "メールアドレスとパスワードが必要です"})
			return
		}

		user, err := s.queries.GetUserByEmail(c.Request.Context(), req.Email)
		if err == sql.ErrNoRows {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "メールアドレスまたはパスワードが正しくありません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの取得に失敗しました"})
			log.Printf("ユーザー取得エラー: %v", err)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "メールアドレスまたはパスワードが正しくありません"})
			return
		}

		token, err := middleware.GenerateJWT(s.jwtSecret, user.ID, user.Email, user.Role)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン生成に失敗しました"})
			log.Printf("JWT生成エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "ログインに成功しました",
			"token":   token,
			"user":    toUserResponse(user),
		})
	}
}

// handleGetUser はユーザー詳細取得を処理するハンドラを返す。
// 安全なフィールドだけを返す。通知サービスが宛先のメールアドレスを
// 解決するときにもこのエンドポイントが使われる。
func (s *Server) handleGetUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := s.queries.GetUserByID(c.Request.Context(), c.Param("id"))
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの取得に失敗しました"})
			log.Printf("ユーザー取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toUserResponse(user))
	}
}

// handleUpdateUser はユーザー更新を処理するハンドラを返す。
// 管理者または本人だけが更新できる。指定されたフィールドだけを置き換え、
// 省略されたフィールドは既存値を維持する。パスワードはここでは変更しない。
func (s *Server) handleUpdateUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		requesterID := middleware.TrustedUserID(c)
		requesterRole := middleware.TrustedUserRole(c)
		if requesterID == "" || requesterRole == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "認証ヘッダー（X-User-Id, X-User-Role）がありません"})
			return
		}

		targetID := c.Param("id")
		if requesterRole != middleware.RoleAdmin && requesterID != targetID {
			c.JSON(http.StatusForbidden, gin.H{"error": "アクセスが拒否されました。この操作の権限がありません"})
			return
		}

		user, err := s.queries.GetUserByID(c.Request.Context(), targetID)
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの取得に失敗しました"})
			log.Printf("ユーザー取得エラー: %v", err)
			return
		}

		var req updateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		username := req.Username
		if username == "" {
			username = user.Username
		}
		email := req.Email
		if email == "" {
			email = user.Email
		}

		if err := s.queries.UpdateUserProfile(c.Request.Context(), identitydb.UpdateUserProfileParams{
			Username: username,
			Email:    email,
			ID:       targetID,
		}); err != nil {
			if isUniqueViolation(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "ユーザー名またはメールアドレスは既に使用されています"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの更新に失敗しました"})
			log.Printf("ユーザー更新エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "ユーザーを更新しました",
			"user": gin.H{
				"id":       targetID,
				"username": username,
				"email":    email,
			},
		})
	}
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
