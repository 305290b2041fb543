// Package notification はベストエフォートの通知サービスを提供する。
//
// 通知の受け付けと配信は分離されている。POSTを受けると即座にsent状態で
// 記録してレスポンスを返し、実際の配信処理は切り離されたgoroutineで行う。
// 配信に失敗しても呼び出し元にエラーが伝わることはなく、記録の状態が
// failedに更新されるだけである。
package notification

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	notificationdb "github.com/Arukast/UTS-IAE-Kelompok2/internal/notification/db"
	"github.com/Arukast/UTS-IAE-Kelompok2/pkg/httpclient"
	"github.com/Arukast/UTS-IAE-Kelompok2/pkg/middleware"
)

// Server はnotificationサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はDBクエリ実行オブジェクト。
	queries *notificationdb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// gatewayClient はゲートウェイ経由のサービス間通信クライアント。
	gatewayClient *httpclient.Client
}

// NewServer は新しいnotificationサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(port string) (*Server, error) {
	dbPath := getEnvOr("NOTIFICATION_DB_PATH", "/data/notification.db")
	sqlDB, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	gatewayURL := getEnvOr("API_GATEWAY_URL", "http://localhost:8080")

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:        router,
		port:          port,
		queries:       notificationdb.New(sqlDB),
		db:            sqlDB,
		gatewayClient: httpclient.New(gatewayURL),
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// 通知の送信（他サービスからゲートウェイ経由で呼び出される）
	s.router.POST("/", s.handleSendNotification())
	// 自分の通知一覧取得
	s.router.GET("/my-notifications", s.handleMyNotifications())

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "notification"})
	})
}

// sendNotificationRequest は通知送信リクエストのボディ構造。
type sendNotificationRequest struct {
	// UserID は通知先のユーザーID（必須）。
	UserID string `json:"user_id" binding:"required"`
	// Message は通知メッセージ本文（必須）。
	Message string `json:"message" binding:"required"`
	// Type は通知の種別。省略時はGENERAL。
	Type string `json:"type"`
}

// handleSendNotification は通知の送信を処理するハンドラを返す。
// 記録を作成して即座に202を返し、配信処理は待たずにgoroutineで起動する。
func (s *Server) handleSendNotification() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "認証トークンがありません"})
			return
		}

		var req sendNotificationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_idとmessageは必須です"})
			return
		}
		if req.Type == "" {
			req.Type = "GENERAL"
		}

		notificationID := uuid.New().String()
		if err := s.queries.CreateNotificationLog(c.Request.Context(), notificationdb.CreateNotificationLogParams{
			ID:      notificationID,
			UserID:  req.UserID,
			Message: req.Message,
			Type:    req.Type,
			Status:  "sent",
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の記録に失敗しました"})
			log.Printf("通知記録エラー: %v", err)
			return
		}

		// 配信はレスポンスを返した後も勝手に進む。完了を待たない。
		go s.processNotification(token, notificationID, req.UserID, req.Message)

		c.JSON(http.StatusAccepted, gin.H{
			"message": "通知を受け付けました",
			"id":      notificationID,
		})
	}
}

// processNotification は通知の配信処理を行う。
// ゲートウェイ経由でidentityサービスから通知先ユーザーの情報を取得し、
// メール配信の代わりにログ出力する。リクエスト処理から切り離された
// goroutineで実行されるため、元のリクエストのコンテキストは使わない。
// 失敗した場合は記録の状態をfailedに更新するだけで、リトライは行わない。
func (s *Server) processNotification(token, notificationID, userID, message string) {
	ctx := httpclient.WithAuthorization(context.Background(), token)

	var user struct {
		Email    string `json:"email"`
		Username string `json:"username"`
	}
	if err := s.gatewayClient.GetJSON(ctx, "/api/users/"+userID, &user); err != nil {
		log.Printf("通知先ユーザーの取得に失敗: user_id=%s, error=%v", userID, err)
		s.markFailed(notificationID)
		return
	}

	// 実際のメール送信の代わりに配信内容をログに出力する。
	log.Printf("通知を配信しました: to=%s <%s>, message=%s", user.Username, user.Email, message)
}

// markFailed は通知記録の状態をfailedに更新する。
func (s *Server) markFailed(notificationID string) {
	if err := s.queries.UpdateNotificationStatus(context.Background(), notificationdb.UpdateNotificationStatusParams{
		Status: "failed",
		ID:     notificationID,
	}); err != nil {
		log.Printf("通知状態の更新に失敗: id=%s, error=%v", notificationID, err)
	}
}

// handleMyNotifications は自分の通知一覧取得を処理するハンドラを返す。
func (s *Server) handleMyNotifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.TrustedUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "認証が必要です。X-User-Id ヘッダーがありません"})
			return
		}

		notifications, err := s.queries.ListNotificationsByUserID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知一覧の取得に失敗しました"})
			log.Printf("通知一覧取得エラー: %v", err)
			return
		}

		responses := make([]gin.H, 0, len(notifications))
		for _, n := range notifications {
			responses = append(responses, gin.H{
				"id":         n.ID,
				"message":    n.Message,
				"type":       n.Type,
				"status":     n.Status,
				"created_at": n.CreatedAt.Format(time.RFC3339),
			})
		}

		c.JSON(http.StatusOK, responses)
	}
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
