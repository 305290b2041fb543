package enrollment

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

	enrollmentdb "github.com/Arukast/UTS-IAE-Kelompok2/internal/enrollment/db"
	"github.com/Arukast/UTS-IAE-Kelompok2/pkg/httpclient"
	"github.com/Arukast/UTS-IAE-Kelompok2/pkg/middleware"
)

// Server はenrollmentサービスのHTTPサーバー。
// コースへの登録を管理する。登録前にゲートウェイ経由でcatalogサービスに
// コースの存在を確認し、登録成功後はベストエフォートで通知を送信する。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はDBクエリ実行オブジェクト。
	queries *enrollmentdb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// gatewayClient はゲートウェイ経由のサービス間通信クライアント。
	gatewayClient *httpclient.Client
}

// NewServer は新しいenrollmentサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(port string) (*Server, error) {
	dbPath := getEnvOr("ENROLLMENT_DB_PATH", "/data/enrollment.db")
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
		queries:       enrollmentdb.New(sqlDB),
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
	// 自分の登録一覧取得
	s.router.GET("/my-enrollments", s.handleMyEnrollments())
	// コースの受講者一覧取得（講師・管理者のみ）
	s.router.GET("/course-roster/:courseId", middleware.RequireRole(middleware.RoleInstructor, middleware.RoleAdmin), s.handleCourseRoster())
	// 登録確認（progressサービスのクロスサービス検証が呼び出す内部向けエンドポイント）
	s.router.GET("/check", s.handleCheck())
	// コースへの登録
	s.router.POST("/:courseId", s.handleEnroll())

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "enrollment"})
	})
}

// enrollmentResponse は登録のJSONレスポンス構造。
type enrollmentResponse struct {
	// ID は登録の一意識別子。
	ID string `json:"id"`
	// UserID は受講者のユーザーID。
	UserID string `json:"user_id"`
	// CourseID はコースのID。
	CourseID string `json:"course_id"`
	// Status は登録の状態。
	Status string `json:"status"`
	// EnrolledAt は登録日時（RFC3339形式）。
	EnrolledAt string `json:"enrolled_at"`
}

// toEnrollmentResponse はDB行をJSONレスポンスに変換する。
func toEnrollmentResponse(e enrollmentdb.Enrollment) enrollmentResponse {
	return enrollmentResponse{
		ID:         e.ID,
		UserID:     e.UserID,
		CourseID:   e.CourseID,
		Status:     e.Status,
		EnrolledAt: e.EnrolledAt.Format(time.RFC3339),
	}
}

// courseInfo はcatalogサービスのコース詳細レスポンスのうち、
// このサービスが関心を持つフィールドだけを表す。
type courseInfo struct {
	// ID はコースの一意識別子。
	ID string `json:"id"`
	// Title はコースのタイトル。通知メッセージに使用する。
	Title string `json:"title"`
}

// handleEnroll はコースへの登録を処理するハンドラを返す。
//
// ローカルへの書き込みの前に、ゲートウェイ経由でcatalogサービスにコースの
// 存在を確認する。確認が取れるまで書き込みは行わない。検証結果は3値で扱い、
// コースが存在しない（404）場合と、catalogサービスに到達できない場合とで
// クライアントに返すステータスコードを変える。
//
// 登録成功後の通知はベストエフォート。goroutineで起動して待たず、
// 失敗してもレスポンスにも登録にも影響させない。
func (s *Server) handleEnroll() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.TrustedUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "認証が必要です。X-User-Id ヘッダーがありません"})
			return
		}

		token := c.GetHeader("Authorization")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "認証トークンがありません"})
			return
		}

		courseID := c.Param("courseId")

		course, outcome := s.validateCourse(c.Request.Context(), token, courseID)
		switch outcome {
		case httpclient.OutcomeRejected:
			c.JSON(http.StatusNotFound, gin.H{"error": "コースが見つかりません"})
			return
		case httpclient.OutcomeIndeterminate:
			c.JSON(http.StatusBadGateway, gin.H{"error": "コースの検証に失敗しました。catalogサービスに到達できません"})
			return
		}

		enrollmentID := uuid.New().String()
		if err := s.queries.CreateEnrollment(c.Request.Context(), enrollmentdb.CreateEnrollmentParams{
			ID:       enrollmentID,
			UserID:   userID,
			CourseID: courseID,
		}); err != nil {
			if isUniqueViolation(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "既にこのコースに登録されています"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "登録の作成に失敗しました"})
			log.Printf("登録作成エラー: %v", err)
			return
		}

		created, err := s.queries.GetEnrollmentByID(c.Request.Context(), enrollmentID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "作成した登録の取得に失敗しました"})
			log.Printf("登録取得エラー: %v", err)
			return
		}

		// 通知はレスポンスを返した後も勝手に進む。完了を待たない。
		go s.sendEnrollmentNotification(token, userID, course.Title)

		c.JSON(http.StatusCreated, gin.H{
			"message":    "コースへの登録が完了しました",
			"enrollment": toEnrollmentResponse(created),
		})
	}
}

// validateCourse はゲートウェイ経由でコースの存在を確認する。
// 確認できた場合はコース情報を返す。結果は3値（confirmed / rejected /
// indeterminate）で、リモートの404とトランスポート障害を区別する。
func (s *Server) validateCourse(ctx context.Context, token, courseID string) (courseInfo, httpclient.Outcome) {
	var course courseInfo
	err := s.gatewayClient.GetJSON(
		httpclient.WithAuthorization(ctx, token),
		"/api/courses/"+courseID,
		&course,
	)
	outcome := httpclient.Classify(err)
	if outcome != httpclient.OutcomeConfirmed {
		log.Printf("コース検証: course_id=%s, outcome=%s, error=%v", courseID, outcome, err)
	}
	return course, outcome
}

// sendEnrollmentNotification は登録完了通知をベストエフォートで送信する。
// ゲートウェイ経由でnotificationサービスを呼び出す。リクエスト処理から
// 切り離されたgoroutineで実行されるため、元のリクエストのコンテキストは
// 使わない（レスポンス返却後にキャンセルされてしまうため）。
// 失敗はログに記録するだけで、リトライも登録の取り消しも行わない。
func (s *Server) sendEnrollmentNotification(token, userID, courseTitle string) {
	ctx := httpclient.WithAuthorization(context.Background(), token)

	body := map[string]any{
		"user_id": userID,
		"message": fmt.Sprintf("コース「%s」への登録が完了しました", courseTitle),
		"type":    "ENROLLMENT_SUCCESS",
	}
	if err := s.gatewayClient.PostJSON(ctx, "/api/notifications", body, nil); err != nil {
		log.Printf("登録完了通知の送信に失敗: user_id=%s, error=%v", userID, err)
		return
	}
	log.Printf("登録完了通知を送信しました: user_id=%s", userID)
}

// handleMyEnrollments は自分の登録一覧取得を処理するハンドラを返す。
func (s *Server) handleMyEnrollments() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.TrustedUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "認証が必要です。X-User-Id ヘッダーがありません"})
			return
		}

		enrollments, err := s.queries.ListEnrollmentsByUserID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "登録一覧の取得に失敗しました"})
			log.Printf("登録一覧取得エラー: %v", err)
			return
		}

		responses := make([]enrollmentResponse, 0, len(enrollments))
		for _, e := range enrollments {
			responses = append(responses, toEnrollmentResponse(e))
		}

		c.JSON(http.StatusOK, responses)
	}
}

// handleCourseRoster はコースの受講者一覧取得を処理するハンドラを返す。
func (s *Server) handleCourseRoster() gin.HandlerFunc {
	return func(c *gin.Context) {
		enrollments, err := s.queries.ListEnrollmentsByCourseID(c.Request.Context(), c.Param("courseId"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "受講者一覧の取得に失敗しました"})
			log.Printf("受講者一覧取得エラー: %v", err)
			return
		}

		responses := make([]gin.H, 0, len(enrollments))
		for _, e := range enrollments {
			responses = append(responses, gin.H{
				"user_id":     e.UserID,
				"status":      e.Status,
				"enrolled_at": e.EnrolledAt.Format(time.RFC3339),
			})
		}

		c.JSON(http.StatusOK, responses)
	}
}

// handleCheck は登録確認を処理するハンドラを返す。
// progressサービスが書き込み前の前提条件チェックとして呼び出す。
// アクティブな登録が無い場合は404を返す。呼び出し側はこの404を
// 「前提条件が偽（rejected）」として解釈する。
func (s *Server) handleCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.TrustedUserID(c)
		courseID := c.Query("courseId")

		if userID == "" || courseID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-User-Id ヘッダーとcourseIdクエリパラメータが必要です"})
			return
		}

		e, err := s.queries.GetActiveEnrollment(c.Request.Context(), enrollmentdb.GetActiveEnrollmentParams{
			UserID:   userID,
			CourseID: courseID,
		})
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "このコースに登録されていません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "登録の取得に失敗しました"})
			log.Printf("登録取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toEnrollmentResponse(e))
	}
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
