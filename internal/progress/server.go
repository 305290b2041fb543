package progress

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

	progressdb "github.com/Arukast/UTS-IAE-Kelompok2/internal/progress/db"
	"github.com/Arukast/UTS-IAE-Kelompok2/pkg/httpclient"
	"github.com/Arukast/UTS-IAE-Kelompok2/pkg/middleware"
)

// Server はprogressサービスのHTTPサーバー。
// レッスンの完了記録と成績を管理する。書き込みの前にゲートウェイ経由で
// enrollmentサービスにアクティブな登録があることを確認する。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はDBクエリ実行オブジェクト。
	queries *progressdb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// gatewayClient はゲートウェイ経由のサービス間通信クライアント。
	gatewayClient *httpclient.Client
}

// NewServer は新しいprogressサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(port string) (*Server, error) {
	dbPath := getEnvOr("PROGRESS_DB_PATH", "/data/progress.db")
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
		queries:       progressdb.New(sqlDB),
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
	// レッスン完了の記録
	s.router.POST("/lessons/complete", s.handleCompleteLesson())
	// 成績の記録（再提出はスコアを上書き）
	s.router.POST("/grades/submit", s.handleSubmitGrade())
	// コースごとの自分の進捗取得
	s.router.GET("/my-progress/:courseId", s.handleMyProgress())

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "progress"})
	})
}

// enrollmentInfo はenrollmentサービスの登録確認レスポンスのうち、
// このサービスが関心を持つフィールドだけを表す。
type enrollmentInfo struct {
	// ID は登録の一意識別子。
	ID string `json:"id"`
	// Status は登録の状態。
	Status string `json:"status"`
}

// completeLessonRequest はレッスン完了リクエストのボディ構造。
type completeLessonRequest struct {
	// CourseID は対象コースのID（必須）。登録確認に使用する。
	CourseID string `json:"course_id" binding:"required"`
	// LessonID は完了したレッスンのID（必須）。
	LessonID string `json:"lesson_id" binding:"required"`
}

// handleCompleteLesson はレッスン完了の記録を処理するハンドラを返す。
//
// ローカルへの書き込みの前に、ゲートウェイ経由でenrollmentサービスに
// アクティブな登録があることを確認する。検証結果は3値で扱い、登録が無い
// （404）場合と、enrollmentサービスに到達できない場合とでクライアントに
// 返すステータスコードを変える。
//
// 同じレッスンの完了記録は冪等。2回目以降は200を返し、エラーにはしない。
func (s *Server) handleCompleteLesson() gin.HandlerFunc {
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

		var req completeLessonRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "course_idとlesson_idは必須です"})
			return
		}

		enrollment, outcome := s.validateEnrollment(c.Request.Context(), token, req.CourseID)
		switch outcome {
		case httpclient.OutcomeRejected:
			c.JSON(http.StatusForbidden, gin.H{"error": "このコースに登録されていません"})
			return
		case httpclient.OutcomeIndeterminate:
			c.JSON(http.StatusBadGateway, gin.H{"error": "登録の検証に失敗しました。enrollmentサービスに到達できません"})
			return
		}

		err := s.queries.CreateLessonProgress(c.Request.Context(), progressdb.CreateLessonProgressParams{
			ID:           uuid.New().String(),
			EnrollmentID: enrollment.ID,
			LessonID:     req.LessonID,
		})
		if isUniqueViolation(err) {
			// 既に完了済み。冪等に成功として扱う。
			c.JSON(http.StatusOK, gin.H{"message": "このレッスンは既に完了しています"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "進捗の記録に失敗しました"})
			log.Printf("進捗記録エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"message": "レッスンを完了しました"})
	}
}

// submitGradeRequest は成績記録リクエストのボディ構造。
type submitGradeRequest struct {
	// CourseID は対象コースのID（必須）。登録確認に使用する。
	CourseID string `json:"course_id" binding:"required"`
	// LessonID は採点対象のレッスン（クイズ）のID（必須）。
	LessonID string `json:"lesson_id" binding:"required"`
	// Score は0〜100のスコア（必須）。
	Score *float64 `json:"score" binding:"required,gte=0,lte=100"`
}

// handleSubmitGrade は成績の記録を処理するハンドラを返す。
// レッスン完了と同じ登録確認を行う。同じレッスンへの再提出はスコアを上書きする。
func (s *Server) handleSubmitGrade() gin.HandlerFunc {
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

		var req submitGradeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "course_id、lesson_id、score（0〜100）は必須です"})
			return
		}

		enrollment, outcome := s.validateEnrollment(c.Request.Context(), token, req.CourseID)
		switch outcome {
		case httpclient.OutcomeRejected:
			c.JSON(http.StatusForbidden, gin.H{"error": "このコースに登録されていません"})
			return
		case httpclient.OutcomeIndeterminate:
			c.JSON(http.StatusBadGateway, gin.H{"error": "登録の検証に失敗しました。enrollmentサービスに到達できません"})
			return
		}

		if err := s.queries.UpsertGrade(c.Request.Context(), progressdb.UpsertGradeParams{
			ID:           uuid.New().String(),
			EnrollmentID: enrollment.ID,
			LessonID:     req.LessonID,
			Score:        *req.Score,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "成績の記録に失敗しました"})
			log.Printf("成績記録エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"message": "成績を記録しました"})
	}
}

// handleMyProgress はコースごとの自分の進捗取得を処理するハンドラを返す。
// 登録確認で得た登録IDをキーに、完了済みレッスンと成績の一覧を返す。
func (s *Server) handleMyProgress() gin.HandlerFunc {
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

		enrollment, outcome := s.validateEnrollment(c.Request.Context(), token, c.Param("courseId"))
		switch outcome {
		case httpclient.OutcomeRejected:
			c.JSON(http.StatusForbidden, gin.H{"error": "このコースに登録されていません"})
			return
		case httpclient.OutcomeIndeterminate:
			c.JSON(http.StatusBadGateway, gin.H{"error": "登録の検証に失敗しました。enrollmentサービスに到達できません"})
			return
		}

		progress, err := s.queries.ListLessonProgressByEnrollmentID(c.Request.Context(), enrollment.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "進捗の取得に失敗しました"})
			log.Printf("進捗取得エラー: %v", err)
			return
		}

		grades, err := s.queries.ListGradesByEnrollmentID(c.Request.Context(), enrollment.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "成績の取得に失敗しました"})
			log.Printf("成績取得エラー: %v", err)
			return
		}

		completed := make([]gin.H, 0, len(progress))
		for _, p := range progress {
			completed = append(completed, gin.H{
				"lesson_id":    p.LessonID,
				"completed_at": p.CompletedAt.Format(time.RFC3339),
			})
		}

		gradeList := make([]gin.H, 0, len(grades))
		for _, g := range grades {
			gradeList = append(gradeList, gin.H{
				"lesson_id":  g.LessonID,
				"score":      g.Score,
				"updated_at": g.UpdatedAt.Format(time.RFC3339),
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"enrollment_id":     enrollment.ID,
			"completed_lessons": completed,
			"grades":            gradeList,
		})
	}
}

// validateEnrollment はゲートウェイ経由でアクティブな登録があることを確認する。
// 確認できた場合は登録情報を返す。結果は3値（confirmed / rejected /
// indeterminate）で、リモートの404とトランスポート障害を区別する。
func (s *Server) validateEnrollment(ctx context.Context, token, courseID string) (enrollmentInfo, httpclient.Outcome) {
	var enrollment enrollmentInfo
	err := s.gatewayClient.GetJSON(
		httpclient.WithAuthorization(ctx, token),
		httpclient.QueryPath("/api/enrollments/check", "courseId", courseID),
		&enrollment,
	)
	outcome := httpclient.Classify(err)
	if outcome != httpclient.OutcomeConfirmed {
		log.Printf("登録検証: course_id=%s, outcome=%s, error=%v", courseID, outcome, err)
	}
	return enrollment, outcome
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
