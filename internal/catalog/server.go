package catalog

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	catalogdb "github.com/Arukast/UTS-IAE-Kelompok2/internal/catalog/db"
	"github.com/Arukast/UTS-IAE-Kelompok2/pkg/middleware"
)

// Server はcatalogサービスのHTTPサーバー。
// コース・モジュール・レッスンの管理を担当する。enrollmentサービスが
// コースの存在確認に GET /:id を呼び出す。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はDBクエリ実行オブジェクト。
	queries *catalogdb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// NewServer は新しいcatalogサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(port string) (*Server, error) {
	dbPath := getEnvOr("CATALOG_DB_PATH", "/data/catalog.db")
	sqlDB, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:  router,
		port:    port,
		queries: catalogdb.New(sqlDB),
		db:      sqlDB,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// ゲートウェイは /api/courses/* をプレフィックス除去で、/api/modules/* を
// /modules/* へのリマップでこのサービスに転送してくる。
func (s *Server) setupRoutes() {
	// コース作成（講師・管理者のみ）
	s.router.POST("/", middleware.RequireRole(middleware.RoleInstructor, middleware.RoleAdmin), s.handleCreateCourse())
	// コース一覧取得
	s.router.GET("/", s.handleListCourses())
	// コース詳細取得（モジュール・レッスンを含む）
	s.router.GET("/:id", s.handleGetCourse())
	// モジュール作成（講師・管理者のみ）
	s.router.POST("/:id/modules", middleware.RequireRole(middleware.RoleInstructor, middleware.RoleAdmin), s.handleCreateModule())
	// レッスン作成（講師・管理者のみ）
	s.router.POST("/modules/:moduleId/lessons", middleware.RequireRole(middleware.RoleInstructor, middleware.RoleAdmin), s.handleCreateLesson())

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "catalog"})
	})
}

// createCourseRequest はコース作成リクエストのJSON構造。
type createCourseRequest struct {
	// Title はコースのタイトル。
	Title string `json:"title" binding:"required"`
	// Description はコースの説明。
	Description string `json:"description" binding:"required"`
}

// createModuleRequest はモジュール作成リクエストのJSON構造。
type createModuleRequest struct {
	// Title はモジュールのタイトル。
	Title string `json:"title" binding:"required"`
	// ModuleOrder はコース内での表示順序。
	ModuleOrder *int64 `json:"module_order" binding:"required"`
}

// createLessonRequest はレッスン作成リクエストのJSON構造。
type createLessonRequest struct {
	// Title はレッスンのタイトル。
	Title string `json:"title" binding:"required"`
	// ContentType はコンテンツの種類（video / text / quiz）。
	ContentType string `json:"content_type" binding:"required,oneof=video text quiz"`
	// ContentURLOrText はコンテンツのURLまたは本文。省略可。
	ContentURLOrText string `json:"content_url_or_text"`
	// LessonOrder はモジュール内での表示順序。
	LessonOrder *int64 `json:"lesson_order" binding:"required"`
}

// courseResponse はコースのJSONレスポンス構造。
type courseResponse struct {
	// ID はコースの一意識別子。
	ID string `json:"id"`
	// Title はコースのタイトル。
	Title string `json:"title"`
	// Description はコースの説明。
	Description string `json:"description"`
	// InstructorID はコースを作成した講師のユーザーID。
	InstructorID string `json:"instructor_id"`
	// CreatedAt は作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
	// Modules はコースに属するモジュール。詳細取得時のみ含まれる。
	Modules []moduleResponse `json:"modules,omitempty"`
}

// moduleResponse はモジュールのJSONレスポンス構造。
type moduleResponse struct {
	// ID はモジュールの一意識別子。
	ID string `json:"id"`
	// CourseID は所属するコースのID。
	CourseID string `json:"course_id"`
	// Title はモジュールのタイトル。
	Title string `json:"title"`
	// ModuleOrder はコース内での表示順序。
	ModuleOrder int64 `json:"module_order"`
	// Lessons はモジュールに属するレッスン。
	Lessons []lessonResponse `json:"lessons"`
}

// lessonResponse はレッスンのJSONレスポンス構造。
type lessonResponse struct {
	// ID はレッスンの一意識別子。
	ID string `json:"id"`
	// ModuleID は所属するモジュールのID。
	ModuleID string `json:"module_id"`
	// Title はレッスンのタイトル。
	Title string `json:"title"`
	// ContentType はコンテンツの種類。
	ContentType string `json:"content_type"`
	// ContentURLOrText はコンテンツのURLまたは本文。
	ContentURLOrText string `json:"content_url_or_text"`
	// LessonOrder はモジュール内での表示順序。
	LessonOrder int64 `json:"lesson_order"`
}

// toCourseResponse はDB行をJSONレスポンスに変換する。
func toCourseResponse(c catalogdb.Course) courseResponse {
	return courseResponse{
		ID:           c.ID,
		Title:        c.Title,
		Description:  c.Description,
		InstructorID: c.InstructorID,
		CreatedAt:    c.CreatedAt.Format(time.RFC3339),
	}
}

// handleCreateCourse はコース作成を処理するハンドラを返す。
// 講師IDはゲートウェイが付与した信頼ヘッダーから取得する。
func (s *Server) handleCreateCourse() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createCourseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("タイトルと説明が必要です: %v", err)})
			return
		}

		courseID := uuid.New().String()
		if err := s.queries.CreateCourse(c.Request.Context(), catalogdb.CreateCourseParams{
			ID:           courseID,
			Title:        req.Title,
			Description:  req.Description,
			InstructorID: middleware.TrustedUserID(c),
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "コースの作成に失敗しました"})
			log.Printf("コース作成エラー: %v", err)
			return
		}

		created, err := s.queries.GetCourseByID(c.Request.Context(), courseID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "作成したコースの取得に失敗しました"})
			log.Printf("コース取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, toCourseResponse(created))
	}
}

// handleListCourses はコース一覧取得を処理するハンドラを返す。
func (s *Server) handleListCourses() gin.HandlerFunc {
	return func(c *gin.Context) {
		courses, err := s.queries.ListCourses(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "コース一覧の取得に失敗しました"})
			log.Printf("コース一覧取得エラー: %v", err)
			return
		}

		responses := make([]courseResponse, 0, len(courses))
		for _, course := range courses {
			responses = append(responses, toCourseResponse(course))
		}

		c.JSON(http.StatusOK, responses)
	}
}

// handleGetCourse はコース詳細取得を処理するハンドラを返す。
// モジュールとレッスンを表示順で含めて返す。
func (s *Server) handleGetCourse() gin.HandlerFunc {
	return func(c *gin.Context) {
		courseID := c.Param("id")
		course, err := s.queries.GetCourseByID(c.Request.Context(), courseID)
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "コースが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "コースの取得に失敗しました"})
			log.Printf("コース取得エラー: %v", err)
			return
		}

		modules, err := s.queries.ListModulesByCourseID(c.Request.Context(), courseID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "モジュール一覧の取得に失敗しました"})
			log.Printf("モジュール一覧取得エラー: %v", err)
			return
		}

		resp := toCourseResponse(course)
		resp.Modules = make([]moduleResponse, 0, len(modules))
		for _, m := range modules {
			lessons, err := s.queries.ListLessonsByModuleID(c.Request.Context(), m.ID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "レッスン一覧の取得に失敗しました"})
				log.Printf("レッスン一覧取得エラー: %v", err)
				return
			}

			lessonResponses := make([]lessonResponse, 0, len(lessons))
			for _, l := range lessons {
				lessonResponses = append(lessonResponses, lessonResponse{
					ID:               l.ID,
					ModuleID:         l.ModuleID,
					Title:            l.Title,
					ContentType:      l.ContentType,
					ContentURLOrText: l.ContentURLOrText,
					LessonOrder:      l.LessonOrder,
				})
			}

			resp.Modules = append(resp.Modules, moduleResponse{
				ID:          m.ID,
				CourseID:    m.CourseID,
				Title:       m.Title,
				ModuleOrder: m.ModuleOrder,
				Lessons:     lessonResponses,
			})
		}

		c.JSON(http.StatusOK, resp)
	}
}

// handleCreateModule はモジュール作成を処理するハンドラを返す。
// 対象のコースが存在しない場合は404を返す。
func (s *Server) handleCreateModule() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createModuleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("タイトルとmodule_orderが必要です: %v", err)})
			return
		}

		courseID := c.Param("id")
		if _, err := s.queries.GetCourseByID(c.Request.Context(), courseID); err != nil {
			if err == sql.ErrNoRows {
				c.JSON(http.StatusNotFound, gin.H{"error": "コースが見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "コースの取得に失敗しました"})
			log.Printf("コース取得エラー: %v", err)
			return
		}

		moduleID := uuid.New().String()
		if err := s.queries.CreateModule(c.Request.Context(), catalogdb.CreateModuleParams{
			ID:          moduleID,
			CourseID:    courseID,
			Title:       req.Title,
			ModuleOrder: *req.ModuleOrder,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "モジュールの作成に失敗しました"})
			log.Printf("モジュール作成エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, moduleResponse{
			ID:          moduleID,
			CourseID:    courseID,
			Title:       req.Title,
			ModuleOrder: *req.ModuleOrder,
			Lessons:     []lessonResponse{},
		})
	}
}

// handleCreateLesson はレッスン作成を処理するハンドラを返す。
// 対象のモジュールが存在しない場合は404を返す。
func (s *Server) handleCreateLesson() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createLessonRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("タイトル・content_type・lesson_orderが必要です: %v", err)})
			return
		}

		moduleID := c.Param("moduleId")
		if _, err := s.queries.GetModuleByID(c.Request.Context(), moduleID); err != nil {
			if err == sql.ErrNoRows {
				c.JSON(http.StatusNotFound, gin.H{"error": "モジュールが見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "モジュールの取得に失敗しました"})
			log.Printf("モジュール取得エラー: %v", err)
			return
		}

		lessonID := uuid.New().String()
		if err := s.queries.CreateLesson(c.Request.Context(), catalogdb.CreateLessonParams{
			ID:               lessonID,
			ModuleID:         moduleID,
			Title:            req.Title,
			ContentType:      req.ContentType,
			ContentURLOrText: req.ContentURLOrText,
			LessonOrder:      *req.LessonOrder,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レッスンの作成に失敗しました"})
			log.Printf("レッスン作成エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, lessonResponse{
			ID:               lessonID,
			ModuleID:         moduleID,
			Title:            req.Title,
			ContentType:      req.ContentType,
			ContentURLOrText: req.ContentURLOrText,
			LessonOrder:      *req.LessonOrder,
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
