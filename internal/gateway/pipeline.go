package gateway

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Arukast/UTS-IAE-Kelompok2/pkg/middleware"
)

// handlePipeline は /api 配下のリクエストを処理するハンドラを返す。
// ルーティング → （保護ルートなら）認証 → 信頼ヘッダー付与 → プロキシ、の順で
// 進む。認証は必ずプロキシより先に完了する。認証に失敗したリクエストが
// 内部サービスに転送されることはない。
func (s *Server) handlePipeline() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		entry, rewritten, ok := s.routes.match(path)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Endpoint Not Found",
				"path":  path,
			})
			return
		}

		if entry.Public {
			s.doProxy(c, entry.Target+rewritten, nil)
			return
		}

		claims, ok := s.authenticate(c)
		if !ok {
			return
		}

		s.doProxy(c, entry.Target+rewritten, claims)
	}
}

// authenticate はAuthorizationヘッダーのBearerトークンを検証する。
// ヘッダーが無い場合は401、トークンが不正または期限切れの場合は403を返す。
// 期限切れと形式不正はログでのみ区別し、クライアントへのレスポンスは
// どちらの失敗かを漏らさないよう同一にする。
func (s *Server) authenticate(c *gin.Context) (*middleware.Claims, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "アクセスが拒否されました。トークンがありません",
		})
		return nil, false
	}

	tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found {
		log.Printf("トークン検証に失敗 (reason=malformed): Bearer形式ではありません")
		c.JSON(http.StatusForbidden, gin.H{
			"error": "トークンが無効または期限切れです",
		})
		return nil, false
	}

	claims, err := middleware.VerifyJWT(s.jwtSecret, tokenString)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, jwt.ErrTokenExpired) {
			reason = "expired"
		}
		log.Printf("トークン検証に失敗 (reason=%s): %v", reason, err)
		c.JSON(http.StatusForbidden, gin.H{
			"error": "トークンが無効または期限切れです",
		})
		return nil, false
	}

	return claims, true
}

// doProxy はリクエストを内部サービスにプロキシする。
// メソッド・ボディ・クエリ文字列は変更せずに転送する。claimsが非nilの場合は
// 検証済みのユーザー情報を信頼ヘッダーとして付与する。外部から持ち込まれた
// 信頼ヘッダーは必ず破棄し、ゲートウェイだけがこのヘッダーの発信元になる。
func (s *Server) doProxy(c *gin.Context, target string, claims *middleware.Claims) {
	proxyURL := target
	if c.Request.URL.RawQuery != "" {
		proxyURL += "?" + c.Request.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, proxyURL, c.Request.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "プロキシリクエストの作成に失敗しました"})
		return
	}

	req.Header.Set("Content-Type", c.GetHeader("Content-Type"))
	req.Header.Set("Authorization", c.GetHeader("Authorization"))

	req.Header.Del(middleware.HeaderUserID)
	req.Header.Del(middleware.HeaderUserRole)
	req.Header.Del(middleware.HeaderUserEmail)
	if claims != nil {
		req.Header.Set(middleware.HeaderUserID, claims.UserID)
		req.Header.Set(middleware.HeaderUserRole, claims.Role)
		req.Header.Set(middleware.HeaderUserEmail, claims.Email)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "内部サービスとの通信に失敗しました"})
		log.Printf("プロキシエラー: url=%s, error=%v", proxyURL, err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "レスポンスの読み取りに失敗しました"})
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, body)
}
