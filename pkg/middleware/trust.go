package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ゲートウェイから内部サービスへ認証済みユーザー情報を伝播するためのHTTPヘッダーキー。
// ゲートウェイだけがこれらのヘッダーを付与する。内部ネットワークの外からは
// 受け付けてはならない（境界信頼モデル）。
const (
	// HeaderUserID は認証済みユーザーのIDを伝播するヘッダーキー。
	HeaderUserID = "X-User-Id"
	// HeaderUserRole は認証済みユーザーのロールを伝播するヘッダーキー。
	HeaderUserRole = "X-User-Role"
	// HeaderUserEmail は認証済みユーザーのメールアドレスを伝播するヘッダーキー。
	HeaderUserEmail = "X-User-Email"
)

// ユーザーのロール。identityサービスのusersテーブルと同じ値域を持つ。
const (
	// RoleStudent は受講者を表すロール。
	RoleStudent = "student"
	// RoleInstructor は講師を表すロール。
	RoleInstructor = "instructor"
	// RoleAdmin は管理者を表すロール。
	RoleAdmin = "admin"
)

// TrustedUserID はゲートウェイが付与したユーザーIDヘッダーを返す。
// 未認証（公開ルート経由）の場合は空文字を返す。
func TrustedUserID(c *gin.Context) string {
	return c.GetHeader(HeaderUserID)
}

// TrustedUserRole はゲートウェイが付与したロールヘッダーを返す。
func TrustedUserRole(c *gin.Context) string {
	return c.GetHeader(HeaderUserRole)
}

// TrustedUserEmail はゲートウェイが付与したメールアドレスヘッダーを返す。
func TrustedUserEmail(c *gin.Context) string {
	return c.GetHeader(HeaderUserEmail)
}

// RequireTrustHeaders はゲートウェイの信頼ヘッダーが存在することを要求する
// Ginミドルウェアを返す。X-User-Id が無い場合は401を返す。
// ヘッダーの内容は検証しない。検証はゲートウェイで完了している。
func RequireTrustHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		if TrustedUserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "認証が必要です。X-User-Id ヘッダーがありません",
			})
			return
		}
		c.Next()
	}
}

// RequireRole は信頼ヘッダーのロールが指定されたいずれかであることを要求する
// Ginミドルウェアを返す。該当しない場合は403を返す。
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role := TrustedUserRole(c)
		if _, ok := allowed[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "アクセスが拒否されました。ロールの権限が不足しています",
			})
			return
		}
		c.Next()
	}
}
