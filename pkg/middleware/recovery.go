package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// パニック発生時にリクエスト情報をログに出力し、500エラーを返す。
// クロスサービス呼び出しや通知処理の失敗がリクエスト経路に
// 漏れ出た場合の最後の防壁となる。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[PANIC] %s %s: %v", c.Request.Method, c.Request.URL.Path, r)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "内部サーバーエラーが発生しました",
				})
			}
		}()
		c.Next()
	}
}
