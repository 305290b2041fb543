// 通知サービスのエントリポイント。
// 通知の記録とベストエフォートの配信を担当する。
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/Arukast/UTS-IAE-Kelompok2/internal/notification"
)

func main() {
	// .envが無い環境では環境変数をそのまま使う。
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8085"
	}

	server, err := notification.NewServer(port)
	if err != nil {
		log.Fatalf("通知サーバーの初期化に失敗: %v", err)
	}

	log.Printf("通知サービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("通知サービスの起動に失敗: %v", err)
	}
}
