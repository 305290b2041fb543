// IDサービスのエントリポイント。
// ユーザー登録、ログイン時のJWT発行、プロフィール管理を担当する。
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/Arukast/UTS-IAE-Kelompok2/internal/identity"
)

func main() {
	// .envが無い環境では環境変数をそのまま使う。
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	server, err := identity.NewServer(port)
	if err != nil {
		log.Fatalf("IDサーバーの初期化に失敗: %v", err)
	}

	log.Printf("IDサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("IDサービスの起動に失敗: %v", err)
	}
}
