// カタログサービスのエントリポイント。
// コース、モジュール、レッスンの階層構造を管理する。
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/Arukast/UTS-IAE-Kelompok2/internal/catalog"
)

func main() {
	// .envが無い環境では環境変数をそのまま使う。
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8082"
	}

	server, err := catalog.NewServer(port)
	if err != nil {
		log.Fatalf("カタログサーバーの初期化に失敗: %v", err)
	}

	log.Printf("カタログサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("カタログサービスの起動に失敗: %v", err)
	}
}
