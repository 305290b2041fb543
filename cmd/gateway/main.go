// API Gatewayサービスのエントリポイント。
// JWT検証、リクエストルーティング、信頼ヘッダーの付与を担当する。
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線となる。
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/Arukast/UTS-IAE-Kelompok2/internal/gateway"
)

func main() {
	// .envが無い環境では環境変数をそのまま使う。
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server, err := gateway.NewServer(port)
	if err != nil {
		log.Fatalf("Gatewayサーバーの初期化に失敗: %v", err)
	}

	log.Printf("Gatewayサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("Gatewayサービスの起動に失敗: %v", err)
	}
}
