// 登録サービスのエントリポイント。
// コースへの登録を管理する。登録前にカタログサービスへのコース存在確認を行い、
// 登録成功後はベストエフォートで通知サービスを呼び出す。
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/Arukast/UTS-IAE-Kelompok2/internal/enrollment"
)

func main() {
	// .envが無い環境では環境変数をそのまま使う。
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8083"
	}

	server, err := enrollment.NewServer(port)
	if err != nil {
		log.Fatalf("登録サーバーの初期化に失敗: %v", err)
	}

	log.Printf("登録サービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("登録サービスの起動に失敗: %v", err)
	}
}
