// 進捗サービスのエントリポイント。
// レッスンの完了記録と成績を管理する。書き込み前に登録サービスへの
// 登録確認を行う。
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/Arukast/UTS-IAE-Kelompok2/internal/progress"
)

func main() {
	// .envが無い環境では環境変数をそのまま使う。
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8084"
	}

	server, err := progress.NewServer(port)
	if err != nil {
		log.Fatalf("進捗サーバーの初期化に失敗: %v", err)
	}

	log.Printf("進捗サービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("進捗サービスの起動に失敗: %v", err)
	}
}
