package notification

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。
const schema = `
CREATE TABLE IF NOT EXISTS notifications (
    -- 通知の一意識別子（UUID）
    id TEXT PRIMARY KEY,
    -- 通知先のユーザーID（identityサービス管理）
    user_id TEXT NOT NULL,
    -- 通知メッセージ本文
    message TEXT NOT NULL,
    -- 通知の種別
    type TEXT NOT NULL DEFAULT 'GENERAL',
    -- 送信状態
    status TEXT NOT NULL DEFAULT 'sent'
        CHECK (status IN ('sent', 'failed')),
    -- 記録日時
    created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

-- ユーザーの通知一覧の検索を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_notifications_user_id
    ON notifications(user_id);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
