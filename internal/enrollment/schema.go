package enrollment

import (
	"database/sql"
	"errors"
	"fmt"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// スキーマ定義。
const schema = `
CREATE TABLE IF NOT EXISTS enrollments (
    -- 登録の一意識別子（UUID）
    id TEXT PRIMARY KEY,
    -- 受講者のユーザーID（identityサービス管理）
    user_id TEXT NOT NULL,
    -- コースのID（catalogサービス管理）
    course_id TEXT NOT NULL,
    -- 登録の状態
    status TEXT NOT NULL DEFAULT 'active'
        CHECK (status IN ('active', 'completed')),
    -- 登録日時
    enrolled_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

-- 1ユーザーは1コースに1度しか登録できない。同時登録の競合はこの制約が調停する。
CREATE UNIQUE INDEX IF NOT EXISTS idx_enrollments_user_course
    ON enrollments(user_id, course_id);

-- ユーザーの登録一覧の検索を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_enrollments_user_id
    ON enrollments(user_id);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}

// isUniqueViolation はエラーがSQLiteの一意制約違反であるかを返す。
// 重複登録の検出に使用する。
func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	return errors.As(err, &serr) && serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
