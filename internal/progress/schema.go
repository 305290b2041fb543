package progress

import (
	"database/sql"
	"errors"
	"fmt"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// スキーマ定義。
const schema = `
CREATE TABLE IF NOT EXISTS lesson_progress (
    -- 進捗レコードの一意識別子（UUID）
    id TEXT PRIMARY KEY,
    -- 対象の登録ID（enrollmentサービス管理）
    enrollment_id TEXT NOT NULL,
    -- 完了したレッスンのID（catalogサービス管理）
    lesson_id TEXT NOT NULL,
    -- 完了日時
    completed_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

-- 同じレッスンの完了は1度しか記録されない。
CREATE UNIQUE INDEX IF NOT EXISTS idx_lesson_progress_enrollment_lesson
    ON lesson_progress(enrollment_id, lesson_id);

CREATE TABLE IF NOT EXISTS grades (
    -- 成績レコードの一意識別子（UUID）
    id TEXT PRIMARY KEY,
    -- 対象の登録ID
    enrollment_id TEXT NOT NULL,
    -- 採点対象のレッスン（クイズ）のID
    lesson_id TEXT NOT NULL,
    -- 0〜100のスコア
    score REAL NOT NULL,
    -- 最後に記録された日時
    updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

-- 成績は登録とレッスンの組ごとに1件。再提出はスコアを上書きする。
CREATE UNIQUE INDEX IF NOT EXISTS idx_grades_enrollment_lesson
    ON grades(enrollment_id, lesson_id);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}

// isUniqueViolation はエラーがSQLiteの一意制約違反であるかを返す。
// レッスン完了の重複記録の検出に使用する。
func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	return errors.As(err, &serr) && serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
