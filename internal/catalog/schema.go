package catalog

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。
const schema = `
CREATE TABLE IF NOT EXISTS courses (
    -- コースの一意識別子（UUID）
    id TEXT PRIMARY KEY,
    -- コースのタイトル
    title TEXT NOT NULL,
    -- コースの説明
    description TEXT NOT NULL DEFAULT '',
    -- コースを作成した講師のユーザーID（identityサービス管理）
    instructor_id TEXT NOT NULL,
    -- 作成日時
    created_at DATETIME NOT NULL DEFAULT (datetime('now')),
    -- 更新日時
    updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS modules (
    -- モジュールの一意識別子（UUID）
    id TEXT PRIMARY KEY,
    -- 所属するコースのID
    course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    -- モジュールのタイトル
    title TEXT NOT NULL,
    -- コース内での表示順序
    module_order INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS lessons (
    -- レッスンの一意識別子（UUID）
    id TEXT PRIMARY KEY,
    -- 所属するモジュールのID
    module_id TEXT NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
    -- レッスンのタイトル
    title TEXT NOT NULL,
    -- コンテンツの種類
    content_type TEXT NOT NULL CHECK (content_type IN ('video', 'text', 'quiz')),
    -- コンテンツのURLまたは本文
    content_url_or_text TEXT NOT NULL DEFAULT '',
    -- モジュール内での表示順序
    lesson_order INTEGER NOT NULL
);

-- コース配下のモジュール検索を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_modules_course_id
    ON modules(course_id);

-- モジュール配下のレッスン検索を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_lessons_module_id
    ON lessons(module_id);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
