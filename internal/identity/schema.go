package identity

import (
	"database/sql"
	"errors"
	"fmt"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// スキーマ定義。
const schema = `
CREATE TABLE IF NOT EXISTS users (
    -- ユーザーの一意識別子（UUID）
    id TEXT PRIMARY KEY,
    -- ユーザー名（全体で一意）
    username TEXT NOT NULL UNIQUE,
    -- メールアドレス（全体で一意）
    email TEXT NOT NULL UNIQUE,
    -- bcryptでハッシュ化されたパスワード
    password_hash TEXT NOT NULL,
    -- ユーザーの役割
    role TEXT NOT NULL DEFAULT 'student'
        CHECK (role IN ('student', 'instructor', 'admin')),
    -- 作成日時
    created_at DATETIME NOT NULL DEFAULT (datetime('now')),
    -- 更新日時
    updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

-- メールアドレスでのログイン検索を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_users_email
    ON users(email);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}

// isUniqueViolation はエラーがSQLiteの一意制約違反であるかを返す。
// ユーザー名・メールアドレスの重複登録の検出に使用する。
func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	return errors.As(err, &serr) && serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
