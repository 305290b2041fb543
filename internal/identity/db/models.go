package db

import "time"

// User はusersテーブルの1行を表す。
type User struct {
	// ID はユーザーの一意識別子（UUID）。
	ID string
	// Username はユーザー名。全体で一意。
	Username string
	// Email はメールアドレス。全体で一意。
	Email string
	// PasswordHash はbcryptでハッシュ化されたパスワード。
	PasswordHash string
	// Role はユーザーの役割（student / instructor / admin）。
	Role string
	// CreatedAt は作成日時。
	CreatedAt time.Time
	// UpdatedAt は更新日時。
	UpdatedAt time.Time
}
