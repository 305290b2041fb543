package db

import "context"

const createUser = `
INSERT INTO users (id, username, email, password_hash, role)
VALUES (?, ?, ?, ?, ?)
`

// CreateUserParams はCreateUserのパラメータ。
type CreateUserParams struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         string
}

// CreateUser は新しいユーザーを作成する。
// ユーザー名またはメールアドレスが重複する場合は一意制約違反を返す。
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) error {
	_, err := q.db.ExecContext(ctx, createUser,
		arg.ID, arg.Username, arg.Email, arg.PasswordHash, arg.Role)
	return err
}

const getUserByID = `
SELECT id, username, email, password_hash, role, created_at, updated_at
FROM users WHERE id = ?
`

// GetUserByID はIDでユーザーを取得する。
func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByID, id)
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

const getUserByEmail = `
SELECT id, username, email, password_hash, role, created_at, updated_at
FROM users WHERE email = ?
`

// GetUserByEmail はメールアドレスでユーザーを取得する。ログイン時に使用する。
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByEmail, email)
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

const updateUserProfile = `
UPDATE users
SET username = ?, email = ?, updated_at = datetime('now')
WHERE id = ?
`

// UpdateUserProfileParams はUpdateUserProfileのパラメータ。
type UpdateUserProfileParams struct {
	Username string
	Email    string
	ID       string
}

// UpdateUserProfile はユーザー名とメールアドレスを更新する。
// パスワードはこのクエリでは変更しない。
func (q *Queries) UpdateUserProfile(ctx context.Context, arg UpdateUserProfileParams) error {
	_, err := q.db.ExecContext(ctx, updateUserProfile, arg.Username, arg.Email, arg.ID)
	return err
}
