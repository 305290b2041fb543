package db

import (
	"context"
	"time"
)

// NotificationLog はnotificationsテーブルの1行を表す。
// 送信試行の記録であり、配信が保証されるわけではない。
type NotificationLog struct {
	// ID は通知の一意識別子（UUID）。
	ID string
	// UserID は通知先のユーザーID。
	UserID string
	// Message は通知メッセージ本文。
	Message string
	// Type は通知の種別（例: ENROLLMENT_SUCCESS）。
	Type string
	// Status は送信状態（sent / failed）。
	Status string
	// CreatedAt は記録日時。
	CreatedAt time.Time
}

const createNotificationLog = `
INSERT INTO notifications (id, user_id, message, type, status)
VALUES (?, ?, ?, ?, ?)
`

// CreateNotificationLogParams はCreateNotificationLogのパラメータ。
type CreateNotificationLogParams struct {
	ID      string
	UserID  string
	Message string
	Type    string
	Status  string
}

// CreateNotificationLog は通知の記録を作成する。
func (q *Queries) CreateNotificationLog(ctx context.Context, arg CreateNotificationLogParams) error {
	_, err := q.db.ExecContext(ctx, createNotificationLog,
		arg.ID, arg.UserID, arg.Message, arg.Type, arg.Status)
	return err
}

const updateNotificationStatus = `
UPDATE notifications SET status = ? WHERE id = ?
`

// UpdateNotificationStatusParams はUpdateNotificationStatusのパラメータ。
type UpdateNotificationStatusParams struct {
	Status string
	ID     string
}

// UpdateNotificationStatus は通知の送信状態を更新する。
// 非同期の配信処理が失敗した場合にfailedへ落とすために使う。
func (q *Queries) UpdateNotificationStatus(ctx context.Context, arg UpdateNotificationStatusParams) error {
	_, err := q.db.ExecContext(ctx, updateNotificationStatus, arg.Status, arg.ID)
	return err
}

const getNotificationByID = `
SELECT id, user_id, message, type, status, created_at
FROM notifications WHERE id = ?
`

// GetNotificationByID はIDで通知を取得する。
func (q *Queries) GetNotificationByID(ctx context.Context, id string) (NotificationLog, error) {
	row := q.db.QueryRowContext(ctx, getNotificationByID, id)
	var n NotificationLog
	err := row.Scan(&n.ID, &n.UserID, &n.Message, &n.Type, &n.Status, &n.CreatedAt)
	return n, err
}

const listNotificationsByUserID = `
SELECT id, user_id, message, type, status, created_at
FROM notifications WHERE user_id = ?
ORDER BY created_at DESC LIMIT 20
`

// ListNotificationsByUserID はユーザーの通知一覧を新しい順に最大20件取得する。
func (q *Queries) ListNotificationsByUserID(ctx context.Context, userID string) ([]NotificationLog, error) {
	rows, err := q.db.QueryContext(ctx, listNotificationsByUserID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []NotificationLog
	for rows.Next() {
		var n NotificationLog
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Type, &n.Status, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}
