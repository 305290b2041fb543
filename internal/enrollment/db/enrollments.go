package db

import (
	"context"
	"time"
)

// Enrollment はenrollmentsテーブルの1行を表す。
// (user_id, course_id) の組はシステム全体で唯一の強い不変条件であり、
// ストレージ層の一意制約で保証される。
type Enrollment struct {
	// ID は登録の一意識別子（UUID）。
	ID string
	// UserID は受講者のユーザーID（identityサービス管理）。
	UserID string
	// CourseID はコースのID（catalogサービス管理）。
	CourseID string
	// Status は登録の状態（active / completed）。
	Status string
	// EnrolledAt は登録日時。
	EnrolledAt time.Time
}

const createEnrollment = `
INSERT INTO enrollments (id, user_id, course_id)
VALUES (?, ?, ?)
`

// CreateEnrollmentParams はCreateEnrollmentのパラメータ。
type CreateEnrollmentParams struct {
	ID       string
	UserID   string
	CourseID string
}

// CreateEnrollment は新しい登録を作成する。
// 同じ (user_id, course_id) の組が既に存在する場合は一意制約違反を返す。
// 同時登録の競合はアプリケーション側のロックではなく、この制約が調停する。
func (q *Queries) CreateEnrollment(ctx context.Context, arg CreateEnrollmentParams) error {
	_, err := q.db.ExecContext(ctx, createEnrollment, arg.ID, arg.UserID, arg.CourseID)
	return err
}

const getEnrollmentByID = `
SELECT id, user_id, course_id, status, enrolled_at
FROM enrollments WHERE id = ?
`

// GetEnrollmentByID はIDで登録を取得する。
func (q *Queries) GetEnrollmentByID(ctx context.Context, id string) (Enrollment, error) {
	row := q.db.QueryRowContext(ctx, getEnrollmentByID, id)
	var e Enrollment
	err := row.Scan(&e.ID, &e.UserID, &e.CourseID, &e.Status, &e.EnrolledAt)
	return e, err
}

const getActiveEnrollment = `
SELECT id, user_id, course_id, status, enrolled_at
FROM enrollments
WHERE user_id = ? AND course_id = ? AND status = 'active'
`

// GetActiveEnrollmentParams はGetActiveEnrollmentのパラメータ。
type GetActiveEnrollmentParams struct {
	UserID   string
	CourseID string
}

// GetActiveEnrollment はユーザーとコースの組でアクティブな登録を取得する。
// progressサービスのクロスサービス検証が使用する。
func (q *Queries) GetActiveEnrollment(ctx context.Context, arg GetActiveEnrollmentParams) (Enrollment, error) {
	row := q.db.QueryRowContext(ctx, getActiveEnrollment, arg.UserID, arg.CourseID)
	var e Enrollment
	err := row.Scan(&e.ID, &e.UserID, &e.CourseID, &e.Status, &e.EnrolledAt)
	return e, err
}

const listEnrollmentsByUserID = `
SELECT id, user_id, course_id, status, enrolled_at
FROM enrollments WHERE user_id = ? ORDER BY enrolled_at DESC
`

// ListEnrollmentsByUserID はユーザーの登録一覧を取得する。
func (q *Queries) ListEnrollmentsByUserID(ctx context.Context, userID string) ([]Enrollment, error) {
	rows, err := q.db.QueryContext(ctx, listEnrollmentsByUserID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var enrollments []Enrollment
	for rows.Next() {
		var e Enrollment
		if err := rows.Scan(&e.ID, &e.UserID, &e.CourseID, &e.Status, &e.EnrolledAt); err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

const listEnrollmentsByCourseID = `
SELECT id, user_id, course_id, status, enrolled_at
FROM enrollments WHERE course_id = ? ORDER BY enrolled_at ASC
`

// ListEnrollmentsByCourseID はコースの受講者一覧を取得する。
func (q *Queries) ListEnrollmentsByCourseID(ctx context.Context, courseID string) ([]Enrollment, error) {
	rows, err := q.db.QueryContext(ctx, listEnrollmentsByCourseID, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var enrollments []Enrollment
	for rows.Next() {
		var e Enrollment
		if err := rows.Scan(&e.ID, &e.UserID, &e.CourseID, &e.Status, &e.EnrolledAt); err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

const countEnrollments = `
SELECT COUNT(*) FROM enrollments WHERE user_id = ? AND course_id = ?
`

// CountEnrollmentsParams はCountEnrollmentsのパラメータ。
type CountEnrollmentsParams struct {
	UserID   string
	CourseID string
}

// CountEnrollments はユーザーとコースの組に一致する登録数を返す。
func (q *Queries) CountEnrollments(ctx context.Context, arg CountEnrollmentsParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, countEnrollments, arg.UserID, arg.CourseID)
	var count int64
	err := row.Scan(&count)
	return count, err
}
