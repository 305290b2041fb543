package db

import (
	"context"
	"time"
)

// LessonProgress はlesson_progressテーブルの1行を表す。
// (enrollment_id, lesson_id) の組で一意。同じレッスンの完了は1度しか記録されない。
type LessonProgress struct {
	// ID は進捗レコードの一意識別子（UUID）。
	ID string
	// EnrollmentID は対象の登録ID（enrollmentサービス管理）。
	EnrollmentID string
	// LessonID は完了したレッスンのID（catalogサービス管理）。
	LessonID string
	// CompletedAt は完了日時。
	CompletedAt time.Time
}

// Grade はgradesテーブルの1行を表す。クイズの採点結果を保持する。
type Grade struct {
	// ID は成績レコードの一意識別子（UUID）。
	ID string
	// EnrollmentID は対象の登録ID。
	EnrollmentID string
	// LessonID は採点対象のレッスン（クイズ）のID。
	LessonID string
	// Score は0〜100のスコア。
	Score float64
	// UpdatedAt は最後に記録された日時。
	UpdatedAt time.Time
}

const createLessonProgress = `
INSERT INTO lesson_progress (id, enrollment_id, lesson_id)
VALUES (?, ?, ?)
`

// CreateLessonProgressParams はCreateLessonProgressのパラメータ。
type CreateLessonProgressParams struct {
	ID           string
	EnrollmentID string
	LessonID     string
}

// CreateLessonProgress はレッスン完了を記録する。
// 同じ (enrollment_id, lesson_id) の組が既に存在する場合は一意制約違反を返す。
func (q *Queries) CreateLessonProgress(ctx context.Context, arg CreateLessonProgressParams) error {
	_, err := q.db.ExecContext(ctx, createLessonProgress, arg.ID, arg.EnrollmentID, arg.LessonID)
	return err
}

const getLessonProgress = `
SELECT id, enrollment_id, lesson_id, completed_at
FROM lesson_progress WHERE enrollment_id = ? AND lesson_id = ?
`

// GetLessonProgressParams はGetLessonProgressのパラメータ。
type GetLessonProgressParams struct {
	EnrollmentID string
	LessonID     string
}

// GetLessonProgress は登録とレッスンの組で進捗レコードを取得する。
func (q *Queries) GetLessonProgress(ctx context.Context, arg GetLessonProgressParams) (LessonProgress, error) {
	row := q.db.QueryRowContext(ctx, getLessonProgress, arg.EnrollmentID, arg.LessonID)
	var p LessonProgress
	err := row.Scan(&p.ID, &p.EnrollmentID, &p.LessonID, &p.CompletedAt)
	return p, err
}

const listLessonProgressByEnrollmentID = `
SELECT id, enrollment_id, lesson_id, completed_at
FROM lesson_progress WHERE enrollment_id = ? ORDER BY completed_at ASC
`

// ListLessonProgressByEnrollmentID は登録に属する完了済みレッスン一覧を取得する。
func (q *Queries) ListLessonProgressByEnrollmentID(ctx context.Context, enrollmentID string) ([]LessonProgress, error) {
	rows, err := q.db.QueryContext(ctx, listLessonProgressByEnrollmentID, enrollmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var progress []LessonProgress
	for rows.Next() {
		var p LessonProgress
		if err := rows.Scan(&p.ID, &p.EnrollmentID, &p.LessonID, &p.CompletedAt); err != nil {
			return nil, err
		}
		progress = append(progress, p)
	}
	return progress, rows.Err()
}

const upsertGrade = `
INSERT INTO grades (id, enrollment_id, lesson_id, score)
VALUES (?, ?, ?, ?)
ON CONFLICT (enrollment_id, lesson_id)
DO UPDATE SET score = excluded.score, updated_at = datetime('now')
`

// UpsertGradeParams はUpsertGradeのパラメータ。
type UpsertGradeParams struct {
	ID           string
	EnrollmentID string
	LessonID     string
	Score        float64
}

// UpsertGrade は成績を記録する。同じ (enrollment_id, lesson_id) の組が
// 既に存在する場合はスコアを上書きする。
func (q *Queries) UpsertGrade(ctx context.Context, arg UpsertGradeParams) error {
	_, err := q.db.ExecContext(ctx, upsertGrade, arg.ID, arg.EnrollmentID, arg.LessonID, arg.Score)
	return err
}

const listGradesByEnrollmentID = `
SELECT id, enrollment_id, lesson_id, score, updated_at
FROM grades WHERE enrollment_id = ? ORDER BY updated_at ASC
`

// ListGradesByEnrollmentID は登録に属する成績一覧を取得する。
func (q *Queries) ListGradesByEnrollmentID(ctx context.Context, enrollmentID string) ([]Grade, error) {
	rows, err := q.db.QueryContext(ctx, listGradesByEnrollmentID, enrollmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grades []Grade
	for rows.Next() {
		var g Grade
		if err := rows.Scan(&g.ID, &g.EnrollmentID, &g.LessonID, &g.Score, &g.UpdatedAt); err != nil {
			return nil, err
		}
		grades = append(grades, g)
	}
	return grades, rows.Err()
}
