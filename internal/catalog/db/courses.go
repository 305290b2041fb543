package db

import "context"

const createCourse = `
INSERT INTO courses (id, title, description, instructor_id)
VALUES (?, ?, ?, ?)
`

// CreateCourseParams はCreateCourseのパラメータ。
type CreateCourseParams struct {
	ID           string
	Title        string
	Description  string
	InstructorID string
}

// CreateCourse は新しいコースを作成する。
func (q *Queries) CreateCourse(ctx context.Context, arg CreateCourseParams) error {
	_, err := q.db.ExecContext(ctx, createCourse,
		arg.ID, arg.Title, arg.Description, arg.InstructorID)
	return err
}

const getCourseByID = `
SELECT id, title, description, instructor_id, created_at, updated_at
FROM courses WHERE id = ?
`

// GetCourseByID はIDでコースを取得する。
func (q *Queries) GetCourseByID(ctx context.Context, id string) (Course, error) {
	row := q.db.QueryRowContext(ctx, getCourseByID, id)
	var c Course
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.InstructorID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const listCourses = `
SELECT id, title, description, instructor_id, created_at, updated_at
FROM courses ORDER BY created_at DESC
`

// ListCourses は全コースを作成日時の降順で取得する。
func (q *Queries) ListCourses(ctx context.Context) ([]Course, error) {
	rows, err := q.db.QueryContext(ctx, listCourses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []Course
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.InstructorID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

const createModule = `
INSERT INTO modules (id, course_id, title, module_order)
VALUES (?, ?, ?, ?)
`

// CreateModuleParams はCreateModuleのパラメータ。
type CreateModuleParams struct {
	ID          string
	CourseID    string
	Title       string
	ModuleOrder int64
}

// CreateModule は新しいモジュールを作成する。
func (q *Queries) CreateModule(ctx context.Context, arg CreateModuleParams) error {
	_, err := q.db.ExecContext(ctx, createModule,
		arg.ID, arg.CourseID, arg.Title, arg.ModuleOrder)
	return err
}

const getModuleByID = `
SELECT id, course_id, title, module_order
FROM modules WHERE id = ?
`

// GetModuleByID はIDでモジュールを取得する。
func (q *Queries) GetModuleByID(ctx context.Context, id string) (Module, error) {
	row := q.db.QueryRowContext(ctx, getModuleByID, id)
	var m Module
	err := row.Scan(&m.ID, &m.CourseID, &m.Title, &m.ModuleOrder)
	return m, err
}

const listModulesByCourseID = `
SELECT id, course_id, title, module_order
FROM modules WHERE course_id = ? ORDER BY module_order ASC
`

// ListModulesByCourseID はコースに属するモジュールを表示順で取得する。
func (q *Queries) ListModulesByCourseID(ctx context.Context, courseID string) ([]Module, error) {
	rows, err := q.db.QueryContext(ctx, listModulesByCourseID, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var modules []Module
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.ID, &m.CourseID, &m.Title, &m.ModuleOrder); err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

const createLesson = `
INSERT INTO lessons (id, module_id, title, content_type, content_url_or_text, lesson_order)
VALUES (?, ?, ?, ?, ?, ?)
`

// CreateLessonParams はCreateLessonのパラメータ。
type CreateLessonParams struct {
	ID               string
	ModuleID         string
	Title            string
	ContentType      string
	ContentURLOrText string
	LessonOrder      int64
}

// CreateLesson は新しいレッスンを作成する。
func (q *Queries) CreateLesson(ctx context.Context, arg CreateLessonParams) error {
	_, err := q.db.ExecContext(ctx, createLesson,
		arg.ID, arg.ModuleID, arg.Title, arg.ContentType, arg.ContentURLOrText, arg.LessonOrder)
	return err
}

const listLessonsByModuleID = `
SELECT id, module_id, title, content_type, content_url_or_text, lesson_order
FROM lessons WHERE module_id = ? ORDER BY lesson_order ASC
`

// ListLessonsByModuleID はモジュールに属するレッスンを表示順で取得する。
func (q *Queries) ListLessonsByModuleID(ctx context.Context, moduleID string) ([]Lesson, error) {
	rows, err := q.db.QueryContext(ctx, listLessonsByModuleID, moduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lessons []Lesson
	for rows.Next() {
		var l Lesson
		if err := rows.Scan(&l.ID, &l.ModuleID, &l.Title, &l.ContentType, &l.ContentURLOrText, &l.LessonOrder); err != nil {
			return nil, err
		}
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}
