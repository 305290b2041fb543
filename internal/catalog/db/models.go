package db

import "time"

// Course はcoursesテーブルの1行を表す。
type Course struct {
	// ID はコースの一意識別子（UUID）。
	ID string
	// Title はコースのタイトル。
	Title string
	// Description はコースの説明。
	Description string
	// InstructorID はコースを作成した講師のユーザーID（identityサービス管理）。
	InstructorID string
	// CreatedAt は作成日時。
	CreatedAt time.Time
	// UpdatedAt は更新日時。
	UpdatedAt time.Time
}

// Module はmodulesテーブルの1行を表す。
type Module struct {
	// ID はモジュールの一意識別子（UUID）。
	ID string
	// CourseID は所属するコースのID。
	CourseID string
	// Title はモジュールのタイトル。
	Title string
	// ModuleOrder はコース内での表示順序。
	ModuleOrder int64
}

// Lesson はlessonsテーブルの1行を表す。
type Lesson struct {
	// ID はレッスンの一意識別子（UUID）。
	ID string
	// ModuleID は所属するモジュールのID。
	ModuleID string
	// Title はレッスンのタイトル。
	Title string
	// ContentType はコンテンツの種類（video / text / quiz）。
	ContentType string
	// ContentURLOrText はコンテンツのURLまたは本文。
	ContentURLOrText string
	// LessonOrder はモジュール内での表示順序。
	LessonOrder int64
}
