// Package db はcatalogサービスのデータベースクエリ層を提供する。
package db

import (
	"context"
	"database/sql"
)

// DBTX は*sql.DBと*sql.Txの両方を受け入れるためのインタフェース。
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// New は新しいクエリ実行オブジェクトを生成する。
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries はデータベースクエリをまとめた実行オブジェクト。
type Queries struct {
	db DBTX
}
