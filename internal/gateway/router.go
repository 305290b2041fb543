package gateway

import (
	"fmt"
	"strings"
)

// routeEntry は公開プレフィックスから内部サービスへのルーティング1件を表す。
type routeEntry struct {
	// Prefix は公開APIのプレフィックス（例: "/api/courses"）。
	Prefix string
	// Service はルーティング先サービスの論理名。ヘルスチェックの一覧に使う。
	Service string
	// Target はルーティング先サービスのベースURL。
	Target string
	// Mount はプレフィックスを取り除いた後に前置するマウントポイント。
	// 空文字なら単純なプレフィックス除去（/api/courses/7 → /7）。
	// "/auth" なら固定リマップ（/api/auth/login → /auth/login）。
	// "/modules" なら /api だけを除去する例外（/api/modules/2 → /modules/2）。
	Mount string
	// Public はtrueのとき認証ゲートを通さずにプロキシする。
	Public bool
}

// routeTable は順序付きのルーティングテーブル。起動時に一度だけ構築され、
// リクエスト処理中は読み取り専用。
type routeTable struct {
	entries []routeEntry
}

// newRouteTable はルーティングテーブルを構築する。
// あるプレフィックスが別のプレフィックスのパス前置になっている設定は、
// 同じパスに複数エントリがマッチし得るため起動時に拒否する。
func newRouteTable(entries []routeEntry) (*routeTable, error) {
	for i := range entries {
		for j := i + 1; j < len(entries); j++ {
			a, b := entries[i].Prefix, entries[j].Prefix
			if isPathPrefix(a, b) || isPathPrefix(b, a) {
				return nil, fmt.Errorf("ルート設定が不正です: プレフィックス %q と %q が重複しています", a, b)
			}
		}
	}
	return &routeTable{entries: entries}, nil
}

// match はリクエストパスにマッチするエントリと書き換え後のパスを返す。
// 先頭から順に探索し、最初にマッチしたエントリが勝つ。
func (t *routeTable) match(path string) (*routeEntry, string, bool) {
	for i := range t.entries {
		e := &t.entries[i]
		if !isPathPrefix(e.Prefix, path) {
			continue
		}
		return e, e.rewrite(path), true
	}
	return nil, "", false
}

// rewrite は公開パスを内部サービス側のパスに書き換える。
// プレフィックスを丸ごと消費した場合は "/" を返す。空文字を返すと
// 内部サービスのルートハンドラ（GET /）にマッチしなくなるため。
func (e *routeEntry) rewrite(path string) string {
	rewritten := e.Mount + strings.TrimPrefix(path, e.Prefix)
	if rewritten == "" {
		return "/"
	}
	return rewritten
}

// serviceNames はテーブルに含まれるサービスの論理名を重複なく返す。
func (t *routeTable) serviceNames() []string {
	seen := make(map[string]struct{}, len(t.entries))
	names := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		if _, ok := seen[e.Service]; ok {
			continue
		}
		seen[e.Service] = struct{}{}
		names = append(names, e.Service)
	}
	return names
}

// isPathPrefix はprefixがpathのパスセグメント単位の前置であるかを返す。
// 例: /api/courses は /api/courses/7 の前置だが /api/coursesX の前置ではない。
func isPathPrefix(prefix, path string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
