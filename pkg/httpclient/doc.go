// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// 内部サービスが他のサービスを呼び出す際は、必ずゲートウェイの公開API経由で
// 通信する。元のリクエストのBearerトークンをそのまま転送するため、
// ゲートウェイから見るとサービス間呼び出しは通常のクライアント呼び出しと
// 区別がつかず、認証ゲートを再び通過する。
//
// 呼び出し結果は3値で分類できる（Classify参照）。リモートの404（前提条件が
// 偽）と、接続失敗・タイムアウト・5xx（判定不能）は別のエラークラスとして
// 扱い、呼び出し元で異なるステータスコードにマッピングする。
package httpclient
