// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// JWTトークンの生成・検証、ゲートウェイが付与する信頼ヘッダーの読み取り、
// ロールによる認可チェック、パニックリカバリ、CORS設定など、
// 全サービスで共通して使用する処理を含む。
//
// 認証の検証はゲートウェイだけが行う境界信頼モデルを採用している。
// 内部サービスはゲートウェイが付与した X-User-Id / X-User-Role / X-User-Email
// ヘッダーを無条件に信頼し、トークンの再検証は行わない。
package middleware
