// Package gateway はAPI Gatewayサービスの内部実装を提供する。
//
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線として
// 機能する。公開パスをルートテーブルで内部サービスのパスに書き換え、
// 保護ルートではJWTを検証してから、検証済みのユーザー情報を信頼ヘッダー
// （X-User-Id / X-User-Role / X-User-Email）として内部サービスに転送する。
//
// 内部サービスはこのヘッダーを再検証しない境界信頼モデルを採用している。
// ゲートウェイと内部サービスの間に暗号学的な紐付けは無く、内部ネットワークが
// 信頼できることが前提となる。これは意図的に受け入れた設計上の弱点である。
package gateway
