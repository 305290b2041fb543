package middleware

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims はJWTトークンのクレーム（ペイロード）を表す。
// ゲートウェイで検証された後、信頼ヘッダーとして内部サービスに伝播される。
type Claims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
	// Role はユーザーの役割（student / instructor / admin）。
	Role string `json:"role"`
}

// TokenLifetime はトークンの有効期間。発行時に固定で設定される。
const TokenLifetime = 24 * time.Hour

// GenerateJWT はユーザー情報からJWTトークンを生成する。
// identityサービスがログイン成功後に呼び出す。
func GenerateJWT(secret, userID, email, role string) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(TokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "identity-service",
		},
		UserID: userID,
		Email:  email,
		Role:   role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// VerifyJWT はJWTトークンを検証し、クレームを返す。
// ゲートウェイだけが呼び出す。期限切れの場合、返されるエラーは
// errors.Is(err, jwt.ErrTokenExpired) で判別できる。
func VerifyJWT(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("JWTトークンの検証に失敗: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("JWTトークンが無効です")
	}
	return claims, nil
}
