package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout はサービス間呼び出しのタイムアウト。
// クロスサービス検証はリクエスト処理をブロックするため、明示的に短く設定する。
// タイムアウトした呼び出しは判定不能（OutcomeIndeterminate）として扱われる。
const DefaultTimeout = 5 * time.Second

// Client はサービス間通信用のHTTPクライアント。
// ゲートウェイのベースURLと明示的なタイムアウトを持つ。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先のベースURL（通常はゲートウェイ）。
	baseURL string
}

// StatusError はリモートサービスが2xx以外のステータスを返したことを表す。
// トランスポート層の失敗（接続不可・タイムアウト）とは型で区別できる。
type StatusError struct {
	// StatusCode はリモートが返したHTTPステータスコード。
	StatusCode int
	// Body はリモートが返したレスポンスボディ。
	Body string
}

// Error はerrorインタフェースを実装する。
func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTPエラー: status=%d, body=%s", e.StatusCode, e.Body)
}

// New は新しいサービス間通信用HTTPクライアントを生成する。
// baseURLにはゲートウェイのベースURL（例: "http://gateway:8080"）を指定する。
func New(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		baseURL: baseURL,
	}
}

// PostJSON は指定パスにJSONボディでPOSTリクエストを送信する。
// レスポンスボディをresultにデシリアライズする。
func (c *Client) PostJSON(ctx context.Context, path string, body any, result any) error {
	return c.doJSON(ctx, http.MethodPost, path, body, result)
}

// GetJSON は指定パスにGETリクエストを送信する。
// レスポンスボディをresultにデシリアライズする。
func (c *Client) GetJSON(ctx context.Context, path string, result any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, result)
}

// doJSON はJSON形式のHTTPリクエストを実行する共通処理。
// 2xx以外のステータスは*StatusErrorとして返す。
func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	reqURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// 元のリクエストのBearerトークンをそのまま転送する。
	// ゲートウェイがこのトークンを再検証し、信頼ヘッダーを付与し直す。
	if token, ok := ctx.Value(contextKeyAuthorization).(string); ok && token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}

// QueryPath はパスにクエリパラメータを付加する。
// 例: QueryPath("/api/enrollments/check", "courseId", id)
func QueryPath(path string, pairs ...string) string {
	values := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		values.Set(pairs[i], pairs[i+1])
	}
	if encoded := values.Encode(); encoded != "" {
		return path + "?" + encoded
	}
	return path
}

// contextKey はコンテキストキーの型。
type contextKey string

// contextKeyAuthorization はコンテキストにAuthorizationヘッダー値を格納するためのキー。
const contextKeyAuthorization contextKey = "authorization"

// WithAuthorization はコンテキストに元のリクエストのAuthorizationヘッダー値を設定する。
// サービス間通信時にBearerトークンを転送するために使用する。
func WithAuthorization(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKeyAuthorization, token)
}
