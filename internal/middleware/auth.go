package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/inboxd/internal/identity"
	"github.com/hitoshi/inboxd/internal/model"
)

// maxSignedBodySize は署名付きリクエストボディの最大サイズ。
const maxSignedBodySize = 1 << 20 // 1MiB

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに正規アイデンティティを格納するためのキー。
var identityContextKey = contextKey("identity")

// signedDataContextKey は検証済みリクエストのdataフィールド生JSONを格納するためのキー。
var signedDataContextKey = contextKey("signed_data")

// NonceConsumer はノンスの検証と消費に必要なインターフェース。
// nonce.Serviceの部分集合として定義する。
type NonceConsumer interface {
	Consume(ctx context.Context, identity string, declared uint64) error
}

// NewSignedBodyMiddleware は署名付きリクエストボディを検証するミドルウェアを返す。
//
// ボディは {data: {auth: {...}, ...}, signature} 形式で、署名はdataフィールドの
// 生JSONバイト列に対するsecp256k1 ECDSA署名として検証する。
// 署名検証に成功すると公開鍵から正規アイデンティティを導出し、
// 宣言されたノンスを検証・消費してから、アイデンティティとdataを
// リクエストコンテキストに注入する。
//
// 署名不正・ノンス不一致は401、ボディ不正は400を返す。
func NewSignedBodyMiddleware(nonces NonceConsumer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. ボディの読み取りとデコード
			raw, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBodySize))
			if err != nil {
				WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidBodyError("ボディを読み取れません"))
				return
			}

			var body model.SignedBody
			if err := json.Unmarshal(raw, &body); err != nil || len(body.Data) == 0 || body.Signature == "" {
				WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidBodyError("署名付きボディの形式が不正です"))
				return
			}

			var signedData model.SignedData
			if err := json.Unmarshal(body.Data, &signedData); err != nil || signedData.Auth.PublicKey == "" {
				WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidBodyError("authブロックが不正です"))
				return
			}

			// 2. 署名検証（dataフィールドの生バイト列に対して）
			if err := identity.VerifySignature(signedData.Auth.PublicKey, body.Data, body.Signature); err != nil {
				slog.Warn("署名検証に失敗しました",
					slog.String("public_key", signedData.Auth.PublicKey),
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidSignatureError())
				return
			}

			// 3. 公開鍵から正規アイデンティティを導出
			canonical, err := identity.FromPublicKeyHex(signedData.Auth.PublicKey)
			if err != nil {
				var apiErr *model.APIError
				if errors.As(err, &apiErr) {
					WriteErrorResponse(w, StatusForAPIError(apiErr), apiErr)
					return
				}
				WriteInternalServerError(w)
				return
			}

			// 4. ノンスの検証と消費
			if err := nonces.Consume(r.Context(), canonical, signedData.Auth.Nonce); err != nil {
				var apiErr *model.APIError
				if errors.As(err, &apiErr) {
					WriteErrorResponse(w, StatusForAPIError(apiErr), apiErr)
					return
				}
				slog.Error("ノンスの消費に失敗しました",
					slog.String("identity", canonical),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			// 5. 検証済みアイデンティティとdataをコンテキストに注入
			ctx := context.WithValue(r.Context(), identityContextKey, canonical)
			ctx = context.WithValue(ctx, signedDataContextKey, body.Data)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext はリクエストコンテキストから正規アイデンティティを取得する。
// 署名検証ミドルウェアを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(identityContextKey).(string)
	if !ok || id == "" {
		return "", fmt.Errorf("identity not found in context")
	}
	return id, nil
}

// SignedDataFromContext は検証済みリクエストのdataフィールド生JSONを取得する。
func SignedDataFromContext(ctx context.Context) (json.RawMessage, error) {
	data, ok := ctx.Value(signedDataContextKey).(json.RawMessage)
	if !ok || len(data) == 0 {
		return nil, fmt.Errorf("signed data not found in context")
	}
	return data, nil
}

// ContextWithIdentity はコンテキストにアイデンティティを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// ContextWithSignedData はコンテキストに検証済みdataを注入する。
// テスト用。
func ContextWithSignedData(ctx context.Context, data json.RawMessage) context.Context {
	return context.WithValue(ctx, signedDataContextKey, data)
}
