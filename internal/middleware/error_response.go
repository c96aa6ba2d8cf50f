package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/inboxd/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// ウォレットフロントエンドが表示するのはerrorフィールドのみ。
type ErrorResponseBody struct {
	Error string `json:"error"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Error: apiErr.Message,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     model.ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// StatusForAPIError はエラーカテゴリからHTTPステータスコードを解決する。
// auth → 401、validation/email → 400、それ以外 → 500。
func StatusForAPIError(apiErr *model.APIError) int {
	switch apiErr.Category {
	case "auth":
		return http.StatusUnauthorized
	case "validation", "email":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
