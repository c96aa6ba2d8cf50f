// Package handler はHTTP APIのハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/inboxd/internal/channel"
	"github.com/hitoshi/inboxd/internal/identity"
	"github.com/hitoshi/inboxd/internal/middleware"
	"github.com/hitoshi/inboxd/internal/model"
)

// DispatcherInterface は受理イベントのファンアウトインターフェース。
type DispatcherInterface interface {
	// Dispatch はイベントをフィードへ永続化し、許可された各チャネルへ配信する。
	// 戻り値はフィードに書き込まれたアイテムID（フィード無効時は空文字列）。
	Dispatch(ctx context.Context, event *model.Event) (string, error)
}

// AddHandler はインデクサーWebhookからのイベント受理ハンドラー。
type AddHandler struct {
	dispatcher    DispatcherInterface
	webhookSecret string
}

// NewAddHandler はAddHandlerを生成する。
func NewAddHandler(dispatcher DispatcherInterface, webhookSecret string) *AddHandler {
	return &AddHandler{
		dispatcher:    dispatcher,
		webhookSecret: webhookSecret,
	}
}

// addRequest はイベント受理リクエストのボディ。
type addRequest struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	ChainID string          `json:"chainId,omitempty"`
}

// successResponse は成功レスポンス。
type successResponse struct {
	Success bool `json:"success"`
}

// AddItem はイベントを受理してインボックスへ配信する。
// POST /add/{identifier}
//
// x-api-key ヘッダーの共有シークレットで認証する。識別子はbech32アドレス、
// 40桁hexアイデンティティ、66桁hex圧縮公開鍵のいずれかを受け付ける。
func (h *AddHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("x-api-key") != h.webhookSecret {
		apiErr := model.NewInvalidAPIKeyError()
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
		return
	}

	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidBodyError("JSONの解析に失敗しました"))
		return
	}

	if req.Type == "" || len(req.Data) == 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidBodyError("typeとdataは必須です"))
		return
	}

	// 未知のイベント種別は配信テーブルを持たないため受理しない
	if !channel.IsKnownType(model.EventType(req.Type)) {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewUnknownEventTypeError(req.Type))
		return
	}

	resolved, err := identity.Resolve(chi.URLParam(r, "identifier"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	event := &model.Event{
		Identity: resolved,
		Type:     model.EventType(req.Type),
		Data:     req.Data,
		ChainID:  req.ChainID,
	}

	if _, err := h.dispatcher.Dispatch(r.Context(), event); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, successResponse{Success: true})
}

// writeJSONResponse はJSONレスポンスを書き込む。
func writeJSONResponse(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, middleware.StatusForAPIError(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}
