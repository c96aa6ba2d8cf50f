package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/inboxd/internal/middleware"
	"github.com/hitoshi/inboxd/internal/model"
)

// ItemDeleterInterface はインボックスアイテム削除のインターフェース。
type ItemDeleterInterface interface {
	// Delete は指定IDのアイテムを削除する。存在しないIDは何もしない。
	Delete(ctx context.Context, identity string, ids []string) error
}

// ClearHandler は署名付きアイテム削除のハンドラー。
type ClearHandler struct {
	items ItemDeleterInterface
}

// NewClearHandler はClearHandlerを生成する。
func NewClearHandler(items ItemDeleterInterface) *ClearHandler {
	return &ClearHandler{items: items}
}

// clearRequest はアイテム削除リクエストの署名済みボディ。
type clearRequest struct {
	IDs []string `json:"ids"`
}

// Clear は署名者のインボックスから指定IDのアイテムを削除する。
// POST /clear（署名＋ノンス検証ミドルウェアの内側）
func (h *ClearHandler) Clear(w http.ResponseWriter, r *http.Request) {
	signer, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidSignatureError())
		return
	}

	data, err := middleware.SignedDataFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidSignatureError())
		return
	}

	var req clearRequest
	if err := json.Unmarshal(data, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidBodyError("JSONの解析に失敗しました"))
		return
	}

	if len(req.IDs) == 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidBodyError("idsは空でない配列である必要があります"))
		return
	}
	for _, id := range req.IDs {
		if id == "" {
			middleware.WriteErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidBodyError("idsに空文字列を含めることはできません"))
			return
		}
	}

	if err := h.items.Delete(r.Context(), signer, req.IDs); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, successResponse{Success: true})
}
