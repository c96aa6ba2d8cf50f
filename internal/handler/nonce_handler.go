package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/inboxd/internal/identity"
)

// NonceSourceInterface は期待ノンスの参照インターフェース。
type NonceSourceInterface interface {
	// Expected はアイデンティティの次に期待されるノンスを返す。未登録は0。
	Expected(ctx context.Context, identity string) (uint64, error)
}

// NonceHandler はノンス参照のハンドラー。
type NonceHandler struct {
	nonces NonceSourceInterface
}

// NewNonceHandler はNonceHandlerを生成する。
func NewNonceHandler(nonces NonceSourceInterface) *NonceHandler {
	return &NonceHandler{nonces: nonces}
}

// nonceResponse はノンス参照のレスポンス。
type nonceResponse struct {
	Nonce uint64 `json:"nonce"`
}

// GetNonce は公開鍵に対応するアイデンティティの期待ノンスを返す。
// GET /nonce/{publicKey}
func (h *NonceHandler) GetNonce(w http.ResponseWriter, r *http.Request) {
	resolved, err := identity.FromPublicKeyHex(chi.URLParam(r, "publicKey"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	nonce, err := h.nonces.Expected(r.Context(), resolved)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, nonceResponse{Nonce: nonce})
}
