package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/inboxd/internal/identity"
	"github.com/hitoshi/inboxd/internal/model"
)

// ItemListerInterface はインボックスアイテム一覧取得のインターフェース。
type ItemListerInterface interface {
	// List はアイデンティティのアイテムをキー昇順で返す。
	// eventTypeとchainIDは空文字列のとき絞り込みなし。
	List(ctx context.Context, identity, eventType, chainID string) ([]model.InboxItem, error)
}

// LoadHandler はインボックス読み出しのハンドラー。
type LoadHandler struct {
	items ItemListerInterface
}

// NewLoadHandler はLoadHandlerを生成する。
func NewLoadHandler(items ItemListerInterface) *LoadHandler {
	return &LoadHandler{items: items}
}

// loadResponse はインボックス読み出しのレスポンス。
type loadResponse struct {
	Items []model.InboxItem `json:"items"`
}

// Load はアイデンティティのインボックスアイテム一覧を返す。
// GET /load/{identifier}?type=xxx&chainId=xxx
func (h *LoadHandler) Load(w http.ResponseWriter, r *http.Request) {
	resolved, err := identity.Resolve(chi.URLParam(r, "identifier"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	eventType := r.URL.Query().Get("type")
	chainID := r.URL.Query().Get("chainId")

	items, err := h.items.List(r.Context(), resolved, eventType, chainID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// アイテムがない場合もnullではなく空配列を返す
	if items == nil {
		items = []model.InboxItem{}
	}

	writeJSONResponse(w, http.StatusOK, loadResponse{Items: items})
}
