package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/inboxd/internal/channel"
	"github.com/hitoshi/inboxd/internal/middleware"
	"github.com/hitoshi/inboxd/internal/model"
)

// EmailServiceInterface はメール設定・検証状態機械のインターフェース。
type EmailServiceInterface interface {
	// SetEmail はアドレスを保留状態で登録し、検証メールを送信する。
	SetEmail(ctx context.Context, identity, address string) error
	// Clear は登録済みアドレスを削除する。
	Clear(ctx context.Context, identity string) error
	// Verify は検証コードを照合してアドレスを検証済みへ遷移させる。
	Verify(ctx context.Context, identity, code string) error
	// Record は登録済みアドレスとそのメタデータを返す。未登録は("", nil, nil)。
	Record(ctx context.Context, identity string) (string, *model.EmailMetadata, error)
	// Resend は保留中のアドレスに対して検証メールを再送する。
	Resend(ctx context.Context, identity string) error
}

// GateInterface は種別ごとの通知設定のインターフェース。
type GateInterface interface {
	// SetConfig は種別のチャネルマスクを保存する。
	SetConfig(ctx context.Context, identity string, eventType string, mask int) error
	// ConfigForIdentity は既知の全種別の設定を返す。未設定の種別はnil。
	ConfigForIdentity(ctx context.Context, identity string) (map[string]*int, error)
}

// PushRegistryInterface はプッシュ購読管理のインターフェース。
type PushRegistryInterface interface {
	Subscribe(ctx context.Context, identity string, sub *model.PushSubscription) error
	Unsubscribe(ctx context.Context, identity, p256dh string) error
	UnsubscribeAll(ctx context.Context, identity string) error
	IsSubscribed(ctx context.Context, identity, p256dh string) (bool, error)
	Count(ctx context.Context, identity string) (int, error)
}

// プッシュ購読操作の種別
const (
	pushActionSubscribe      = "subscribe"
	pushActionCheck          = "check"
	pushActionUnsubscribe    = "unsubscribe"
	pushActionUnsubscribeAll = "unsubscribe_all"
)

// ConfigHandler は署名付き通知設定のハンドラー。
type ConfigHandler struct {
	emails EmailServiceInterface
	gate   GateInterface
	pushes PushRegistryInterface
}

// NewConfigHandler はConfigHandlerを生成する。
func NewConfigHandler(emails EmailServiceInterface, gate GateInterface, pushes PushRegistryInterface) *ConfigHandler {
	return &ConfigHandler{
		emails: emails,
		gate:   gate,
		pushes: pushes,
	}
}

// configPushRequest はプッシュ購読操作のリクエスト。
type configPushRequest struct {
	Type         string                  `json:"type"`
	Subscription *model.PushSubscription `json:"subscription,omitempty"`
	P256dh       string                  `json:"p256dh,omitempty"`
}

// configRequest は通知設定リクエストの署名済みボディ。
// Emailはnull（削除）と未指定（変更なし）を区別するため生のJSONとして保持する。
type configRequest struct {
	Email  json.RawMessage    `json:"email,omitempty"`
	Types  map[string]int     `json:"types,omitempty"`
	Verify string             `json:"verify,omitempty"`
	Resend bool               `json:"resend,omitempty"`
	Push   *configPushRequest `json:"push,omitempty"`
}

// configResponse は通知設定の完全なレスポンス。
type configResponse struct {
	Email              *string          `json:"email"`
	Verified           bool             `json:"verified"`
	Types              map[string]*int  `json:"types"`
	PushSubscriptions  int              `json:"pushSubscriptions"`
	PushSubscribed     *bool            `json:"pushSubscribed,omitempty"`
	TypeAllowedMethods map[string][]int `json:"typeAllowedMethods"`
}

// UpdateConfig は署名者の通知設定を更新し、設定全体を返す。
// POST /config（署名＋ノンス検証ミドルウェアの内側）
//
// リクエストの各フィールドは独立して処理される: メール更新、種別設定の保存、
// 検証コードの照合、検証メールの再送、プッシュ購読操作。
func (h *ConfigHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
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

	var req configRequest
	if err := json.Unmarshal(data, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidBodyError("JSONの解析に失敗しました"))
		return
	}

	// メール更新: 文字列なら登録、nullまたは空文字列なら削除
	emailSet := false
	if len(req.Email) > 0 {
		addr, ok := decodeEmailField(req.Email)
		if !ok {
			middleware.WriteErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidBodyError("emailは文字列またはnullである必要があります"))
			return
		}
		if addr != "" {
			if err := h.emails.SetEmail(r.Context(), signer, addr); err != nil {
				handleServiceError(w, err)
				return
			}
			emailSet = true
		} else {
			if err := h.emails.Clear(r.Context(), signer); err != nil {
				handleServiceError(w, err)
				return
			}
		}
	}

	// 種別ごとの通知設定を保存
	for eventType, mask := range req.Types {
		if err := h.gate.SetConfig(r.Context(), signer, eventType, mask); err != nil {
			handleServiceError(w, err)
			return
		}
	}

	// 検証コードの照合
	if req.Verify != "" {
		if err := h.emails.Verify(r.Context(), signer, req.Verify); err != nil {
			handleServiceError(w, err)
			return
		}
	}

	// プッシュ購読操作
	pushSubscriptions, err := h.pushes.Count(r.Context(), signer)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var pushSubscribed *bool
	if req.Push != nil {
		subscribed, count, err := h.applyPushAction(r.Context(), signer, req.Push, pushSubscriptions)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		pushSubscribed = &subscribed
		pushSubscriptions = count
	}

	// 現在のメール登録状態を取得
	addr, meta, err := h.emails.Record(r.Context(), signer)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	verified := meta != nil && meta.Verified()

	// 検証メールの再送。このリクエストで登録した場合はSetEmailが送信済み。
	if req.Resend && !emailSet && addr != "" && !verified {
		if err := h.emails.Resend(r.Context(), signer); err != nil {
			handleServiceError(w, err)
			return
		}
	}

	types, err := h.gate.ConfigForIdentity(r.Context(), signer)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := configResponse{
		Verified:           verified,
		Types:              types,
		PushSubscriptions:  pushSubscriptions,
		PushSubscribed:     pushSubscribed,
		TypeAllowedMethods: typeAllowedMethods(),
	}
	if addr != "" {
		resp.Email = &addr
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

// applyPushAction はプッシュ購読操作を適用し、操作後の購読有無と購読数を返す。
func (h *ConfigHandler) applyPushAction(ctx context.Context, identity string, push *configPushRequest, count int) (bool, int, error) {
	switch push.Type {
	case pushActionSubscribe:
		if push.Subscription == nil {
			return false, count, model.NewInvalidBodyError("subscriptionは必須です")
		}
		if err := h.pushes.Subscribe(ctx, identity, push.Subscription); err != nil {
			return false, count, err
		}
		return true, count + 1, nil

	case pushActionCheck:
		subscribed, err := h.pushes.IsSubscribed(ctx, identity, push.P256dh)
		if err != nil {
			return false, count, err
		}
		return subscribed, count, nil

	case pushActionUnsubscribe:
		if err := h.pushes.Unsubscribe(ctx, identity, push.P256dh); err != nil {
			return false, count, err
		}
		return false, count - 1, nil

	case pushActionUnsubscribeAll:
		if err := h.pushes.UnsubscribeAll(ctx, identity); err != nil {
			return false, count, err
		}
		return false, 0, nil

	default:
		return false, count, model.NewInvalidBodyError("不明なプッシュ操作種別です")
	}
}

// decodeEmailField はemailフィールドを解釈する。
// 文字列はそのまま、nullは空文字列として返す。それ以外の型はfalse。
func decodeEmailField(raw json.RawMessage) (string, bool) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "", true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// typeAllowedMethods は既知の全イベント種別の許可チャネル一覧を返す。
func typeAllowedMethods() map[string][]int {
	methods := make(map[string][]int)
	for _, eventType := range channel.KnownTypes() {
		allowed := channel.AllowedChannels(eventType)
		var bits []int
		for _, ch := range []model.Channel{model.ChannelFeed, model.ChannelEmail, model.ChannelPush} {
			if allowed.Has(ch) {
				bits = append(bits, int(ch))
			}
		}
		methods[string(eventType)] = bits
	}
	return methods
}
