package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/inboxd/internal/identity"
	"github.com/hitoshi/inboxd/internal/middleware"
	"github.com/hitoshi/inboxd/internal/model"
)

// EmailVerifierInterface はメール検証のインターフェース。
type EmailVerifierInterface interface {
	// Verify は保留中の検証コードを照合し、アドレスを検証済みへ遷移させる。
	Verify(ctx context.Context, identity, code string) error
}

// VerifyHandler はメール内リンクからの検証ハンドラー。
type VerifyHandler struct {
	emails EmailVerifierInterface
}

// NewVerifyHandler はVerifyHandlerを生成する。
func NewVerifyHandler(emails EmailVerifierInterface) *VerifyHandler {
	return &VerifyHandler{emails: emails}
}

// VerifyEmail は検証コードを照合してメールアドレスを検証済みにする。
// GET /verify/{identifier}/{code}?email=xxx
//
// emailクエリパラメータは検証メール内リンクとの互換のため必須とする。
func (h *VerifyHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidBodyError("検証コードが指定されていません"))
		return
	}

	if r.URL.Query().Get("email") == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidBodyError("emailクエリパラメータが指定されていません"))
		return
	}

	resolved, err := identity.Resolve(chi.URLParam(r, "identifier"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.emails.Verify(r.Context(), resolved, code); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, successResponse{Success: true})
}
