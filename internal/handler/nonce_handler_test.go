package handler

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/inboxd/internal/identity"
)

// --- モック ---

type mockNonceSource struct {
	expectedFn func(ctx context.Context, identity string) (uint64, error)
}

func (m *mockNonceSource) Expected(ctx context.Context, identity string) (uint64, error) {
	return m.expectedFn(ctx, identity)
}

// --- テスト ---

func newNonceRouter(nonces NonceSourceInterface) *chi.Mux {
	r := chi.NewRouter()
	h := NewNonceHandler(nonces)
	r.Get("/nonce/{publicKey}", h.GetNonce)
	return r
}

// TestNonceHandler_GetNonce_Success は公開鍵から導出したアイデンティティのノンス返却を検証する。
func TestNonceHandler_GetNonce_Success(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey failed: %v", err)
	}
	pubKeyHex := hex.EncodeToString(priv.PubKey().SerializeCompressed())
	wantIdentity, err := identity.FromPublicKeyHex(pubKeyHex)
	if err != nil {
		t.Fatalf("FromPublicKeyHex failed: %v", err)
	}

	nonces := &mockNonceSource{expectedFn: func(ctx context.Context, id string) (uint64, error) {
		if id != wantIdentity {
			t.Errorf("identity = %q, want %q", id, wantIdentity)
		}
		return 42, nil
	}}
	router := newNonceRouter(nonces)

	req := httptest.NewRequest(http.MethodGet, "/nonce/"+pubKeyHex, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp nonceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Nonce != 42 {
		t.Errorf("nonce = %d, want 42", resp.Nonce)
	}
}

// TestNonceHandler_GetNonce_InvalidPublicKey は公開鍵以外の識別子が400になることを検証する。
func TestNonceHandler_GetNonce_InvalidPublicKey(t *testing.T) {
	nonces := &mockNonceSource{expectedFn: func(ctx context.Context, id string) (uint64, error) {
		t.Error("Expected should not be called")
		return 0, nil
	}}
	router := newNonceRouter(nonces)

	// 40桁hexアイデンティティは公開鍵としては受け付けない
	req := httptest.NewRequest(http.MethodGet, "/nonce/"+testIdentifier, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
