package identity

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil/bech32"

	"github.com/hitoshi/inboxd/internal/model"
)

// --- テスト ---

// TestResolve_CanonicalHex は40文字hexがそのまま（小文字化して）受理されることを検証する。
func TestResolve_CanonicalHex(t *testing.T) {
	input := "A1B2C3D4E5F6A1B2C3D4E5F6A1B2C3D4E5F6A1B2"

	got, err := Resolve(input)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != strings.ToLower(input) {
		t.Errorf("Resolve = %q, want %q", got, strings.ToLower(input))
	}
}

// TestResolve_CompressedPublicKey は圧縮公開鍵がハッシュ化され決定的に解決されることを検証する。
func TestResolve_CompressedPublicKey(t *testing.T) {
	raw := make([]byte, 33)
	raw[0] = 0x02
	for i := 1; i < len(raw); i++ {
		raw[i] = byte(i)
	}
	pubKeyHex := hex.EncodeToString(raw)

	first, err := Resolve(pubKeyHex)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(first) != 40 {
		t.Errorf("resolved identity length = %d, want 40", len(first))
	}

	second, err := Resolve(pubKeyHex)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if first != second {
		t.Errorf("Resolve is not deterministic: %q != %q", first, second)
	}

	// FromPublicKeyHexと同じ結果になる
	direct, err := FromPublicKeyHex(pubKeyHex)
	if err != nil {
		t.Fatalf("FromPublicKeyHex failed: %v", err)
	}
	if first != direct {
		t.Errorf("Resolve = %q, FromPublicKeyHex = %q", first, direct)
	}
}

// TestResolve_Bech32 はbech32アドレスのデータ部がhex化されることを検証する。
func TestResolve_Bech32(t *testing.T) {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = byte(i * 7)
	}
	converted, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		t.Fatalf("ConvertBits failed: %v", err)
	}
	address, err := bech32.Encode("juno", converted)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, err := Resolve(address)
	if err != nil {
		t.Fatalf("Resolve(%q) failed: %v", address, err)
	}
	if got != hex.EncodeToString(raw) {
		t.Errorf("Resolve = %q, want %q", got, hex.EncodeToString(raw))
	}
}

// TestResolve_Invalid は不正な識別子がvalidationエラーになることを検証する。
func TestResolve_Invalid(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"空文字", ""},
		{"空白のみ", "   "},
		{"中途半端なhex長", "a1b2c3"},
		{"hexでもbech32でもない", "not-an-address!"},
		{"不正なbech32チェックサム", "juno1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Resolve(tc.input)
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidIdentity {
				t.Errorf("Resolve(%q) error = %v, want %s", tc.input, err, model.ErrCodeInvalidIdentity)
			}
		})
	}
}

// TestFromPublicKeyHex_WrongLength は34バイト等の不正長がエラーになることを検証する。
func TestFromPublicKeyHex_WrongLength(t *testing.T) {
	raw := make([]byte, 34)
	_, err := FromPublicKeyHex(hex.EncodeToString(raw))
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidIdentity {
		t.Errorf("error = %v, want %s", err, model.ErrCodeInvalidIdentity)
	}
}
