package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// VerifySignature は署名付きリクエストのECDSA署名を検証する。
// pubKeyHexは圧縮secp256k1公開鍵、signatureHexは64バイトのコンパクト形式
// （r||s）をhex化したもの。署名対象はmessageのSHA-256ハッシュ。
// 検証に成功した場合のみnilを返す。
func VerifySignature(pubKeyHex string, message []byte, signatureHex string) error {
	pubKeyRaw, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return fmt.Errorf("公開鍵のhexデコードに失敗しました: %w", err)
	}

	pubKey, err := secp256k1.ParsePubKey(pubKeyRaw)
	if err != nil {
		return fmt.Errorf("公開鍵のパースに失敗しました: %w", err)
	}

	sigRaw, err := hex.DecodeString(signatureHex)
	if err != nil {
		return fmt.Errorf("署名のhexデコードに失敗しました: %w", err)
	}
	if len(sigRaw) != 64 {
		return fmt.Errorf("署名の長さが不正です: %dバイト", len(sigRaw))
	}

	var r, s secp256k1.ModNScalar
	if overflow := r.SetByteSlice(sigRaw[:32]); overflow {
		return fmt.Errorf("署名rがスカラー範囲外です")
	}
	if overflow := s.SetByteSlice(sigRaw[32:]); overflow {
		return fmt.Errorf("署名sがスカラー範囲外です")
	}

	hash := sha256.Sum256(message)
	if !ecdsa.NewSignature(&r, &s).Verify(hash[:], pubKey) {
		return fmt.Errorf("署名が一致しません")
	}

	return nil
}
