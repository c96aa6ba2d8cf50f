// Package identity はウォレット識別子の正規化とプロファイル展開を提供する。
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/ripemd160"

	"github.com/hitoshi/inboxd/internal/model"
)

const (
	// canonicalHexLen は正規アイデンティティ（20バイトハッシュ）のhex表現長。
	canonicalHexLen = 40
	// compressedPubKeyHexLen は圧縮secp256k1公開鍵（33バイト）のhex表現長。
	compressedPubKeyHexLen = 66
)

// Resolve はウォレット識別子を正規アイデンティティ（hexハッシュ）に解決する。
// 受け付ける形式は以下の3種:
//   - 40文字hex: すでに正規化済みのハッシュ
//   - 66文字hex: 圧縮secp256k1公開鍵（RIPEMD160(SHA256(pubkey))に変換）
//   - bech32アドレス: データ部をhex化
//
// いずれにも該当しない場合はvalidationエラーを返す。
func Resolve(identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", model.NewInvalidIdentityError("識別子が空です")
	}

	if isHex(identifier) {
		switch len(identifier) {
		case canonicalHexLen:
			return strings.ToLower(identifier), nil
		case compressedPubKeyHexLen:
			return FromPublicKeyHex(identifier)
		}
	}

	hash, err := fromBech32(identifier)
	if err != nil {
		return "", model.NewInvalidIdentityError(err.Error())
	}
	return hash, nil
}

// FromPublicKeyHex は圧縮secp256k1公開鍵から正規アイデンティティを導出する。
// Cosmosのアドレス導出と同じ RIPEMD160(SHA256(pubkey)) を使用する。
func FromPublicKeyHex(pubKeyHex string) (string, error) {
	raw, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return "", model.NewInvalidIdentityError(fmt.Sprintf("公開鍵のhexデコードに失敗しました: %v", err))
	}
	if len(raw) != 33 {
		return "", model.NewInvalidIdentityError(fmt.Sprintf("圧縮公開鍵の長さが不正です: %dバイト", len(raw)))
	}

	sha := sha256.Sum256(raw)
	ripemd := ripemd160.New()
	ripemd.Write(sha[:])
	return hex.EncodeToString(ripemd.Sum(nil)), nil
}

// fromBech32 はbech32アドレスのデータ部をhex化して返す。
func fromBech32(address string) (string, error) {
	_, data, err := bech32.Decode(address)
	if err != nil {
		return "", fmt.Errorf("bech32デコードに失敗しました: %w", err)
	}

	converted, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", fmt.Errorf("bech32データ部の変換に失敗しました: %w", err)
	}

	return hex.EncodeToString(converted), nil
}

// isHex は文字列がhex文字のみで構成されているかを返す。
func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return len(s) > 0
}
