package model

import "encoding/json"

// RequestAuth は署名付きリクエストのauthブロック。
// ノンスと署名者の公開鍵を含む。
type RequestAuth struct {
	Type              string `json:"type"`
	Nonce             uint64 `json:"nonce"`
	ChainID           string `json:"chainId"`
	ChainFeeDenom     string `json:"chainFeeDenom"`
	ChainBech32Prefix string `json:"chainBech32Prefix"`
	PublicKey         string `json:"publicKey"`
}

// SignedBody は状態変更エンドポイントのリクエストボディ。
// 署名はdataフィールドの生JSONバイト列に対して検証する。
type SignedBody struct {
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

// SignedData はdataフィールドからauthブロックだけを取り出すための型。
// 残りのフィールドは各ハンドラーが個別にデコードする。
type SignedData struct {
	Auth RequestAuth `json:"auth"`
}
