package model

import "encoding/json"

// ItemMetadata はインボックスアイテムのKVメタデータ。
// 書き込み時刻と発生元チェーンを保持する。
type ItemMetadata struct {
	Timestamp string `json:"timestamp"`
	ChainID   string `json:"chainId,omitempty"`
}

// InboxItem はインボックスに永続化された1件のイベントを表す。
// IDは `{type}/{uuid}` 形式で、プレフィックススキャンによる種別フィルタを可能にする。
// 書き込み後は削除以外の変更を行わない。
type InboxItem struct {
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp,omitempty"`
	ChainID   string          `json:"chainId,omitempty"`
	Data      json.RawMessage `json:"data"`
}

// Event はWebhook経由で受理されたイベントを表す。
// Dataは未解釈のペイロードとして保持し、フィードにはそのまま永続化する。
type Event struct {
	Identity string
	Type     EventType
	Data     json.RawMessage
	ChainID  string
}
