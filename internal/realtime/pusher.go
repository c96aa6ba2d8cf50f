// Package realtime はPusherプロトコル互換のリアルタイムイベント配信を提供する。
package realtime

import (
	"fmt"
	"net/http"
	"time"

	pusher "github.com/pusher/pusher-http-go/v5"
)

// Emitter はアイデンティティ単位のチャネルへのイベント発行インターフェース。
// 発行はベストエフォートで、失敗してもリクエスト処理を妨げない。
type Emitter interface {
	// Emit は指定チャネルにイベントを発行する。
	Emit(channel, event string, data any) error
}

// PusherEmitter はPusher互換HTTP APIを使用するEmitterの実装。
// 起動時に1回だけ生成し、プロセス全体で共有する。
type PusherEmitter struct {
	client pusher.Client
}

// Config はPusherEmitterの生成に必要な設定。
type Config struct {
	Host   string
	AppID  string
	Key    string
	Secret string
}

// NewPusherEmitter はPusherEmitterを生成する。
func NewPusherEmitter(cfg Config) *PusherEmitter {
	return &PusherEmitter{
		client: pusher.Client{
			AppID:      cfg.AppID,
			Key:        cfg.Key,
			Secret:     cfg.Secret,
			Host:       cfg.Host,
			Secure:     true,
			HTTPClient: &http.Client{Timeout: 5 * time.Second},
		},
	}
}

// Emit は指定チャネルにイベントを発行する。
func (e *PusherEmitter) Emit(channel, event string, data any) error {
	if err := e.client.Trigger(channel, event, data); err != nil {
		return fmt.Errorf("リアルタイムイベントの発行に失敗しました: %w", err)
	}
	return nil
}

// NopEmitter は設定が未指定の場合に使用する何もしないEmitter。
type NopEmitter struct{}

// Emit は常に成功する。
func (NopEmitter) Emit(channel, event string, data any) error {
	return nil
}

// EventItemAdded はインボックスへのアイテム追加を通知するイベント名。
const EventItemAdded = "item_added"

// InboxChannel はアイデンティティのリアルタイムチャネル名を返す。
func InboxChannel(identity string) string {
	return "inbox_" + identity
}
