// Package push はWebプッシュ購読の管理と通知送信を提供する。
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hitoshi/inboxd/internal/model"
	"github.com/hitoshi/inboxd/internal/repository"
)

// Registry はアイデンティティごとのプッシュ購読集合を管理する。
// 購読はp256dh公開鍵をキーとするため、同一デバイスの再購読は冪等になる。
type Registry struct {
	kv     repository.KVRepository
	logger *slog.Logger
}

// NewRegistry はRegistryを生成する。
func NewRegistry(kv repository.KVRepository, logger *slog.Logger) *Registry {
	return &Registry{kv: kv, logger: logger}
}

// Subscribe は購読をUPSERTする。同じp256dhキーでの再購読は1件にまとまる。
func (r *Registry) Subscribe(ctx context.Context, identity string, sub *model.PushSubscription) error {
	if !sub.Valid() {
		return model.NewInvalidBodyError("購読情報が不完全です")
	}

	value, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("購読情報のシリアライズに失敗しました: %w", err)
	}

	if err := r.kv.Put(ctx, repository.PushKey(identity, sub.Keys.P256dh), string(value), nil); err != nil {
		return fmt.Errorf("購読の保存に失敗しました: %w", err)
	}

	return nil
}

// Unsubscribe は指定キーの購読を削除する。存在しないキーは何もしない。
func (r *Registry) Unsubscribe(ctx context.Context, identity, p256dh string) error {
	if err := r.kv.Delete(ctx, repository.PushKey(identity, p256dh)); err != nil {
		return fmt.Errorf("購読の削除に失敗しました: %w", err)
	}
	return nil
}

// UnsubscribeAll はアイデンティティの全購読を削除する。
func (r *Registry) UnsubscribeAll(ctx context.Context, identity string) error {
	keys, err := r.listKeys(ctx, identity)
	if err != nil {
		return err
	}

	for _, key := range keys {
		if err := r.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("購読の削除に失敗しました: %w", err)
		}
	}

	return nil
}

// IsSubscribed は指定キーの購読が存在するかを返す。
func (r *Registry) IsSubscribed(ctx context.Context, identity, p256dh string) (bool, error) {
	entry, err := r.kv.Get(ctx, repository.PushKey(identity, p256dh))
	if err != nil {
		return false, fmt.Errorf("購読の取得に失敗しました: %w", err)
	}
	return entry != nil, nil
}

// Count は登録済み購読数を返す。
func (r *Registry) Count(ctx context.Context, identity string) (int, error) {
	keys, err := r.listKeys(ctx, identity)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// List はアイデンティティの全購読を返す。
// 永続化された不正レコードはエラーにせず警告ログを出してスキップする。
func (r *Registry) List(ctx context.Context, identity string) ([]model.PushSubscription, error) {
	keys, err := r.listKeys(ctx, identity)
	if err != nil {
		return nil, err
	}

	subs := make([]model.PushSubscription, 0, len(keys))
	for _, key := range keys {
		entry, err := r.kv.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("購読の取得に失敗しました: %w", err)
		}
		if entry == nil {
			continue
		}

		var sub model.PushSubscription
		if err := json.Unmarshal([]byte(entry.Value), &sub); err != nil || !sub.Valid() {
			r.logger.Warn("不正な購読レコードをスキップします",
				slog.String("key", key),
			)
			continue
		}

		subs = append(subs, sub)
	}

	return subs, nil
}

// listKeys は購読キーの一覧をカーソルが尽きるまで取得する。
func (r *Registry) listKeys(ctx context.Context, identity string) ([]string, error) {
	var keys []string
	prefix := repository.PushPrefix(identity)
	cursor := ""
	for {
		page, err := r.kv.List(ctx, prefix, cursor, 0)
		if err != nil {
			return nil, fmt.Errorf("購読一覧の取得に失敗しました: %w", err)
		}

		keys = append(keys, page.Keys...)

		if page.Complete {
			break
		}
		cursor = page.Cursor
	}

	return keys, nil
}
