// Package item はインボックスフィードの永続化と取得を提供する。
package item

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/inboxd/internal/model"
	"github.com/hitoshi/inboxd/internal/repository"
)

// Service はアイデンティティ単位の追記専用フィードストア。
// アイテムは書き込み後、削除以外の変更を行わない。
type Service struct {
	kv repository.KVRepository
}

// NewService はServiceを生成する。
func NewService(kv repository.KVRepository) *Service {
	return &Service{kv: kv}
}

// Append はイベントをフィードに追記し、生成したIDを返す。
// IDは `{type}/{uuid}` 形式で種別プレフィックスによるフィルタを可能にする。
// ペイロードとメタデータは単一レコードとして書き込む。
func (s *Service) Append(ctx context.Context, identity string, eventType model.EventType, payload json.RawMessage, chainID string) (string, error) {
	id := fmt.Sprintf("%s/%s", eventType, uuid.NewString())

	metadata, err := json.Marshal(model.ItemMetadata{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		ChainID:   chainID,
	})
	if err != nil {
		return "", fmt.Errorf("メタデータのシリアライズに失敗しました: %w", err)
	}

	if err := s.kv.Put(ctx, repository.ItemKey(identity, id), string(payload), metadata); err != nil {
		return "", fmt.Errorf("アイテムの書き込みに失敗しました: %w", err)
	}

	return id, nil
}

// List はアイデンティティのフィードアイテムを返す。
// eventTypeが空でない場合は種別プレフィックスで絞り込む。
// chainIDが空でない場合は全件取得後にクライアント側でフィルタする
// （セカンダリインデックスは持たない）。
// プレフィックススキャンをカーソルが尽きるまで順次実行する。
func (s *Service) List(ctx context.Context, identity, eventType, chainID string) ([]model.InboxItem, error) {
	prefix := repository.ItemPrefix(identity, eventType)

	var ids []string
	cursor := ""
	for {
		page, err := s.kv.List(ctx, prefix, cursor, 0)
		if err != nil {
			return nil, fmt.Errorf("アイテム一覧の取得に失敗しました: %w", err)
		}

		for _, key := range page.Keys {
			if id := repository.ItemIDFromKey(identity, key); id != "" {
				ids = append(ids, id)
			}
		}

		if page.Complete {
			break
		}
		cursor = page.Cursor
	}

	items := make([]model.InboxItem, 0, len(ids))
	for _, id := range ids {
		entry, err := s.kv.Get(ctx, repository.ItemKey(identity, id))
		if err != nil {
			return nil, fmt.Errorf("アイテムの取得に失敗しました: %w", err)
		}
		if entry == nil {
			// 一覧取得と読み出しの間に削除された場合はスキップ
			continue
		}

		loaded := model.InboxItem{
			ID:   id,
			Data: json.RawMessage(entry.Value),
		}

		// メタデータが破損していてもアイテム自体は返す
		if entry.Metadata != nil {
			var meta model.ItemMetadata
			if err := json.Unmarshal(entry.Metadata, &meta); err == nil {
				loaded.Timestamp = meta.Timestamp
				loaded.ChainID = meta.ChainID
			}
		}

		if chainID != "" && loaded.ChainID != chainID {
			continue
		}

		items = append(items, loaded)
	}

	return items, nil
}

// Delete は指定IDのアイテムを削除する。存在しないIDは何もしない。
func (s *Service) Delete(ctx context.Context, identity string, ids []string) error {
	for _, id := range ids {
		if err := s.kv.Delete(ctx, repository.ItemKey(identity, id)); err != nil {
			return fmt.Errorf("アイテムの削除に失敗しました: %w", err)
		}
	}
	return nil
}
