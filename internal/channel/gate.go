// Package channel は配信チャネルの許可判定を提供する。
// 種別ごとの静的な許可テーブルと、アイデンティティごとの動的ビットマスクを
// 組み合わせて、(identity, type, channel) の配信可否を決定する。
package channel

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hitoshi/inboxd/internal/model"
	"github.com/hitoshi/inboxd/internal/repository"
)

// allowedChannels はイベント種別ごとに提供されるチャネルの静的テーブル。
// ここに含まれないチャネルは、保存されたビットマスクに関係なく有効化できない。
// 新しいイベント種別を追加する場合はここにエントリを追加する。
var allowedChannels = map[model.EventType]model.Channel{
	model.EventTypeJoinedDao:        model.ChannelFeed | model.ChannelEmail | model.ChannelPush,
	model.EventTypeProposalCreated:  model.ChannelFeed | model.ChannelEmail | model.ChannelPush,
	model.EventTypeProposalExecuted: model.ChannelFeed | model.ChannelEmail | model.ChannelPush,
	model.EventTypeProposalClosed:   model.ChannelFeed | model.ChannelEmail | model.ChannelPush,
}

// AllowedChannels は種別に対して提供されるチャネルの集合を返す。
// 未知の種別は空集合を返す。
func AllowedChannels(eventType model.EventType) model.Channel {
	return allowedChannels[eventType]
}

// KnownTypes は許可テーブルに登録済みの全イベント種別を返す。
func KnownTypes() []model.EventType {
	types := make([]model.EventType, 0, len(allowedChannels))
	for t := range allowedChannels {
		types = append(types, t)
	}
	return types
}

// IsKnownType は種別が許可テーブルに登録されているかを返す。
// 未知の種別のイベントはIngest時に拒否される。
func IsKnownType(eventType model.EventType) bool {
	_, ok := allowedChannels[eventType]
	return ok
}

// Gate はアイデンティティごとのチャネル設定を管理し、配信可否を判定する。
type Gate struct {
	kv repository.KVRepository
}

// NewGate はGateを生成する。
func NewGate(kv repository.KVRepository) *Gate {
	return &Gate{kv: kv}
}

// IsEnabled は (identity, type, channel) の配信可否を判定する。
// 種別に対して提供されていないチャネルは常にfalse。
// 設定レコードが存在しない場合はチャネル依存のデフォルトを適用する
// （フィードは有効、メールとプッシュは無効）。
func (g *Gate) IsEnabled(ctx context.Context, identity string, eventType model.EventType, ch model.Channel) (bool, error) {
	if !AllowedChannels(eventType).Has(ch) {
		return false, nil
	}

	mask, found, err := g.Config(ctx, identity, eventType)
	if err != nil {
		return false, err
	}
	if !found {
		return model.DefaultEnabledChannels.Has(ch), nil
	}

	return mask.Has(ch), nil
}

// Config は保存された種別設定のビットマスクを返す。
// レコードが存在しない、または値が数値として解釈できない場合はfound=falseを返す。
func (g *Gate) Config(ctx context.Context, identity string, eventType model.EventType) (model.Channel, bool, error) {
	entry, err := g.kv.Get(ctx, repository.TypeConfigKey(identity, string(eventType)))
	if err != nil {
		return 0, false, fmt.Errorf("種別設定の取得に失敗しました: %w", err)
	}
	if entry == nil {
		return 0, false, nil
	}

	mask, err := strconv.Atoi(entry.Value)
	if err != nil {
		// 破損した設定値はレコードなしと同じ扱いにする
		return 0, false, nil
	}

	return model.Channel(mask), true, nil
}

// SetConfig は種別設定のビットマスクを保存する。
func (g *Gate) SetConfig(ctx context.Context, identity string, eventType string, mask int) error {
	err := g.kv.Put(ctx, repository.TypeConfigKey(identity, eventType), strconv.Itoa(mask), nil)
	if err != nil {
		return fmt.Errorf("種別設定の保存に失敗しました: %w", err)
	}
	return nil
}

// ConfigForIdentity はアイデンティティの全種別設定を返す。
// 既知の全種別をキーに含み、未設定の種別はnilを値とする。
// プレフィックススキャンをカーソルが尽きるまで順次実行する。
func (g *Gate) ConfigForIdentity(ctx context.Context, identity string) (map[string]*int, error) {
	result := make(map[string]*int, len(allowedChannels))
	for t := range allowedChannels {
		result[string(t)] = nil
	}

	prefix := repository.TypeConfigPrefix(identity)
	cursor := ""
	for {
		page, err := g.kv.List(ctx, prefix, cursor, 0)
		if err != nil {
			return nil, fmt.Errorf("種別設定の一覧取得に失敗しました: %w", err)
		}

		for _, key := range page.Keys {
			eventType := repository.TypeFromConfigKey(identity, key)
			if eventType == "" {
				continue
			}
			mask, found, err := g.Config(ctx, identity, model.EventType(eventType))
			if err != nil {
				return nil, err
			}
			if found {
				m := int(mask)
				result[eventType] = &m
			}
		}

		if page.Complete {
			break
		}
		cursor = page.Cursor
	}

	return result, nil
}
