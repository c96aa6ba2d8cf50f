// Package nonce は署名付きリクエストのリプレイ防止カウンターを管理する。
package nonce

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hitoshi/inboxd/internal/model"
	"github.com/hitoshi/inboxd/internal/repository"
)

// Service はアイデンティティごとの単調増加ノンスを管理する。
// 検証とカウンター更新はストアに対してアトミックではないため、
// 同一アイデンティティからの同時リクエストが同じノンスで競合しうる
// （既知の弱一貫性、設計ドキュメント参照）。
type Service struct {
	kv repository.KVRepository
}

// NewService はServiceを生成する。
func NewService(kv repository.KVRepository) *Service {
	return &Service{kv: kv}
}

// Expected は次に受理されるノンス値を返す。レコードがない場合は0。
func (s *Service) Expected(ctx context.Context, identity string) (uint64, error) {
	entry, err := s.kv.Get(ctx, repository.NonceKey(identity))
	if err != nil {
		return 0, fmt.Errorf("ノンスの取得に失敗しました: %w", err)
	}
	if entry == nil {
		return 0, nil
	}

	n, err := strconv.ParseUint(entry.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("ノンス値のパースに失敗しました: %w", err)
	}

	return n, nil
}

// Consume は宣言されたノンスを検証して消費する。
// 宣言値が期待値と一致した場合のみカウンターを進める。
// 不一致の場合はリプレイまたは古いリクエストとしてAPIErrorを返す。
// ノンスは決して再利用されず、巻き戻されることもない。
func (s *Service) Consume(ctx context.Context, identity string, declared uint64) error {
	expected, err := s.Expected(ctx, identity)
	if err != nil {
		return err
	}

	if declared != expected {
		return model.NewNonceMismatchError(expected, declared)
	}

	next := strconv.FormatUint(expected+1, 10)
	if err := s.kv.Put(ctx, repository.NonceKey(identity), next, nil); err != nil {
		return fmt.Errorf("ノンスの更新に失敗しました: %w", err)
	}

	return nil
}
