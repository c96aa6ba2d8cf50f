package channel

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/hitoshi/inboxd/internal/model"
	"github.com/hitoshi/inboxd/internal/repository"
)

// --- モック ---

// memKV はテスト用のインメモリKVRepository実装。
// ページサイズを小さくしてカーソルループも検証できるようにする。
type memKV struct {
	mu      sync.Mutex
	entries map[string]repository.KVEntry
	getErr  error
}

func newMemKV() *memKV {
	return &memKV{entries: make(map[string]repository.KVEntry)}
}

func (m *memKV) Get(ctx context.Context, key string) (*repository.KVEntry, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	copied := entry
	return &copied, nil
}

func (m *memKV) Put(ctx context.Context, key, value string, metadata json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = repository.KVEntry{Key: key, Value: value, Metadata: metadata}
	return nil
}

func (m *memKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *memKV) List(ctx context.Context, prefix, cursor string, limit int) (*repository.KVPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 2
	}

	var keys []string
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) && key > cursor {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	if len(keys) > limit {
		page := keys[:limit]
		return &repository.KVPage{Keys: page, Cursor: page[len(page)-1], Complete: false}, nil
	}
	return &repository.KVPage{Keys: keys, Cursor: "", Complete: true}, nil
}

// --- テスト ---

const testIdentity = "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2"

// TestIsKnownType は許可テーブルの登録有無の判定を検証する。
func TestIsKnownType(t *testing.T) {
	for _, eventType := range []model.EventType{
		model.EventTypeJoinedDao,
		model.EventTypeProposalCreated,
		model.EventTypeProposalExecuted,
		model.EventTypeProposalClosed,
	} {
		if !IsKnownType(eventType) {
			t.Errorf("IsKnownType(%q) = false, want true", eventType)
		}
	}

	if IsKnownType("unknown_type") {
		t.Error("IsKnownType(unknown_type) = true, want false")
	}
}

// TestGate_IsEnabled_Defaults は設定レコードがない場合のチャネル依存デフォルトを検証する。
// フィードはデフォルト有効、メールとプッシュはデフォルト無効。
func TestGate_IsEnabled_Defaults(t *testing.T) {
	gate := NewGate(newMemKV())
	ctx := context.Background()

	tests := []struct {
		name    string
		channel model.Channel
		want    bool
	}{
		{"フィードはデフォルト有効", model.ChannelFeed, true},
		{"メールはデフォルト無効", model.ChannelEmail, false},
		{"プッシュはデフォルト無効", model.ChannelPush, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gate.IsEnabled(ctx, testIdentity, model.EventTypeJoinedDao, tt.channel)
			if err != nil {
				t.Fatalf("IsEnabled failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsEnabled = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGate_IsEnabled_StoredMask は保存されたビットマスクが優先されることを検証する。
func TestGate_IsEnabled_StoredMask(t *testing.T) {
	kv := newMemKV()
	gate := NewGate(kv)
	ctx := context.Background()

	// メールのみ有効（フィード無効）
	if err := gate.SetConfig(ctx, testIdentity, string(model.EventTypeJoinedDao), int(model.ChannelEmail)); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}

	feed, err := gate.IsEnabled(ctx, testIdentity, model.EventTypeJoinedDao, model.ChannelFeed)
	if err != nil {
		t.Fatalf("IsEnabled failed: %v", err)
	}
	if feed {
		t.Error("feed enabled = true, want false (mask overrides default)")
	}

	email, err := gate.IsEnabled(ctx, testIdentity, model.EventTypeJoinedDao, model.ChannelEmail)
	if err != nil {
		t.Fatalf("IsEnabled failed: %v", err)
	}
	if !email {
		t.Error("email enabled = false, want true")
	}
}

// TestGate_IsEnabled_UnknownType は未知の種別が常に無効であることを検証する。
func TestGate_IsEnabled_UnknownType(t *testing.T) {
	gate := NewGate(newMemKV())

	got, err := gate.IsEnabled(context.Background(), testIdentity, "unknown_type", model.ChannelFeed)
	if err != nil {
		t.Fatalf("IsEnabled failed: %v", err)
	}
	if got {
		t.Error("IsEnabled(unknown type) = true, want false")
	}
}

// TestGate_Config_CorruptValue は数値として解釈できない設定値がレコードなし扱いになることを検証する。
func TestGate_Config_CorruptValue(t *testing.T) {
	kv := newMemKV()
	gate := NewGate(kv)
	ctx := context.Background()

	key := repository.TypeConfigKey(testIdentity, string(model.EventTypeJoinedDao))
	if err := kv.Put(ctx, key, "not-a-number", nil); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	_, found, err := gate.Config(ctx, testIdentity, model.EventTypeJoinedDao)
	if err != nil {
		t.Fatalf("Config failed: %v", err)
	}
	if found {
		t.Error("found = true, want false for corrupt value")
	}

	// 破損レコードでもデフォルトに回帰する
	feed, err := gate.IsEnabled(ctx, testIdentity, model.EventTypeJoinedDao, model.ChannelFeed)
	if err != nil {
		t.Fatalf("IsEnabled failed: %v", err)
	}
	if !feed {
		t.Error("feed enabled = false, want true (default after corrupt record)")
	}
}

// TestGate_IsEnabled_StorageError はストレージエラーが伝播することを検証する。
func TestGate_IsEnabled_StorageError(t *testing.T) {
	kv := newMemKV()
	kv.getErr = errors.New("connection refused")
	gate := NewGate(kv)

	_, err := gate.IsEnabled(context.Background(), testIdentity, model.EventTypeJoinedDao, model.ChannelFeed)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// TestGate_ConfigForIdentity は全種別の設定一覧を検証する。
// 設定済みの種別はマスク値、未設定の種別はnilになる。
// 種別数がページサイズを超えるためカーソルループも通過する。
func TestGate_ConfigForIdentity(t *testing.T) {
	gate := NewGate(newMemKV())
	ctx := context.Background()

	if err := gate.SetConfig(ctx, testIdentity, string(model.EventTypeJoinedDao), 3); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	if err := gate.SetConfig(ctx, testIdentity, string(model.EventTypeProposalCreated), 0); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	if err := gate.SetConfig(ctx, testIdentity, string(model.EventTypeProposalClosed), 7); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}

	configs, err := gate.ConfigForIdentity(ctx, testIdentity)
	if err != nil {
		t.Fatalf("ConfigForIdentity failed: %v", err)
	}

	if len(configs) != len(KnownTypes()) {
		t.Fatalf("len(configs) = %d, want %d", len(configs), len(KnownTypes()))
	}

	if got := configs[string(model.EventTypeJoinedDao)]; got == nil || *got != 3 {
		t.Errorf("joined_dao config = %v, want 3", got)
	}
	if got := configs[string(model.EventTypeProposalCreated)]; got == nil || *got != 0 {
		t.Errorf("proposal_created config = %v, want 0 (explicit all-off)", got)
	}
	if got := configs[string(model.EventTypeProposalExecuted)]; got != nil {
		t.Errorf("proposal_executed config = %v, want nil (unset)", *got)
	}
}

// TestGate_ConfigForIdentity_IsolatedByIdentity は他アイデンティティの設定が混入しないことを検証する。
func TestGate_ConfigForIdentity_IsolatedByIdentity(t *testing.T) {
	gate := NewGate(newMemKV())
	ctx := context.Background()

	other := "ffffffffffffffffffffffffffffffffffffffff"
	if err := gate.SetConfig(ctx, other, string(model.EventTypeJoinedDao), 7); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}

	configs, err := gate.ConfigForIdentity(ctx, testIdentity)
	if err != nil {
		t.Fatalf("ConfigForIdentity failed: %v", err)
	}

	for eventType, mask := range configs {
		if mask != nil {
			t.Errorf("%s config = %d, want nil", eventType, *mask)
		}
	}
}
