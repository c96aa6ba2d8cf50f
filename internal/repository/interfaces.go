// Package repository はデータアクセス層のインターフェースと実装を提供する。
// ストレージは順序付き・プレフィックススキャン可能・メタデータ付きの
// キー/バリューストアとして抽象化する。マルチキートランザクションは提供しない。
package repository

import (
	"context"
	"encoding/json"
)

// KVEntry はメタデータ付きのキー/バリューレコードを表す。
type KVEntry struct {
	Key      string
	Value    string
	Metadata json.RawMessage // メタデータなしの場合はnil
}

// KVPage はプレフィックススキャン1ページ分の結果を表す。
// Completeがfalseの場合、呼び出し側はCursorを次ページの起点として渡す。
type KVPage struct {
	Keys     []string
	Cursor   string
	Complete bool
}

// KVRepository はキー/バリューストアへのアクセスインターフェース。
// 単一キーの読み書きとプレフィックススキャンのみを提供する。
// read-modify-writeの呼び出し列はアトミックではない（既知の弱一貫性）。
type KVRepository interface {
	// Get は指定キーのレコードを取得する。存在しない場合はnilを返す。
	Get(ctx context.Context, key string) (*KVEntry, error)
	// Put はレコードをUPSERTする。metadataがnilの場合はメタデータなしで保存する。
	Put(ctx context.Context, key, value string, metadata json.RawMessage) error
	// Delete は指定キーを削除する。存在しないキーはエラーにならない。
	Delete(ctx context.Context, key string) error
	// List はプレフィックスに一致するキーを昇順で1ページ分返す。
	// cursorには前ページの最終キーを渡す（空文字列で先頭から）。
	// limitが0以下の場合はデフォルトのページサイズを使用する。
	List(ctx context.Context, prefix, cursor string, limit int) (*KVPage, error)
}
