package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// defaultPageSize はListのデフォルトページサイズ。
const defaultPageSize = 100

// PostgresKVRepo はPostgreSQLを使用したキー/バリューリポジトリ。
// inbox_kvテーブルの主キー順序をプレフィックススキャンに利用する。
type PostgresKVRepo struct {
	db *sql.DB
}

// NewPostgresKVRepo はPostgresKVRepoを生成する。
func NewPostgresKVRepo(db *sql.DB) *PostgresKVRepo {
	return &PostgresKVRepo{db: db}
}

// Get は指定キーのレコードを取得する。見つからない場合はnilを返す。
func (r *PostgresKVRepo) Get(ctx context.Context, key string) (*KVEntry, error) {
	entry := &KVEntry{Key: key}
	var metadata sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT v, metadata FROM inbox_kv WHERE k = $1`,
		key,
	).Scan(&entry.Value, &metadata)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("レコードの取得に失敗しました: %w", err)
	}

	if metadata.Valid {
		entry.Metadata = json.RawMessage(metadata.String)
	}

	return entry, nil
}

// Put はレコードをUPSERTする。
func (r *PostgresKVRepo) Put(ctx context.Context, key, value string, metadata json.RawMessage) error {
	var meta any
	if metadata != nil {
		meta = string(metadata)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO inbox_kv (k, v, metadata)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (k) DO UPDATE
		 SET v = EXCLUDED.v, metadata = EXCLUDED.metadata, updated_at = now()`,
		key, value, meta,
	)
	if err != nil {
		return fmt.Errorf("レコードの書き込みに失敗しました: %w", err)
	}

	return nil
}

// Delete は指定キーを削除する。存在しないキーは何もしない。
func (r *PostgresKVRepo) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM inbox_kv WHERE k = $1`,
		key,
	)
	if err != nil {
		return fmt.Errorf("レコードの削除に失敗しました: %w", err)
	}

	return nil
}

// List はプレフィックスに一致するキーを昇順で1ページ分返す。
// limit+1件取得して続きの有無を判定する。
func (r *PostgresKVRepo) List(ctx context.Context, prefix, cursor string, limit int) (*KVPage, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT k FROM inbox_kv
		 WHERE k LIKE $1 ESCAPE '\' AND k > $2
		 ORDER BY k
		 LIMIT $3`,
		escapeLikePrefix(prefix)+"%", cursor, limit+1,
	)
	if err != nil {
		return nil, fmt.Errorf("プレフィックススキャンに失敗しました: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0, limit)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("キーの読み取りに失敗しました: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("プレフィックススキャンに失敗しました: %w", err)
	}

	page := &KVPage{Complete: true}
	if len(keys) > limit {
		keys = keys[:limit]
		page.Complete = false
	}
	page.Keys = keys
	if len(keys) > 0 {
		page.Cursor = keys[len(keys)-1]
	}

	return page, nil
}

// escapeLikePrefix はLIKEパターンのメタ文字をエスケープする。
func escapeLikePrefix(prefix string) string {
	prefix = strings.ReplaceAll(prefix, `\`, `\\`)
	prefix = strings.ReplaceAll(prefix, `%`, `\%`)
	prefix = strings.ReplaceAll(prefix, `_`, `\_`)
	return prefix
}
