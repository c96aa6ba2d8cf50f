package repository

// キーのプレフィックス構造はプレフィックススキャンの前提となるため、
// キー生成は必ずこのファイルの関数を経由すること。

// ItemKey はインボックスアイテムのキーを生成する。
// idは `{type}/{uuid}` 形式で、ItemPrefixによる種別フィルタを可能にする。
func ItemKey(identity, id string) string {
	return "ITEM:" + identity + ":" + id
}

// ItemPrefix はアイテム一覧スキャン用のプレフィックスを生成する。
// eventTypeが空の場合は全種別を対象とする。
func ItemPrefix(identity, eventType string) string {
	if eventType == "" {
		return "ITEM:" + identity + ":"
	}
	return "ITEM:" + identity + ":" + eventType + "/"
}

// ItemIDFromKey はアイテムキーからIDを取り出す。
func ItemIDFromKey(identity, key string) string {
	prefix := "ITEM:" + identity + ":"
	if len(key) <= len(prefix) {
		return ""
	}
	return key[len(prefix):]
}

// EmailKey はメールレコードのキーを生成する。
func EmailKey(identity string) string {
	return "EMAIL:" + identity
}

// TypeConfigKey はイベント種別ごとのチャネル設定のキーを生成する。
func TypeConfigKey(identity, eventType string) string {
	return "TYPE:" + identity + ":" + eventType
}

// TypeConfigPrefix は種別設定一覧スキャン用のプレフィックスを生成する。
func TypeConfigPrefix(identity string) string {
	return "TYPE:" + identity + ":"
}

// TypeFromConfigKey は種別設定キーからイベント種別を取り出す。
func TypeFromConfigKey(identity, key string) string {
	prefix := "TYPE:" + identity + ":"
	if len(key) <= len(prefix) {
		return ""
	}
	return key[len(prefix):]
}

// PushKey はプッシュ購読のキーを生成する。p256dh公開鍵が購読の一意キー。
func PushKey(identity, p256dh string) string {
	return "PUSH:" + identity + ":" + p256dh
}

// PushPrefix はプッシュ購読一覧スキャン用のプレフィックスを生成する。
func PushPrefix(identity string) string {
	return "PUSH:" + identity + ":"
}

// NonceKey はノンスカウンターのキーを生成する。
func NonceKey(identity string) string {
	return "NONCE:" + identity
}
