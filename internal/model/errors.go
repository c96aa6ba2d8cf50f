package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, email, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidAPIKey    = "INVALID_API_KEY"
	ErrCodeInvalidSignature = "INVALID_SIGNATURE"
	ErrCodeNonceMismatch    = "NONCE_MISMATCH"
	ErrCodeInvalidIdentity  = "INVALID_IDENTITY"
	ErrCodeUnknownEventType = "UNKNOWN_EVENT_TYPE"
	ErrCodeInvalidBody      = "INVALID_BODY"
	ErrCodeEmailNotFound    = "EMAIL_NOT_FOUND"
	ErrCodeInvalidMetadata  = "INVALID_EMAIL_METADATA"
	ErrCodeInvalidCode      = "INVALID_VERIFICATION_CODE"
	ErrCodeCodeExpired      = "VERIFICATION_CODE_EXPIRED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// NewInvalidAPIKeyError はWebhook共有シークレット不一致のエラーを生成する。
func NewInvalidAPIKeyError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAPIKey,
		Message:  "APIキーが無効です。",
		Category: "auth",
		Action:   "正しいWebhookシークレットをx-api-keyヘッダーに指定してください。",
	}
}

// NewInvalidSignatureError は署名検証失敗のエラーを生成する。
func NewInvalidSignatureError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSignature,
		Message:  "署名の検証に失敗しました。",
		Category: "auth",
		Action:   "ウォレットで署名し直してから再度お試しください。",
	}
}

// NewNonceMismatchError はノンスの再利用・不一致エラーを生成する。
// 期待値と異なるノンスはリプレイまたは古いリクエストとして拒否される。
func NewNonceMismatchError(expected, got uint64) *APIError {
	return &APIError{
		Code:     ErrCodeNonceMismatch,
		Message:  fmt.Sprintf("ノンスが一致しません: 期待値 %d, 受信値 %d", expected, got),
		Category: "auth",
		Action:   "最新のノンスを取得してからリクエストを再送してください。",
	}
}

// NewInvalidIdentityError はアイデンティティの解決失敗エラーを生成する。
func NewInvalidIdentityError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidIdentity,
		Message:  fmt.Sprintf("ウォレット識別子を解決できません: %s", reason),
		Category: "validation",
		Action:   "bech32アドレス、公開鍵、またはハッシュのいずれかを指定してください。",
	}
}

// NewUnknownEventTypeError は未知のイベント種別エラーを生成する。
func NewUnknownEventTypeError(eventType string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownEventType,
		Message:  fmt.Sprintf("未知のイベント種別です: %s", eventType),
		Category: "validation",
		Action:   "サポートされているイベント種別を指定してください。",
	}
}

// NewInvalidBodyError はリクエストボディ不正のエラーを生成する。
func NewInvalidBodyError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidBody,
		Message:  fmt.Sprintf("リクエストボディが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエストの形式を確認してください。",
	}
}

// NewEmailNotFoundError はメールアドレス未登録のエラーを生成する。
func NewEmailNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailNotFound,
		Message:  "メールアドレスが登録されていません。",
		Category: "email",
		Action:   "先にメールアドレスを設定してください。",
	}
}

// NewInvalidMetadataError はメールレコードのメタデータ破損エラーを生成する。
func NewInvalidMetadataError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMetadata,
		Message:  "メールレコードのメタデータが不正です。",
		Category: "email",
		Action:   "しばらく待ってから再度お試しいただくか、サポートにお問い合わせください。",
	}
}

// NewInvalidCodeError は検証コード不一致のエラーを生成する。
func NewInvalidCodeError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCode,
		Message:  "検証コードが一致しません。",
		Category: "email",
		Action:   "検証メールに記載されたコードを確認してください。",
	}
}

// NewCodeExpiredError は検証コード期限切れのエラーを生成する。
func NewCodeExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeCodeExpired,
		Message:  "検証コードの有効期限が切れています。",
		Category: "email",
		Action:   "検証メールを再送してから新しいコードでお試しください。",
	}
}
