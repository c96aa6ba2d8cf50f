package model

// EmailMetadata はメールレコードのKVメタデータ。
// 検証状態の状態機械（Unset → Pending → Verified）を表現する。
// 不変条件: VerifiedAtが非nilのときVerificationCodeはnil。
type EmailMetadata struct {
	// VerificationCode は未検証の間のみ保持される単回使用コード。
	VerificationCode *string `json:"verificationCode"`
	// VerificationSentAt は検証メール送信時刻（Unixミリ秒）。
	VerificationSentAt int64 `json:"verificationSentAt"`
	// VerifiedAt は検証完了時刻（Unixミリ秒）。未検証の場合はnil。
	VerifiedAt *int64 `json:"verifiedAt"`
}

// Verified は検証済み状態かどうかを返す。
func (m *EmailMetadata) Verified() bool {
	return m != nil && m.VerifiedAt != nil
}
