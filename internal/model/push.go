package model

// PushSubscriptionKeys はWebプッシュ購読の暗号鍵ペア。
type PushSubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// PushSubscription はブラウザのPush APIが発行する購読情報を表す。
// p256dh公開鍵を購読の一意キーとして使用する（複数デバイス対応）。
type PushSubscription struct {
	Endpoint string               `json:"endpoint"`
	Keys     PushSubscriptionKeys `json:"keys"`
}

// Valid は購読として必要なフィールドがすべて揃っているかを返す。
// 永続化された不正レコードのフィルタリングにも使用する。
func (s *PushSubscription) Valid() bool {
	return s != nil && s.Endpoint != "" && s.Keys.P256dh != "" && s.Keys.Auth != ""
}

// PushPayload はプッシュ通知として配信されるメッセージ本体。
type PushPayload struct {
	Title    string        `json:"title"`
	Message  string        `json:"message"`
	ImageURL string        `json:"imageUrl,omitempty"`
	DeepLink *PushDeepLink `json:"deepLink,omitempty"`
}

// PushDeepLink は通知タップ時の遷移先を表す。
type PushDeepLink struct {
	Type        string `json:"type"`
	CoreAddress string `json:"coreAddress"`
	ProposalID  string `json:"proposalId,omitempty"`
}
