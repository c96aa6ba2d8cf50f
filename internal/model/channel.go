// Package model はドメインモデルを定義する。
package model

// Channel は通知の配信チャネルをビットマスクで表す。
type Channel int

const (
	// ChannelFeed は永続化されたインボックスフィードへの配信を表す。
	ChannelFeed Channel = 1 << 0
	// ChannelEmail はメール通知を表す。
	ChannelEmail Channel = 1 << 1
	// ChannelPush はWebプッシュ通知を表す。
	ChannelPush Channel = 1 << 2
)

// EventType はインデクサーWebhookが送信するイベント種別。
// 新しい種別を追加する場合はdispatchパッケージのテンプレートテーブルにも
// エントリを追加すること。
type EventType string

const (
	// EventTypeJoinedDao はDAOへの参加イベント。
	EventTypeJoinedDao EventType = "joined_dao"
	// EventTypeProposalCreated はプロポーザル作成イベント。
	EventTypeProposalCreated EventType = "proposal_created"
	// EventTypeProposalExecuted はプロポーザル実行イベント。
	EventTypeProposalExecuted EventType = "proposal_executed"
	// EventTypeProposalClosed はプロポーザルクローズイベント。
	EventTypeProposalClosed EventType = "proposal_closed"
)

// DefaultEnabledChannels は設定レコードが存在しない場合に有効とみなすチャネル。
// フィードはデフォルトで有効、メールとプッシュは明示的なオプトインが必要。
const DefaultEnabledChannels = ChannelFeed

// Has はマスクに指定チャネルのビットが立っているかを返す。
func (c Channel) Has(ch Channel) bool {
	return c&ch == ch
}
