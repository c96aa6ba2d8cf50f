package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/inboxd/internal/model"
	"github.com/hitoshi/inboxd/internal/realtime"
)

// FeedAppender はフィードへの追記インターフェース。
type FeedAppender interface {
	Append(ctx context.Context, identity string, eventType model.EventType, payload json.RawMessage, chainID string) (string, error)
}

// PermissionGate は配信可否判定のインターフェース。
type PermissionGate interface {
	IsEnabled(ctx context.Context, identity string, eventType model.EventType, ch model.Channel) (bool, error)
}

// VerifiedEmailSource は検証済みメールアドレスの取得インターフェース。
type VerifiedEmailSource interface {
	GetVerified(ctx context.Context, identity string) (string, error)
}

// SubscriptionSource はプッシュ購読一覧の取得インターフェース。
type SubscriptionSource interface {
	List(ctx context.Context, identity string) ([]model.PushSubscription, error)
}

// EmailSender はテンプレートメール送信のインターフェース。
type EmailSender interface {
	SendTemplated(ctx context.Context, to, template string, variables map[string]any) error
}

// PushSender はプッシュ通知送信のインターフェース。
type PushSender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload *model.PushPayload) error
}

// Expander はアイデンティティ展開のインターフェース。
type Expander interface {
	Expand(ctx context.Context, identity string) []string
}

// Metrics はディスパッチ結果の計測インターフェース。
type Metrics interface {
	RecordItemAdded(eventType string)
	RecordEmailSent()
	RecordEmailFailure()
	RecordPushSent()
	RecordPushFailure()
	RecordRealtimeFailure()
	RecordDispatchLatency(d time.Duration)
}

// Dispatcher は受理されたイベントを各チャネルへファンアウトする。
//
// フィード書き込みだけが成否の単位であり、メール・プッシュ・リアルタイムの
// 送信失敗はログと計測に記録して飲み込む（呼び出し元には伝播しない）。
// 全送信が完了するまでDispatchはブロックする。
type Dispatcher struct {
	feed          FeedAppender
	gate          PermissionGate
	emails        VerifiedEmailSource
	subscriptions SubscriptionSource
	emailSender   EmailSender
	pushSender    PushSender
	expander      Expander
	emitter       realtime.Emitter
	renderer      *Renderer
	metrics       Metrics
	logger        *slog.Logger

	sendTimeout   time.Duration // 外部送信1件あたりのタイムアウト
	maxConcurrent int
}

// Deps はNewDispatcherに必要な依存関係をまとめた構造体。
type Deps struct {
	Feed          FeedAppender
	Gate          PermissionGate
	Emails        VerifiedEmailSource
	Subscriptions SubscriptionSource
	EmailSender   EmailSender
	PushSender    PushSender
	Expander      Expander
	Emitter       realtime.Emitter
	Renderer      *Renderer
	Metrics       Metrics
	Logger        *slog.Logger

	SendTimeout   time.Duration
	MaxConcurrent int
}

// NewDispatcher はDispatcherを生成する。
// MaxConcurrentが0以下の場合はデフォルト値10を使用する。
func NewDispatcher(deps Deps) *Dispatcher {
	if deps.MaxConcurrent <= 0 {
		deps.MaxConcurrent = 10
	}
	if deps.SendTimeout <= 0 {
		deps.SendTimeout = 10 * time.Second
	}
	return &Dispatcher{
		feed:          deps.Feed,
		gate:          deps.Gate,
		emails:        deps.Emails,
		subscriptions: deps.Subscriptions,
		emailSender:   deps.EmailSender,
		pushSender:    deps.PushSender,
		expander:      deps.Expander,
		emitter:       deps.Emitter,
		renderer:      deps.Renderer,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		sendTimeout:   deps.SendTimeout,
		maxConcurrent: deps.MaxConcurrent,
	}
}

// sendTask は1件の送信単位（受信者×チャネル、プッシュは購読単位）。
type sendTask struct {
	recipient string
	channel   string
	run       func(ctx context.Context) error
	onSuccess func()
	onFailure func()
}

// Dispatch はイベントを受理してファンアウトを実行する。
//
//  1. 所有者のFeedチャネルが有効ならフィードに追記し、ベストエフォートで
//     リアルタイムイベントを発行する。
//  2. ディレクトリ展開で受信者集合を解決する（障害時は所有者のみ）。
//  3. 受信者ごとに独立してメール・プッシュの適格性を判定する。
//  4. 適格な送信をすべて並行実行し、全件の完了を待ってから返る。
//
// 戻り値はフィードに書き込まれたアイテムID（書き込まれなかった場合は空）。
// フィード書き込みの失敗のみがエラーとして返る。
func (d *Dispatcher) Dispatch(ctx context.Context, event *model.Event) (string, error) {
	start := time.Now()
	defer func() {
		d.metrics.RecordDispatchLatency(time.Since(start))
	}()

	// 1. フィード書き込み + リアルタイム発行
	itemID, err := d.appendToFeed(ctx, event)
	if err != nil {
		return "", err
	}

	// レンダリング用にペイロードを1回だけデコードする
	var data map[string]any
	if err := json.Unmarshal(event.Data, &data); err != nil {
		// 構造化されていないペイロードはフィードにのみ残る
		d.logger.Warn("ペイロードのデコードに失敗したため通知チャネルをスキップします",
			slog.String("identity", event.Identity),
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()),
		)
		return itemID, nil
	}

	// 2. 受信者の解決
	recipients := d.expander.Expand(ctx, event.Identity)

	// 3. 受信者ごとの適格性判定とタスク構築
	var tasks []sendTask
	for _, recipient := range recipients {
		tasks = append(tasks, d.emailTasks(ctx, recipient, event, data)...)
		tasks = append(tasks, d.pushTasks(ctx, recipient, event, data)...)
	}

	// 4. 全送信を並行実行し、全件完了を待つ
	d.runAll(ctx, event, tasks)

	return itemID, nil
}

// appendToFeed は所有者のFeedチャネルが有効な場合にフィードへ追記し、
// リアルタイムイベントをベストエフォートで発行する。
func (d *Dispatcher) appendToFeed(ctx context.Context, event *model.Event) (string, error) {
	enabled, err := d.gate.IsEnabled(ctx, event.Identity, event.Type, model.ChannelFeed)
	if err != nil {
		return "", fmt.Errorf("フィードチャネルの判定に失敗しました: %w", err)
	}
	if !enabled {
		return "", nil
	}

	itemID, err := d.feed.Append(ctx, event.Identity, event.Type, event.Data, event.ChainID)
	if err != nil {
		return "", err
	}
	d.metrics.RecordItemAdded(string(event.Type))

	// リアルタイム発行の失敗はリクエストを妨げない
	err = d.emitter.Emit(realtime.InboxChannel(event.Identity), realtime.EventItemAdded, map[string]any{
		"id":      itemID,
		"chainId": event.ChainID,
		"data":    event.Data,
	})
	if err != nil {
		d.metrics.RecordRealtimeFailure()
		d.logger.Error("リアルタイムイベントの発行に失敗しました",
			slog.String("identity", event.Identity),
			slog.String("item_id", itemID),
			slog.String("error", err.Error()),
		)
	}

	return itemID, nil
}

// emailTasks は受信者のメール送信タスクを構築する。
// 検証済みアドレスがあり、Emailチャネルが有効で、テンプレートが
// レンダリング可能な場合のみタスクを返す。
func (d *Dispatcher) emailTasks(ctx context.Context, recipient string, event *model.Event, data map[string]any) []sendTask {
	address, err := d.emails.GetVerified(ctx, recipient)
	if err != nil {
		d.logEligibilityFailure(recipient, event, "email", err)
		return nil
	}
	if address == "" {
		return nil
	}

	enabled, err := d.gate.IsEnabled(ctx, recipient, event.Type, model.ChannelEmail)
	if err != nil {
		d.logEligibilityFailure(recipient, event, "email", err)
		return nil
	}
	if !enabled {
		return nil
	}

	message := d.renderer.RenderEmail(event.Type, data)
	if message == nil {
		// 必須フィールド欠落は静かにスキップする
		return nil
	}

	return []sendTask{{
		recipient: recipient,
		channel:   "email",
		run: func(ctx context.Context) error {
			return d.emailSender.SendTemplated(ctx, address, message.Template, message.Variables)
		},
		onSuccess: d.metrics.RecordEmailSent,
		onFailure: d.metrics.RecordEmailFailure,
	}}
}

// pushTasks は受信者のプッシュ送信タスクを購読単位で構築する。
// 送信者が設定されていない場合（VAPID鍵未設定）は何も構築しない。
func (d *Dispatcher) pushTasks(ctx context.Context, recipient string, event *model.Event, data map[string]any) []sendTask {
	if d.pushSender == nil {
		return nil
	}

	subs, err := d.subscriptions.List(ctx, recipient)
	if err != nil {
		d.logEligibilityFailure(recipient, event, "push", err)
		return nil
	}
	if len(subs) == 0 {
		return nil
	}

	enabled, err := d.gate.IsEnabled(ctx, recipient, event.Type, model.ChannelPush)
	if err != nil {
		d.logEligibilityFailure(recipient, event, "push", err)
		return nil
	}
	if !enabled {
		return nil
	}

	payload := d.renderer.RenderPush(event.Type, data)
	if payload == nil {
		return nil
	}

	tasks := make([]sendTask, 0, len(subs))
	for _, sub := range subs {
		sub := sub
		tasks = append(tasks, sendTask{
			recipient: recipient,
			channel:   "push",
			run: func(ctx context.Context) error {
				return d.pushSender.Send(ctx, &sub, payload)
			},
			onSuccess: d.metrics.RecordPushSent,
			onFailure: d.metrics.RecordPushFailure,
		})
	}

	return tasks
}

// runAll は送信タスクをsemaphoreパターンで並行実行し、全件の完了を待つ。
// 各タスクは独立したタイムアウト付きで実行され、失敗は兄弟タスクを
// キャンセルせず、ログと計測にのみ記録される。
func (d *Dispatcher) runAll(ctx context.Context, event *model.Event, tasks []sendTask) {
	if len(tasks) == 0 {
		return
	}

	sem := make(chan struct{}, d.maxConcurrent)
	var wg sync.WaitGroup

	for _, task := range tasks {
		wg.Add(1)
		sem <- struct{}{}

		go func(t sendTask) {
			defer wg.Done()
			defer func() { <-sem }()

			sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
			defer cancel()

			if err := t.run(sendCtx); err != nil {
				t.onFailure()
				d.logger.Error("通知の送信に失敗しました",
					slog.String("recipient", t.recipient),
					slog.String("channel", t.channel),
					slog.String("type", string(event.Type)),
					slog.String("chain_id", event.ChainID),
					slog.String("payload", string(event.Data)),
					slog.String("error", err.Error()),
				)
				return
			}
			t.onSuccess()
		}(task)
	}

	wg.Wait()
}

// logEligibilityFailure は適格性判定中のストレージエラーを記録する。
// 該当の受信者×チャネルだけをスキップし、他の送信は続行する。
func (d *Dispatcher) logEligibilityFailure(recipient string, event *model.Event, channel string, err error) {
	d.logger.Error("配信適格性の判定に失敗しました",
		slog.String("recipient", recipient),
		slog.String("channel", channel),
		slog.String("type", string(event.Type)),
		slog.String("error", err.Error()),
	)
}
