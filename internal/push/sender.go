package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/hitoshi/inboxd/internal/model"
)

// Sender はVAPID鍵を使用してWebプッシュ通知を送信する。
// 起動時に1回だけ生成し、プロセス全体で共有する。
type Sender struct {
	subscriber string // VAPIDのsubject（mailto:アドレス）
	publicKey  string
	privateKey string
	ttl        int
}

// NewSender はSenderを生成する。
// supportEmailはVAPIDのsubject（mailto:）として使用する。
func NewSender(supportEmail, publicKey, privateKey string) *Sender {
	return &Sender{
		subscriber: "mailto:" + supportEmail,
		publicKey:  publicKey,
		privateKey: privateKey,
		ttl:        60 * 60 * 24, // 1日
	}
}

// Send は1件の購読に対してプッシュ通知を送信する。
// タイムアウトは呼び出し側のコンテキストで制御する。
func (s *Sender) Send(ctx context.Context, sub *model.PushSubscription, payload *model.PushPayload) error {
	message, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("プッシュペイロードのシリアライズに失敗しました: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, message, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             s.ttl,
	})
	if err != nil {
		return fmt.Errorf("プッシュ通知の送信に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("プッシュエンドポイントが異常ステータスを返しました: %d", resp.StatusCode)
	}

	return nil
}
