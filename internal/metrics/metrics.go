// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// ディスパッチャーとHTTPミドルウェアから利用する。
type Collector struct {
	itemsAdded      *prometheus.CounterVec
	emailSent       prometheus.Counter
	emailFail       prometheus.Counter
	pushSent        prometheus.Counter
	pushFail        prometheus.Counter
	realtimeFail    prometheus.Counter
	httpStatus      *prometheus.CounterVec
	dispatchLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		itemsAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inboxd_items_added_total",
			Help: "フィードに追記されたアイテムの合計数（イベント種別ごと）",
		}, []string{"type"}),
		emailSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inboxd_email_sent_total",
			Help: "送信に成功したメール通知の合計数",
		}),
		emailFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inboxd_email_fail_total",
			Help: "送信に失敗したメール通知の合計数",
		}),
		pushSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inboxd_push_sent_total",
			Help: "送信に成功したプッシュ通知の合計数",
		}),
		pushFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inboxd_push_fail_total",
			Help: "送信に失敗したプッシュ通知の合計数",
		}),
		realtimeFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inboxd_realtime_fail_total",
			Help: "発行に失敗したリアルタイムイベントの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inboxd_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		dispatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "inboxd_dispatch_latency_seconds",
			Help:    "イベントファンアウト全体のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.itemsAdded,
		c.emailSent,
		c.emailFail,
		c.pushSent,
		c.pushFail,
		c.realtimeFail,
		c.httpStatus,
		c.dispatchLatency,
	)

	return c
}

// RecordItemAdded はフィードへの追記を記録する。
func (c *Collector) RecordItemAdded(eventType string) {
	c.itemsAdded.WithLabelValues(eventType).Inc()
}

// RecordEmailSent はメール送信成功を記録する。
func (c *Collector) RecordEmailSent() {
	c.emailSent.Inc()
}

// RecordEmailFailure はメール送信失敗を記録する。
func (c *Collector) RecordEmailFailure() {
	c.emailFail.Inc()
}

// RecordPushSent はプッシュ送信成功を記録する。
func (c *Collector) RecordPushSent() {
	c.pushSent.Inc()
}

// RecordPushFailure はプッシュ送信失敗を記録する。
func (c *Collector) RecordPushFailure() {
	c.pushFail.Inc()
}

// RecordRealtimeFailure はリアルタイムイベント発行失敗を記録する。
func (c *Collector) RecordRealtimeFailure() {
	c.realtimeFail.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordDispatchLatency はファンアウトのレイテンシを記録する。
func (c *Collector) RecordDispatchLatency(duration time.Duration) {
	c.dispatchLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
