// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやワークフローから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordClassifySuccess(label string)
	RecordClassifyFailure(reason string)
	RecordInferenceLatency(duration time.Duration)
	RecordWorkflowSaveFailure()
	RecordRecordsSaved()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus       *prometheus.CounterVec
	classifySuccess  *prometheus.CounterVec
	classifyFail     *prometheus.CounterVec
	inferenceLatency prometheus.Histogram
	workflowSaveFail prometheus.Counter
	recordsSaved     prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mammogate_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		classifySuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mammogate_classify_success_total",
			Help: "分類成功のラベル別合計数",
		}, []string{"label"}),
		classifyFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mammogate_classify_fail_total",
			Help: "分類失敗の原因別合計数",
		}, []string{"reason"}),
		inferenceLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mammogate_inference_latency_seconds",
			Help:    "推論バックエンド呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		workflowSaveFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mammogate_workflow_save_fail_total",
			Help: "分類成功後の保存失敗の合計数",
		}),
		recordsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mammogate_records_saved_total",
			Help: "保存された予測記録の合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.classifySuccess,
		c.classifyFail,
		c.inferenceLatency,
		c.workflowSaveFail,
		c.recordsSaved,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordClassifySuccess は分類成功をラベル別に記録する。
func (c *Collector) RecordClassifySuccess(label string) {
	c.classifySuccess.WithLabelValues(label).Inc()
}

// RecordClassifyFailure は分類失敗を原因別に記録する。
func (c *Collector) RecordClassifyFailure(reason string) {
	c.classifyFail.WithLabelValues(reason).Inc()
}

// RecordInferenceLatency は推論呼び出しのレイテンシを記録する。
func (c *Collector) RecordInferenceLatency(duration time.Duration) {
	c.inferenceLatency.Observe(duration.Seconds())
}

// RecordWorkflowSaveFailure は分類成功後の保存失敗を記録する。
func (c *Collector) RecordWorkflowSaveFailure() {
	c.workflowSaveFail.Inc()
}

// RecordRecordsSaved は予測記録の保存を記録する。
func (c *Collector) RecordRecordsSaved() {
	c.recordsSaved.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
