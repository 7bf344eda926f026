package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 单封邮件处理结果计数
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_processed_total",
			Help: "Total number of messages processed by the ingestion pipeline",
		},
		[]string{"outcome", "reason"}, // outcome: persisted, rejected, failed
	)

	// 字段抽取调用延迟（毫秒）
	ExtractionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extraction_latency_ms",
			Help:    "Field extraction call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"provider", "status"},
	)

	// 批次处理耗时（秒）
	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "batch_duration_seconds",
			Help:    "Ingestion batch duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"source"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slow_query_total",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"sql"},
	)

	// 熔断器状态 0=closed 1=open 2=half-open
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"name"},
	)

	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		},
		[]string{"routing_key", "status"},
	)
)

// IncrementMessageProcessed 增加邮件处理计数
func IncrementMessageProcessed(outcome, reason string) {
	MessagesProcessed.WithLabelValues(outcome, reason).Inc()
}

// RecordExtractionLatency 记录字段抽取调用延迟
func RecordExtractionLatency(provider, status string, duration time.Duration) {
	ExtractionLatency.WithLabelValues(provider, status).Observe(float64(duration.Milliseconds()))
}

// RecordBatchDuration 记录批次耗时
func RecordBatchDuration(source string, duration time.Duration) {
	BatchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementSlowQuery 增加慢查询计数
func IncrementSlowQuery(sql string, _ time.Duration) {
	SlowQueryCount.WithLabelValues(sql).Inc()
}

// SetCircuitBreakerState 记录熔断器状态
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, status string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, status).Observe(float64(duration.Milliseconds()))
}
