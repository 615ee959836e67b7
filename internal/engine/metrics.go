package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Traffic: события шлюза по видам
	EventsTotal *prometheus.CounterVec

	// Итоги энфорсмента (success / denied / failed)
	EnforcementsTotal *prometheus.CounterVec

	// Отказы оценщика прав по причинам
	DenialsTotal *prometheus.CounterVec

	// Latency: полный цикл бан + чистка
	EnforceDuration *prometheus.HistogramVec

	// Сколько сообщений вычищено дополнительной чисткой
	PurgedMessages prometheus.Counter

	// Переподключения websocket-шлюза
	GatewayReconnects prometheus.Counter

	// Заполненность буфера аудита (backpressure)
	AuditBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - без регистратора метрики летят в локальный,
	// никуда не подключенный реестр (удобно в тестах)
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		EventsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "trapgate_events_total",
			Help: "Total number of gateway events by kind.",
		}, []string{"kind"}),

		EnforcementsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "trapgate_enforcements_total",
			Help: "Total number of enforcement attempts by outcome.",
		}, []string{"outcome"}),

		DenialsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "trapgate_denials_total",
			Help: "Capability denials by reason.",
		}, []string{"reason"}),

		EnforceDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trapgate_enforce_duration_seconds",
			Help:    "Histogram of full enforcement latencies.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}),

		PurgedMessages: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "trapgate_purged_messages_total",
			Help: "Messages removed by the supplementary purge.",
		}),

		GatewayReconnects: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "trapgate_gateway_reconnects_total",
			Help: "Websocket gateway reconnect attempts.",
		}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "trapgate_audit_buffer_utilization",
			Help: "Current number of events in the audit buffer.",
		}),
	}
}
