package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/voltx/rec-hub/internal/domain"
)

var (
	// Ledger business metrics
	LedgerOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rec_ledger_operations_total",
		Help: "Ledger write operations by operation and result",
	}, []string{"op", "result"})

	LedgerCommitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rec_ledger_commit_seconds",
		Help:    "Time spent persisting a ledger changeset",
		Buckets: prometheus.DefBuckets,
	})

	MintedMWhTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rec_minted_mwh_total",
		Help: "MWh of generation certified, by facility and energy type",
	}, []string{"facility_id", "energy_type"})

	RetiredTokensTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rec_retired_tokens_total",
		Help: "Whole certificate tokens retired",
	})

	BurnedTokensTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rec_burned_tokens_total",
		Help: "Whole certificate tokens burned",
	})

	LedgerEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rec_ledger_entries",
		Help: "Number of entries in the transaction log",
	})

	LedgerPaused = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rec_ledger_paused",
		Help: "1 while the ledger is paused",
	})

	// Infrastructure metrics
	OutboxPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rec_outbox_published_total",
		Help: "Outbox messages relayed to the broker by result",
	}, []string{"result"})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rec_events_published_total",
		Help: "Ledger events published to the broker by type and result",
	}, []string{"type", "result"})

	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rec_websocket_clients",
		Help: "Connected websocket event subscribers",
	})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rec_circuit_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
	}, []string{"name"})

	DependencyUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rec_dependency_up",
		Help: "Result of the last readiness check per dependency (1 healthy, 0.5 degraded, 0 down)",
	}, []string{"check"})

	GRPCRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rec_grpc_requests_total",
		Help: "gRPC calls by method and status code",
	}, []string{"method", "code"})

	GRPCRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rec_grpc_request_duration_seconds",
		Help:    "gRPC call latency by method",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rec_http_requests_total",
		Help: "HTTP API requests by route, method and status",
	}, []string{"route", "method", "status"})
)

// ObserveOperation records the outcome of a ledger write.
func ObserveOperation(op string, err error) {
	result := "ok"
	if err != nil {
		result = string(domain.KindOf(err))
		if result == "" {
			result = "error"
		}
	}
	LedgerOperationsTotal.WithLabelValues(op, result).Inc()
}

// ObserveCommit records how long a store commit took.
func ObserveCommit(start time.Time) {
	LedgerCommitDuration.Observe(time.Since(start).Seconds())
}

// MetricsListener updates business metrics from committed ledger events.
type MetricsListener struct{}

func NewMetricsListener() *MetricsListener {
	return &MetricsListener{}
}

func (l *MetricsListener) OnEvents(_ context.Context, events []domain.Event) {
	for _, e := range events {
		switch e.Type {
		case domain.EventMinted:
			MintedMWhTotal.WithLabelValues(e.FacilityID, e.EnergyType).Add(float64(e.AmountMWh))
		case domain.EventRetired:
			if e.Amount != nil {
				RetiredTokensTotal.Add(e.Amount.Tokens().InexactFloat64())
			}
		case domain.EventBurned:
			if e.Amount != nil {
				BurnedTokensTotal.Add(e.Amount.Tokens().InexactFloat64())
			}
		case domain.EventPaused:
			LedgerPaused.Set(1)
		case domain.EventUnpaused:
			LedgerPaused.Set(0)
		}
		if e.EntryIndex != nil {
			LedgerEntries.Set(float64(*e.EntryIndex + 1))
		}
	}
}
