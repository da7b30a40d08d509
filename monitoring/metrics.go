package monitoring

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

var (
	ticketsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Total tickets issued per event",
		},
		[]string{"event_id"},
	)

	issueFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_issue_failures_total",
			Help: "Failed issuance attempts by error code",
		},
		[]string{"event_id", "code"},
	)

	scanResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_results_total",
			Help: "Scan outcomes per event",
		},
		[]string{"event_key", "result"},
	)

	capacityRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "event_capacity_remaining",
			Help: "Tickets still sellable per event",
		},
		[]string{"event_id"},
	)

	pendingPurchases = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pending_purchases_total",
			Help: "Purchase sessions awaiting payment",
		},
	)

	redeemDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redeem_duration_seconds",
			Help:    "Latency of ticket redemption",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"result"},
	)
)

// TrackTicketIssued records a successful issuance.
func TrackTicketIssued(eventID string, quantity int) {
	ticketsIssued.WithLabelValues(eventID).Add(float64(quantity))
}

// TrackIssueFailure records a failed issuance attempt by error code.
func TrackIssueFailure(eventID, code string) {
	issueFailures.WithLabelValues(eventID, code).Inc()
}

// TrackScan records a scan outcome.
func TrackScan(eventKey, result string) {
	scanResults.WithLabelValues(eventKey, result).Inc()
}

// TrackCapacity records the remaining capacity gauge.
func TrackCapacity(eventID string, remaining int) {
	capacityRemaining.WithLabelValues(eventID).Set(float64(remaining))
}

// TrackPendingPurchases records the pending purchase gauge.
func TrackPendingPurchases(n int) {
	pendingPurchases.Set(float64(n))
}

// TrackRedeemDuration records redemption latency by outcome.
func TrackRedeemDuration(result string, d time.Duration) {
	redeemDuration.WithLabelValues(result).Observe(d.Seconds())
}

// Monitor periodically samples Redis-backed gauges.
type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	monitor := &Monitor{redis: redisClient}

	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx := context.Background()
		m.collectPurchaseMetrics(ctx)
	}
}

func (m *Monitor) collectPurchaseMetrics(ctx context.Context) {
	keys, err := m.redis.Keys(ctx, "purchase:*").Result()
	if err != nil {
		return
	}
	TrackPendingPurchases(len(keys))
}

// StartMetricsServer serves /metrics on its own port so scrapes never share
// a listener with the API.
func StartMetricsServer(port string) *http.Server {
	e := echo.New()
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: e,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server stopped", "error", err)
		}
	}()

	return srv
}
