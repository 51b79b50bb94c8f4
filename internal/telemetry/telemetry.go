// Package telemetry aggregates per-tick counters, exposes them as Prometheus
// metrics, and persists tick/capacity summaries to storage.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"solana-spot-engine/internal/storage"
)

// Recorder tracks rolling tick latency samples and exposes Prometheus
// gauges/counters for the scout queue, rotation evaluator, and governor.
type Recorder struct {
	db *storage.DB

	mu        sync.Mutex
	samples   []int64
	sampleIdx int

	tickDuration    prometheus.Histogram
	queueDepth      prometheus.Gauge
	scoutSlotsUsed  prometheus.Gauge
	coreSlotsUsed   prometheus.Gauge
	governorHaircut prometheus.Gauge
	rotationTotal   *prometheus.CounterVec
	tradesTotal     *prometheus.CounterVec
	slippageBps     prometheus.Histogram
}

// NewRecorder builds a Recorder and registers its collectors with reg.
// Pass prometheus.NewRegistry() (not the global DefaultRegisterer) so tests
// can construct independent Recorders without collisions.
func NewRecorder(db *storage.DB, reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		db:      db,
		samples: make([]int64, 100),

		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_tick_duration_ms",
			Help:    "Tick loop duration in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(5, 2, 12),
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_scout_queue_depth",
			Help: "Pending + in-progress scout queue rows.",
		}),
		scoutSlotsUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_scout_slots_used",
			Help: "Scout position slots currently occupied.",
		}),
		coreSlotsUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_core_slots_used",
			Help: "Core position slots currently occupied.",
		}),
		governorHaircut: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_governor_haircut_ratio",
			Help: "Current sizer governor haircut, 0 (none) to 1 (full cut).",
		}),
		rotationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_rotation_actions_total",
			Help: "Rotation evaluator decisions by action.",
		}, []string{"action"}),
		tradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_trades_total",
			Help: "Executed trades by side and status.",
		}, []string{"side", "status"}),
		slippageBps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_swap_slippage_bps",
			Help:    "Realized slippage in basis points per executed swap.",
			Buckets: prometheus.LinearBuckets(0, 25, 20),
		}),
	}

	reg.MustRegister(r.tickDuration, r.queueDepth, r.scoutSlotsUsed, r.coreSlotsUsed,
		r.governorHaircut, r.rotationTotal, r.tradesTotal, r.slippageBps)

	return r
}

// RecordTick logs one tick's duration and persists a bot_tick_telemetry row.
func (r *Recorder) RecordTick(tickID string, durationMs int64, positions, candidates, queueDepth, errs int, configHash string, ts int64) error {
	r.mu.Lock()
	r.samples[r.sampleIdx%len(r.samples)] = durationMs
	r.sampleIdx++
	r.mu.Unlock()

	r.tickDuration.Observe(float64(durationMs))
	r.queueDepth.Set(float64(queueDepth))

	return r.db.InsertTickTelemetry(tickID, durationMs, positions, candidates, queueDepth, errs, configHash, ts)
}

// RecordCapacity logs slot utilisation and persists a capacity_telemetry row.
func (r *Recorder) RecordCapacity(scoutUsed, coreUsed, scoutTotal, coreTotal int, ts int64) error {
	r.scoutSlotsUsed.Set(float64(scoutUsed))
	r.coreSlotsUsed.Set(float64(coreUsed))
	return r.db.InsertCapacityTelemetry(scoutUsed, coreUsed, scoutTotal, coreTotal, ts)
}

// RecordGovernorHaircut reports the sizer's current haircut ratio.
func (r *Recorder) RecordGovernorHaircut(ratio float64) {
	r.governorHaircut.Set(ratio)
}

// RecordRotation logs a rotation-evaluator decision.
func (r *Recorder) RecordRotation(action, worstMint, bestMint string, worstRank, bestRank float64, reason string, ts int64) error {
	r.rotationTotal.WithLabelValues(action).Inc()
	return r.db.InsertRotationLog(action, worstMint, bestMint, worstRank, bestRank, reason, ts)
}

// RecordAllocation logs a sizer/scout-queue outcome.
func (r *Recorder) RecordAllocation(mint, outcome, reason string, sizeUSD float64, limitingFactor string, ts int64) error {
	return r.db.InsertAllocationEvent(mint, outcome, reason, sizeUSD, limitingFactor, ts)
}

// RecordTrade increments trade counters, a slippage sample, and inserts the
// bot_trades row.
func (r *Recorder) RecordTrade(t *storage.BotTrade, slippageBps float64) (int64, error) {
	r.tradesTotal.WithLabelValues(t.Side, t.Status).Inc()
	if slippageBps != 0 {
		r.slippageBps.Observe(slippageBps)
	}
	return r.db.InsertBotTrade(t)
}

// TickP50/P95/Avg report rolling tick-duration percentiles over the last
// 100 ticks, mirroring a ring-buffer latency sampler.
func (r *Recorder) TickP50() int64 { return r.percentile(50) }
func (r *Recorder) TickP95() int64 { return r.percentile(95) }

func (r *Recorder) TickAvg() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := r.sampleIdx
	if count > len(r.samples) {
		count = len(r.samples)
	}
	if count == 0 {
		return 0
	}
	var sum int64
	for i := 0; i < count; i++ {
		sum += r.samples[i]
	}
	return sum / int64(count)
}

func (r *Recorder) percentile(p int) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := r.sampleIdx
	if count > len(r.samples) {
		count = len(r.samples)
	}
	if count == 0 {
		return 0
	}
	sorted := make([]int64, count)
	copy(sorted, r.samples[:count])
	for i := 0; i < len(sorted)-1; i++ {
		for j := 0; j < len(sorted)-i-1; j++ {
			if sorted[j] > sorted[j+1] {
				sorted[j], sorted[j+1] = sorted[j+1], sorted[j]
			}
		}
	}
	idx := (p * count) / 100
	if idx >= count {
		idx = count - 1
	}
	return sorted[idx]
}
