// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics records per-run ingest counters and writes them in the
// Prometheus text format for node-exporter's textfile collector.
//
// A nil *Run is valid and records nothing.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pdiddy/dbnascent/internal/schema"
)

const namespace = "dbnascent"

// Run holds the metrics of one CLI invocation.
type Run struct {
	reg *prometheus.Registry

	rowsInserted  *prometheus.CounterVec
	samplesScored prometheus.Counter
	sampleScores  *prometheus.CounterVec
	ingests       *prometheus.CounterVec
	lastFinished  *prometheus.GaugeVec
	duration      *prometheus.GaugeVec
}

// New returns a Run whose metrics carry runID as a constant label.
func New(runID string) *Run {
	labels := prometheus.Labels{"run_id": runID}
	r := &Run{
		reg: prometheus.NewRegistry(),
		rowsInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "rows_inserted_total",
			Help:        "Rows inserted, by table.",
			ConstLabels: labels,
		}, []string{"table"}),
		samplesScored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "samples_scored_total",
			Help:        "Samples that received QC and NRO scores.",
			ConstLabels: labels,
		}),
		sampleScores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "sample_scores_total",
			Help:        "Samples by score type and score value.",
			ConstLabels: labels,
		}, []string{"type", "score"}),
		ingests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "ingests_total",
			Help:        "Ingest runs by kind and outcome.",
			ConstLabels: labels,
		}, []string{"kind", "status"}),
		lastFinished: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "last_ingest_timestamp_seconds",
			Help:        "Unix time the last ingest of each kind finished.",
			ConstLabels: labels,
		}, []string{"kind"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "last_ingest_duration_seconds",
			Help:        "Wall time of the last ingest of each kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
	}
	r.reg.MustRegister(r.rowsInserted, r.samplesScored, r.sampleScores, r.ingests, r.lastFinished, r.duration)
	return r
}

// RowsInserted adds n to the inserted row count of table.
func (r *Run) RowsInserted(table schema.TableID, n int) {
	if r == nil || n == 0 {
		return
	}
	r.rowsInserted.WithLabelValues(string(table)).Add(float64(n))
}

// SampleScored records one sample's QC and NRO scores.
func (r *Run) SampleScored(qc, nro int) {
	if r == nil {
		return
	}
	r.samplesScored.Inc()
	r.sampleScores.WithLabelValues("qc", strconv.Itoa(qc)).Inc()
	r.sampleScores.WithLabelValues("nro", strconv.Itoa(nro)).Inc()
}

// IngestFinished records the outcome of an ingest of kind that ran from
// started to finished.
func (r *Run) IngestFinished(kind string, err error, started, finished time.Time) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.ingests.WithLabelValues(kind, status).Inc()
	r.lastFinished.WithLabelValues(kind).Set(float64(finished.Unix()))
	r.duration.WithLabelValues(kind).Set(finished.Sub(started).Seconds())
}

// WriteTextfile writes every metric to path atomically.
func (r *Run) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
