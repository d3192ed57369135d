package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "study_space_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	liveUpdates   *prometheus.CounterVec
	liveFailures  *prometheus.CounterVec
	modeSwitches  *prometheus.CounterVec
	nodeOnline    prometheus.Gauge
	liveAge       prometheus.Gauge
	historyTotal  *prometheus.CounterVec
	historyLat    *prometheus.HistogramVec
	historyStale  prometheus.Counter
	historyRows   prometheus.Gauge
	streamClients prometheus.Gauge
	exportTotal   *prometheus.CounterVec
	recorderTotal *prometheus.CounterVec
	mirrorTotal   *prometheus.CounterVec
)

// Init registers the dashboard metrics with the default registry. Calling it
// more than once is a no-op; observers are no-ops until it has run.
func Init() {
	registerOnce.Do(func() {
		liveUpdates = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "live_updates_total",
				Help: "Live readings applied by source mode",
			},
			[]string{"mode"},
		)
		liveFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "channel_failures_total",
				Help: "Recovered channel failures by component",
			},
			[]string{"component"},
		)
		modeSwitches = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "mode_switches_total",
				Help: "Live source activations by target mode",
			},
			[]string{"mode"},
		)
		nodeOnline = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "node_online",
				Help: "1 when the latest reading is fresh",
			},
		)
		liveAge = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "live_reading_age_seconds",
				Help: "Age of the current live reading",
			},
		)
		historyTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "history_fetch_total",
				Help: "History loads by result",
			},
			[]string{"result"},
		)
		historyLat = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "history_fetch_latency_seconds",
				Help:    "History load latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		historyStale = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "history_stale_results_total",
				Help: "History results discarded because a newer request superseded them",
			},
		)
		historyRows = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "history_window_rows",
				Help: "Rows in the committed history window",
			},
		)
		streamClients = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "stream_clients",
				Help: "Connected snapshot stream clients",
			},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "history_export_total",
				Help: "History exports by format and result",
			},
			[]string{"format", "result"},
		)
		recorderTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "recorder_writes_total",
				Help: "Recorder writes by kind and result",
			},
			[]string{"kind", "result"},
		)
		mirrorTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "mirror_messages_total",
				Help: "Live mirror publishes by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			liveUpdates,
			liveFailures,
			modeSwitches,
			nodeOnline,
			liveAge,
			historyTotal,
			historyLat,
			historyStale,
			historyRows,
			streamClients,
			exportTotal,
			recorderTotal,
			mirrorTotal,
		)
	})
}

func resultOf(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}

// IncLiveUpdate counts an applied live reading.
func IncLiveUpdate(mode string) {
	if mode == "" {
		mode = "unknown"
	}
	if liveUpdates != nil {
		liveUpdates.WithLabelValues(mode).Inc()
	}
}

// IncChannelFailure counts a recovered channel failure.
func IncChannelFailure(component string) {
	if component == "" {
		component = "unknown"
	}
	if liveFailures != nil {
		liveFailures.WithLabelValues(component).Inc()
	}
}

// IncModeSwitch counts a live source activation.
func IncModeSwitch(mode string) {
	if modeSwitches != nil {
		modeSwitches.WithLabelValues(mode).Inc()
	}
}

// SetOnline records the node freshness and the age of its latest reading.
// A zero updatedAt resets the age gauge.
func SetOnline(online bool, updatedAt, now time.Time) {
	if nodeOnline != nil {
		v := 0.0
		if online {
			v = 1
		}
		nodeOnline.Set(v)
	}
	if liveAge != nil {
		if updatedAt.IsZero() {
			liveAge.Set(0)
			return
		}
		liveAge.Set(max(0, now.Sub(updatedAt).Seconds()))
	}
}

// ObserveHistoryFetch records a committed history load.
func ObserveHistoryFetch(err error, rows int, duration time.Duration) {
	result := resultOf(err)
	if historyTotal != nil {
		historyTotal.WithLabelValues(result).Inc()
	}
	if historyLat != nil {
		historyLat.WithLabelValues(result).Observe(duration.Seconds())
	}
	if historyRows != nil {
		historyRows.Set(float64(rows))
	}
}

// IncHistoryStale counts a discarded stale history result.
func IncHistoryStale() {
	if historyStale != nil {
		historyStale.Inc()
	}
}

// AddStreamClients adjusts the connected stream client gauge by delta.
func AddStreamClients(delta int) {
	if streamClients != nil {
		streamClients.Add(float64(delta))
	}
}

// IncExport counts a history export.
func IncExport(format string, err error) {
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, resultOf(err)).Inc()
	}
}

// IncRecorderWrite counts a recorder write of kind "live" or "log".
func IncRecorderWrite(kind string, err error) {
	if recorderTotal != nil {
		recorderTotal.WithLabelValues(kind, resultOf(err)).Inc()
	}
}

// IncMirror counts a live mirror publish.
func IncMirror(err error) {
	if mirrorTotal != nil {
		mirrorTotal.WithLabelValues(resultOf(err)).Inc()
	}
}

// Exported result labels.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
