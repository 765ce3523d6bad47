package appstats

import (
	"net/http"
	"time"

	"github.com/meetline/meetline/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	Requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "meetline",
		Name:      "in_requests",
		Help:      "Number of API requests received",
	},
		[]string{
			"route",
		})

	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: "meetline",
		Name:      "request_duration_seconds",
		Help:      "API request duration",
		Buckets:   prometheus.DefBuckets,
	},
		[]string{
			"route",
		})

	Sessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Subsystem: "meetline",
		Name:      "call_sessions",
		Help:      "Current number of active call sessions",
	})

	AdmissionDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "meetline",
		Name:      "admission_decisions_total",
		Help:      "Host admission decisions by outcome",
	},
		[]string{
			"outcome", // admitted/declined/failed
		})

	RecordingUploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "meetline",
		Name:      "recording_uploads_total",
		Help:      "Recording artifact uploads by result",
	},
		[]string{
			"result", // ok/failed
		})

	CaptureErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "meetline",
		Name:      "recorder_capture_errors_total",
		Help:      "Capture failures swallowed by the recording adapter",
	})
)

func Init() {
	Sessions.Set(0)
}

func RegisterMetrics() {
	prometheus.MustRegister(Requests)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(Sessions)
	prometheus.MustRegister(AdmissionDecisions)
	prometheus.MustRegister(RecordingUploads)
	prometheus.MustRegister(CaptureErrors)
}

func OnAdmissionDecision(outcome string) {
	AdmissionDecisions.WithLabelValues(outcome).Inc()
}

func OnRecordingUpload(result string) {
	RecordingUploads.WithLabelValues(result).Inc()
}

func OnCaptureError() {
	CaptureErrors.Inc()
}

func ObserveRequest(route string, duration time.Duration) {
	Requests.WithLabelValues(route).Inc()
	RequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func ServePromMetrics(cfg config.Prometheus) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Infof("serving prometheus metrics on %s", cfg.ListenAddress)
		if err := http.ListenAndServe(cfg.ListenAddress, nil); err != nil {
			log.Errorf("prometheus listener failed: %v", err)
		}
	}()
}
