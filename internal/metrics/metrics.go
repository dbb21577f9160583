package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FramesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "feed_frames_total", Help: "Count of raw frames received from the news feed"},
	)
	FramesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "feed_frames_dropped_total", Help: "Frames dropped per pipeline stage"},
		[]string{"stage"},
	)
	ItemsTagged = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "items_tagged_total", Help: "Items successfully tagged"},
	)
	TaggingFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "tagging_failures_total", Help: "Items dropped by the tagger"},
	)
	PublishTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "bus_publish_total", Help: "Publish calls on the fan-out bus"},
	)
	FanoutCallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "bus_fanout_callbacks_total", Help: "Unique subscriber callbacks invoked"},
	)
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "agent_decisions_total", Help: "Agent decisions by action"},
		[]string{"action"},
	)
	ConnectedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "broadcast_clients", Help: "Currently connected broadcast clients"},
	)
)

func init() {
	prometheus.MustRegister(
		FramesTotal, FramesDropped, ItemsTagged, TaggingFailures,
		PublishTotal, FanoutCallbacks, DecisionsTotal, ConnectedClients,
	)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
