package metrics

// HTTP middleware adapted from github.com/zsais/go-gin-prometheus: route
// templates as url label, zap logging, no push gateway.

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const defaultMetricPath = "/metrics"

// Prometheus holds the HTTP collectors for one gin engine.
type Prometheus struct {
	reqCnt       *prometheus.CounterVec
	reqDur       *prometheus.HistogramVec
	reqSz, resSz *prometheus.SummaryVec

	MetricsPath string
	logger      *zap.SugaredLogger
}

type NewPrometheusOptions struct {
	Subsystem   string
	MetricsPath string
	Registerer  prometheus.Registerer
	Logger      *zap.SugaredLogger
}

func NewPrometheus(options NewPrometheusOptions) *Prometheus {
	labels := []string{"code", "method", "url"}
	p := &Prometheus{
		MetricsPath: options.MetricsPath,
		logger:      options.Logger,
		reqCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: options.Subsystem,
			Name:      "req_total",
			Help:      "How many HTTP requests processed, partitioned by status code and HTTP method.",
		}, labels),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: options.Subsystem,
			Name:      "req_dur_ms",
			Help:      "The HTTP request latencies in milliseconds.",
			Buckets:   HistogramBuckets,
		}, labels),
		reqSz: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Subsystem: options.Subsystem,
			Name:      "req_sz_bytes",
			Help:      "The HTTP request sizes in bytes.",
		}, labels),
		resSz: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Subsystem: options.Subsystem,
			Name:      "resp_sz_bytes",
			Help:      "The HTTP response sizes in bytes.",
		}, labels),
	}
	if p.MetricsPath == "" {
		p.MetricsPath = defaultMetricPath
	}
	if p.logger == nil {
		p.logger = zap.NewNop().Sugar()
	}
	reg := options.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{p.reqCnt, p.reqDur, p.reqSz, p.resSz} {
		if err := reg.Register(c); err != nil {
			p.logger.Errorw("metric could not be registered", "err", err)
		}
	}
	return p
}

// Use adds the middleware and the scrape endpoint to a gin engine.
func (p *Prometheus) Use(e *gin.Engine) {
	e.Use(p.HandlerFunc())
	e.GET(p.MetricsPath, gin.WrapH(promhttp.Handler()))
}

// Handler serves only the scrape endpoint, for a dedicated metrics listener.
func (p *Prometheus) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(p.MetricsPath, promhttp.Handler())
	return mux
}

// HandlerFunc defines handler function for middleware
func (p *Prometheus) HandlerFunc() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == p.MetricsPath {
			c.Next()
			return
		}

		start := time.Now()
		reqSz := computeApproximateRequestSize(c.Request)

		c.Next()

		// FullPath keeps label cardinality bounded to the registered routes.
		url := c.FullPath()
		if url == "" {
			url = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		p.reqDur.WithLabelValues(status, c.Request.Method, url).Observe(MillisecondsSince(start))
		p.reqCnt.WithLabelValues(status, c.Request.Method, url).Inc()
		p.reqSz.WithLabelValues(status, c.Request.Method, url).Observe(float64(reqSz))
		p.resSz.WithLabelValues(status, c.Request.Method, url).Observe(float64(c.Writer.Size()))
	}
}

// From https://github.com/DanielHeckrath/gin-prometheus/blob/master/gin_prometheus.go
func computeApproximateRequestSize(r *http.Request) int {
	s := 0
	if r.URL != nil {
		s = len(r.URL.Path)
	}

	s += len(r.Method)
	s += len(r.Proto)
	for name, values := range r.Header {
		s += len(name)
		for _, value := range values {
			s += len(value)
		}
	}
	s += len(r.Host)

	if r.ContentLength != -1 {
		s += int(r.ContentLength)
	}
	return s
}
