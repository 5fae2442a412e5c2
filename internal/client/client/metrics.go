package client

import (
	"regexp"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Refresh outcomes recorded in Metrics.Refreshes.
const (
	RefreshSucceeded = "success"
	RefreshFailed    = "failure"
	RefreshReused    = "reused"
)

var idSegment = regexp.MustCompile(`/\d+/`)

// Metrics counts pipeline activity. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	Requests  *prometheus.CounterVec
	Refreshes *prometheus.CounterVec
	Redirects prometheus.Counter
}

// NewMetrics creates the pipeline counters and registers them with reg when
// reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "talentdir",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Outbound API requests by endpoint template and status code.",
		}, []string{"method", "endpoint", "code"}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "talentdir",
			Subsystem: "client",
			Name:      "token_refreshes_total",
			Help:      "Access token refresh attempts by result.",
		}, []string{"result"}),
		Redirects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "talentdir",
			Subsystem: "client",
			Name:      "login_redirects_total",
			Help:      "Sessions terminated with a redirect to login.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.Refreshes, m.Redirects)
	}
	return m
}

func (m *Metrics) request(method, path string, code int) {
	if m == nil {
		return
	}
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	m.Requests.WithLabelValues(method, endpointTemplate(path), label).Inc()
}

func (m *Metrics) refresh(result string) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) redirect() {
	if m == nil {
		return
	}
	m.Redirects.Inc()
}

// endpointTemplate collapses numeric path segments so label cardinality
// stays bounded: /mahasiswa/12/view/ -> /mahasiswa/{id}/view/.
func endpointTemplate(path string) string {
	// applied twice because adjacent matches share the slash
	p := idSegment.ReplaceAllString(path, "/{id}/")
	return idSegment.ReplaceAllString(p, "/{id}/")
}
