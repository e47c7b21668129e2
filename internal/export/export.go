// Package export exposes a monitoring tree and its pipeline counters as
// Prometheus metrics.
package export

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/crimson-sun/vigil/internal/counter"
	"github.com/crimson-sun/vigil/internal/monitor"
)

// Tree is the part of a monitor.Module the collector reads.
type Tree interface {
	Machine() string
	Name() string
	Walk(fn func(path string, n *monitor.Node))
	Stats() monitor.Stats
}

// Option configures a Collector.
type Option func(*Collector)

// WithNamespace sets the metric name prefix. Default: "vigil".
func WithNamespace(ns string) Option {
	return func(c *Collector) { c.namespace = ns }
}

// Collector implements prometheus.Collector. Every scrape walks the tree,
// so the values are those of the last updater pass.
type Collector struct {
	tree      Tree
	namespace string

	counterValue *prometheus.Desc
	counterInfo  *prometheus.Desc
	queueEvents  *prometheus.Desc
	queuePending *prometheus.Desc
	dispatched   *prometheus.Desc
	failures     *prometheus.Desc
	dedupEntries *prometheus.Desc
	nodes        *prometheus.Desc
}

// New creates a Collector over tree.
func New(tree Tree, opts ...Option) *Collector {
	c := &Collector{tree: tree, namespace: "vigil"}
	for _, opt := range opts {
		opt(c)
	}
	labels := prometheus.Labels{"machine": tree.Machine(), "module": tree.Name()}
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(c.namespace, "", name), help, variable, labels)
	}
	c.counterValue = desc("counter_value", "Displayed value of a numeric counter.", "path", "counter", "type")
	c.counterInfo = desc("counter_info", "String counter; the value is carried in a label.", "path", "counter", "value")
	c.queueEvents = desc("queue_events_total", "Events through the queue by outcome.", "outcome")
	c.queuePending = desc("queue_pending", "Events waiting in the queue.")
	c.dispatched = desc("dispatch_total", "Successful deliveries by channel.", "channel")
	c.failures = desc("dispatch_failures_total", "Events with at least one failed delivery.")
	c.dedupEntries = desc("dedup_entries", "Live dedup cache entries.")
	c.nodes = desc("nodes", "Nodes in the arena, detached ones included.")
	return c
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.counterValue
	ch <- c.counterInfo
	ch <- c.queueEvents
	ch <- c.queuePending
	ch <- c.dispatched
	ch <- c.failures
	ch <- c.dedupEntries
	ch <- c.nodes
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.tree.Walk(func(path string, n *monitor.Node) {
		for _, ctr := range n.Counters() {
			switch v := ctr.(type) {
			case counter.Numeric:
				ch <- constMetric(c.counterValue, v.Value(), path, v.Name(), v.Type().String())
			case counter.Textual:
				ch <- constMetric(c.counterInfo, 1, path, v.Name(), v.Value())
			}
		}
	})

	s := c.tree.Stats()
	ch <- prometheus.MustNewConstMetric(c.queueEvents, prometheus.CounterValue, float64(s.Queue.Enqueued), "enqueued")
	ch <- prometheus.MustNewConstMetric(c.queueEvents, prometheus.CounterValue, float64(s.Queue.Processed), "processed")
	ch <- prometheus.MustNewConstMetric(c.queueEvents, prometheus.CounterValue, float64(s.Queue.Failed), "failed")
	ch <- prometheus.MustNewConstMetric(c.queuePending, prometheus.GaugeValue, float64(s.Queue.Pending))
	ch <- prometheus.MustNewConstMetric(c.dispatched, prometheus.CounterValue, float64(s.Dispatch.Stored), "store")
	ch <- prometheus.MustNewConstMetric(c.dispatched, prometheus.CounterValue, float64(s.Dispatch.Notified), "notify")
	ch <- prometheus.MustNewConstMetric(c.dispatched, prometheus.CounterValue, float64(s.Dispatch.Emailed), "email")
	ch <- prometheus.MustNewConstMetric(c.dispatched, prometheus.CounterValue, float64(s.Dispatch.Texted), "sms")
	ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(s.Dispatch.Failures))
	ch <- prometheus.MustNewConstMetric(c.dedupEntries, prometheus.GaugeValue, float64(s.DedupEntries))
	ch <- prometheus.MustNewConstMetric(c.nodes, prometheus.GaugeValue, float64(s.Nodes))
}

// constMetric builds a gauge from caller-supplied label values. Invalid
// UTF-8 is replaced so a bad counter value cannot fail the scrape.
func constMetric(desc *prometheus.Desc, value float64, labels ...string) prometheus.Metric {
	for i, l := range labels {
		labels[i] = strings.ToValidUTF8(l, "\uFFFD")
	}
	m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, value, labels...)
	if err != nil {
		return prometheus.NewInvalidMetric(desc, err)
	}
	return m
}
