package metrics

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMetrics(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Metrics Suite")
}

func getCounterValue(counter prometheus.Counter) float64 {
	metric := &dto.Metric{}
	if err := counter.Write(metric); err != nil {
		return 0
	}
	return metric.GetCounter().GetValue()
}

func getCounterVecValue(vec *prometheus.CounterVec, labels ...string) float64 {
	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0
	}
	return getCounterValue(counter)
}

var _ = Describe("Metrics", func() {
	var m *Metrics

	BeforeEach(func() {
		m = NewMetricsWithRegistry(prometheus.NewRegistry())
	})

	It("starts every counter at zero", func() {
		Expect(getCounterValue(m.SignalsStored)).To(Equal(0.0))
		Expect(getCounterValue(m.SourcesScheduled)).To(Equal(0.0))
		Expect(getCounterValue(m.ExtractionsFailed)).To(Equal(0.0))
	})

	It("increments SignalsStored independently of SignalsDeduplicated", func() {
		m.SignalsStored.Inc()
		m.SignalsDeduplicated.WithLabelValues("refresh").Inc()

		Expect(getCounterValue(m.SignalsStored)).To(Equal(1.0))
		Expect(getCounterVecValue(m.SignalsDeduplicated, "refresh")).To(Equal(1.0))
		Expect(getCounterVecValue(m.SignalsDeduplicated, "corroborate")).To(Equal(0.0))
	})

	It("tracks skip reasons separately on SourcesSkipped", func() {
		m.SourcesSkipped.WithLabelValues("robots_disallowed").Inc()
		m.SourcesSkipped.WithLabelValues("robots_disallowed").Inc()
		m.SourcesSkipped.WithLabelValues("rate_limited").Inc()

		Expect(getCounterVecValue(m.SourcesSkipped, "robots_disallowed")).To(Equal(2.0))
		Expect(getCounterVecValue(m.SourcesSkipped, "rate_limited")).To(Equal(1.0))
	})

	It("panics when two Metrics instances share a registry (duplicate registration)", func() {
		reg := prometheus.NewRegistry()
		NewMetricsWithRegistry(reg)
		Expect(func() { NewMetricsWithRegistry(reg) }).To(Panic())
	})
})
