package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobMetricsRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJobMetrics(reg)
	m.now = func() time.Time { return time.Unix(1_772_000_000, 0) }

	m.ObserveRun("scan_retention", 250*time.Millisecond, nil)
	m.ObserveRun("scan_retention", time.Second, errors.New("db gone"))
	m.ObserveRun("", time.Millisecond, nil)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	success, err := fetchCounterValue(mfs, "bintrack_job_runs_total", map[string]string{"job": "scan_retention", "outcome": "success"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, success)

	failure, err := fetchCounterValue(mfs, "bintrack_job_runs_total", map[string]string{"job": "scan_retention", "outcome": "failure"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, failure)

	_, err = fetchCounterValue(mfs, "bintrack_job_runs_total", map[string]string{"job": "unknown", "outcome": "success"})
	require.NoError(t, err)

	mf := findMetricFamily(mfs, "bintrack_job_last_success_timestamp_seconds")
	require.NotNil(t, mf)
	assert.Equal(t, 1_772_000_000.0, mf.GetMetric()[0].GetGauge().GetValue())

	hist := findMetricFamily(mfs, "bintrack_job_duration_seconds")
	require.NotNil(t, hist)
	for _, metric := range hist.GetMetric() {
		if matchesLabels(metric.GetLabel(), map[string]string{"job": "scan_retention"}) {
			assert.Equal(t, uint64(2), metric.GetHistogram().GetSampleCount())
		}
	}
}

func TestJobMetricsNilSafe(t *testing.T) {
	var m *JobMetrics
	m.ObserveRun("x", time.Second, nil)
	NewJobMetrics(nil).ObserveRun("x", time.Second, errors.New("boom"))
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok {
			if v != pair.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(want)
}
