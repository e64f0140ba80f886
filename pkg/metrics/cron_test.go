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

func TestCronJobMetricsRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	job := "requirement-expiry-notice"
	finished := time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC)

	m.RecordRun(job, finished, 250*time.Millisecond, nil)
	m.RecordRun(job, finished.Add(time.Hour), time.Second, errors.New("db down"))
	m.RecordSkipped(job)
	m.RecordSkipped(job)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	for outcome, want := range map[string]float64{
		CronOutcomeSuccess: 1,
		CronOutcomeFailure: 1,
		CronOutcomeSkipped: 2,
	} {
		got, err := fetchCounter(mfs, "sourcing_cron_job_runs_total", map[string]string{"job": job, "outcome": outcome})
		require.NoError(t, err)
		assert.Equal(t, want, got, outcome)
	}

	sum, err := fetchHistogramSum(mfs, "sourcing_cron_job_duration_seconds", "job", job)
	require.NoError(t, err)
	assert.InDelta(t, 1.25, sum, 1e-9)

	gauge := findMetricFamily(mfs, "sourcing_cron_job_last_success_timestamp_seconds")
	require.NotNil(t, gauge)
	require.Len(t, gauge.GetMetric(), 1)
	assert.Equal(t, float64(finished.Unix()), gauge.GetMetric()[0].GetGauge().GetValue(), "failures must not move the last success")
}

func TestCronJobMetricsNilRegistererIsNoop(t *testing.T) {
	m := NewCronJobMetrics(nil)
	m.RecordRun("", time.Now(), time.Second, nil)
	m.RecordSkipped("")

	var nilMetrics *CronJobMetrics
	nilMetrics.RecordRun("job", time.Now(), time.Second, nil)
}

func fetchCounter(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		matched := true
		for k, v := range labels {
			if !matchesLabel(metric.GetLabel(), k, v) {
				matched = false
				break
			}
		}
		if matched {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
