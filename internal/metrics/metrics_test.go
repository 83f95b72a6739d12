package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestNew_NilRegistryDoesNotRegister(t *testing.T) {
	m := New(nil)
	require.NotNil(t, m)
	require.False(t, m.registered)

	// Methods must tolerate being called even though nothing was registered.
	m.ObserveRequest("meta", time.Millisecond, nil)
	m.SetWorkersActive(3)
}

func TestNew_RegistersAgainstRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	require.True(t, m.registered)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestObserveRequest_LabelsStatusByError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRequest("applyChanges", 10*time.Millisecond, nil)
	m.ObserveRequest("applyChanges", 5*time.Millisecond, errors.New("boom"))

	require.Equal(t, float64(1), counterValue(t, reg, "ankisyncd_sync_requests_total",
		map[string]string{LabelOperation: "applyChanges", LabelStatus: StatusOK}))
	require.Equal(t, float64(1), counterValue(t, reg, "ankisyncd_sync_requests_total",
		map[string]string{LabelOperation: "applyChanges", LabelStatus: StatusError}))
}

func TestObserveMediaTransfer_AccumulatesByKind(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveMediaTransfer(KindUpload, 3, 1024)
	m.ObserveMediaTransfer(KindUpload, 2, 512)
	m.ObserveMediaTransfer(KindDownload, 1, 256)

	require.Equal(t, float64(5), counterValue(t, reg, "ankisyncd_media_files_total",
		map[string]string{LabelKind: KindUpload}))
	require.Equal(t, float64(1536), counterValue(t, reg, "ankisyncd_media_bytes_total",
		map[string]string{LabelKind: KindUpload}))
	require.Equal(t, float64(1), counterValue(t, reg, "ankisyncd_media_files_total",
		map[string]string{LabelKind: KindDownload}))
}

func TestNilMetrics_MethodsAreNoOps(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveRequest("meta", time.Millisecond, nil)
		m.SetWorkerQueueDepth("alice", 4)
		m.SetWorkersActive(1)
		m.SetSessionsActive(2)
		m.ObserveMediaTransfer(KindUpload, 1, 10)
	})
}

// counterValue locates a gathered metric family/labels combination and
// returns its counter value, failing the test if not found.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if labelsMatch(metric.GetLabel(), labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}

	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, p := range pairs {
		if want[p.GetName()] != p.GetValue() {
			return false
		}
	}
	return true
}
