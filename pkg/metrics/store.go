package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics records activity of the client-state stores.
type StoreMetrics struct {
	notifications *prometheus.CounterVec
	crossTab      *prometheus.CounterVec
	corruptReads  *prometheus.CounterVec
	writeFailures *prometheus.CounterVec
}

// NewStoreMetrics registers the store metrics on the provided registerer.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	if reg == nil {
		return &StoreMetrics{}
	}
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "store_notifications_total",
		Help: "Change notifications fired per store.",
	}, []string{"store"})
	crossTab := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "store_cross_tab_syncs_total",
		Help: "Cache reconciliations triggered by storage changes from another origin.",
	}, []string{"store"})
	corruptReads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storage_corrupt_reads_total",
		Help: "Persisted values discarded because they failed to decode or validate.",
	}, []string{"key"})
	writeFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storage_write_failures_total",
		Help: "Writes the storage backend rejected.",
	}, []string{"key"})
	reg.MustRegister(notifications, crossTab, corruptReads, writeFailures)
	return &StoreMetrics{
		notifications: notifications,
		crossTab:      crossTab,
		corruptReads:  corruptReads,
		writeFailures: writeFailures,
	}
}

// IncNotification counts a change notification for the named store.
func (m *StoreMetrics) IncNotification(store string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(normalizeLabel(store)).Inc()
}

// IncCrossTabSync counts a reconciliation caused by another origin.
func (m *StoreMetrics) IncCrossTabSync(store string) {
	if m == nil || m.crossTab == nil {
		return
	}
	m.crossTab.WithLabelValues(normalizeLabel(store)).Inc()
}

// IncCorruptRead counts a discarded persisted value.
func (m *StoreMetrics) IncCorruptRead(key string) {
	if m == nil || m.corruptReads == nil {
		return
	}
	m.corruptReads.WithLabelValues(normalizeLabel(key)).Inc()
}

// IncWriteFailure counts a rejected write.
func (m *StoreMetrics) IncWriteFailure(key string) {
	if m == nil || m.writeFailures == nil {
		return
	}
	m.writeFailures.WithLabelValues(normalizeLabel(key)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
