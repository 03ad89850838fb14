package signalbus

import (
	"github.com/forgeline/signalbus/internal/scheduler"
)

// AdapterStatus reports one signal adapter's health.
type AdapterStatus struct {
	Connected     bool   `json:"connected"`
	EventsEmitted uint64 `json:"events_emitted"`
	Error         string `json:"error,omitempty"`
}

// Status is a point-in-time snapshot of the broker.
type Status struct {
	Initialized     bool                     `json:"initialized"`
	State           string                   `json:"state"`
	Adapters        map[string]AdapterStatus `json:"adapters"`
	HistorySize     int                      `json:"history_size"`
	EventsRecorded  uint64                   `json:"events_recorded"`
	SubscriberCount int                      `json:"subscriber_count"`
	Scheduler       scheduler.Stats          `json:"scheduler"`
}

// SystemStatus reports broker state, per-adapter health, and counters. It is
// available in every lifecycle state.
func (m *manager) SystemStatus() Status {
	m.mu.RLock()
	state := m.state
	adapterErrs := make(map[string]string, len(m.adapterErrs))
	for name, err := range m.adapterErrs {
		adapterErrs[name] = err.Error()
	}
	m.mu.RUnlock()

	adapterStatus := make(map[string]AdapterStatus, len(m.adapters))
	for _, a := range m.adapters {
		adapterStatus[a.Name()] = AdapterStatus{
			Connected:     a.Connected(),
			EventsEmitted: a.EventsEmitted(),
			Error:         adapterErrs[a.Name()],
		}
	}

	return Status{
		Initialized:     state == StateReady,
		State:           string(state),
		Adapters:        adapterStatus,
		HistorySize:     m.router.HistorySize(),
		EventsRecorded:  m.router.Recorded(),
		SubscriberCount: m.registry.Count(),
		Scheduler:       m.scheduler.Stats(),
	}
}
