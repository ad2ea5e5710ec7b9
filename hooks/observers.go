package hooks

import (
	"sync"

	"github.com/openann19/petphotos/core"
)

// LoggingObserver logs every slot change.
type LoggingObserver struct {
	logger core.Logger
}

// NewLoggingObserver creates a LoggingObserver.
func NewLoggingObserver(l core.Logger) *LoggingObserver { return &LoggingObserver{logger: l} }

func (o *LoggingObserver) SlotChanged(s core.PhotoSlot) {
	fields := []interface{}{
		"slot", s.ID,
		"status", s.Status,
		"progress", s.Progress,
		"primary", s.IsPrimary,
	}
	switch s.Status {
	case core.StatusUploading:
		o.logger.Debug("slot.progress", fields...)
	case core.StatusError, core.StatusRejected:
		o.logger.Warn("slot.resolved", append(fields, "message", s.ErrorMessage)...)
	case core.StatusDuplicate:
		o.logger.Info("slot.resolved", append(fields, "duplicate_of", s.DuplicateOfID, "confidence", s.DuplicateConfidence)...)
	default:
		o.logger.Info("slot.resolved", append(fields, "upload_id", s.UploadID)...)
	}
}

// MetricsObserver records each slot's terminal outcome once; later changes
// to a resolved slot (primary moves, preview release) are not outcomes.
type MetricsObserver struct {
	collector core.MetricsCollector

	mu       sync.Mutex
	resolved map[string]struct{}
}

// NewMetricsObserver creates a MetricsObserver.
func NewMetricsObserver(c core.MetricsCollector) *MetricsObserver {
	return &MetricsObserver{collector: c, resolved: make(map[string]struct{})}
}

func (o *MetricsObserver) SlotChanged(s core.PhotoSlot) {
	if !s.IsTerminal() {
		return
	}
	o.mu.Lock()
	_, seen := o.resolved[s.ID]
	o.resolved[s.ID] = struct{}{}
	o.mu.Unlock()
	if !seen {
		o.collector.RecordOutcome(s.Status)
	}
}

var (
	_ core.SlotObserver = (*LoggingObserver)(nil)
	_ core.SlotObserver = (*MetricsObserver)(nil)
)
