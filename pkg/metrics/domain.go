package metrics

import "github.com/prometheus/client_golang/prometheus"

// Device and OTP event names.
const (
	EventDeviceCreated       = "device_created"
	EventDeviceClaimed       = "device_claimed"
	EventDeviceClaimConflict = "device_claim_conflict"
	EventDeviceReassigned    = "device_reassigned"
	EventDeviceDeleted       = "device_deleted"
	EventBulkUnitCreated     = "bulk_unit_created"
	EventBulkUnitFailed      = "bulk_unit_failed"
	EventShareCreated        = "share_created"
	EventShareRevoked        = "share_revoked"
	EventOTPRequested        = "otp_requested"
	EventOTPVerified         = "otp_verified"
	EventOTPRejected         = "otp_rejected"
	EventSMSQueueRejected    = "sms_queue_rejected"
)

// DomainMetrics counts business events. A nil receiver is a no-op so
// services can run without a registry in tests.
type DomainMetrics struct {
	events *prometheus.CounterVec
}

func NewDomainMetrics(reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		return &DomainMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "domain_events_total",
		Help:      "Device, sharing and OTP events.",
	}, []string{"event"})
	reg.MustRegister(events)
	return &DomainMetrics{events: events}
}

func (d *DomainMetrics) Inc(event string) {
	d.Add(event, 1)
}

func (d *DomainMetrics) Add(event string, n int) {
	if d == nil || d.events == nil || n <= 0 {
		return
	}
	d.events.WithLabelValues(normalizeLabel(event)).Add(float64(n))
}
