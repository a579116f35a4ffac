package models

// HealthStatus is OK, DEGRADED or FAIL, in increasing severity.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

func (s HealthStatus) severity() int {
	switch s {
	case HealthStatusFail:
		return 2
	case HealthStatusDegraded:
		return 1
	default:
		return 0
	}
}

// Worse returns the more severe of s and other.
func (s HealthStatus) Worse(other HealthStatus) HealthStatus {
	if other.severity() > s.severity() {
		return other
	}
	return s
}

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus   `json:"status"`
	Time    Timestamp      `json:"time"`
	Details map[string]any `json:"details,omitempty"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status     HealthStatus      `json:"status"`
	Time       Timestamp         `json:"time"`
	Subsystems []SubsystemStatus `json:"subsystems"`
	Sources    []SourceStatus    `json:"sources"`

	// ActiveDegradationFlags lists the runtime switches currently reducing
	// what refreshes fetch.
	ActiveDegradationFlags []string `json:"activeDegradationFlags,omitempty"`
}

// SubsystemStatus represents the status of a subsystem.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// SourceStatus represents the health of one weather source.
type SourceStatus struct {
	Source              string       `json:"source"`
	Status              HealthStatus `json:"status"`
	CircuitState        string       `json:"circuitState"`
	Requests            uint32       `json:"requests"`
	ConsecutiveFailures uint32       `json:"consecutiveFailures"`
	TotalFailures       uint64       `json:"totalFailures"`
	LastSuccessAt       *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *Timestamp   `json:"lastFailureAt,omitempty"`
	Message             *string      `json:"message,omitempty"`
}
