// internal/status/constants.go
package status

// ---- SCHEDULER STATES ----

// State is the polling scheduler state. Values are exported as a gauge.
type State int

const (
	// StateActive: local hour inside [start, stop).
	StateActive State = 1
	// StateAsleep: outside the active window.
	StateAsleep State = 2
	// StateRetryBackoff: a read failed inside the window; short delay before retrying.
	StateRetryBackoff State = 3
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateAsleep:
		return "asleep"
	case StateRetryBackoff:
		return "retry_backoff"
	default:
		return "unknown"
	}
}

// ---- HEALTH CODES ----

// HealthUnknown represents an unknown or boot state.
const HealthUnknown uint16 = 0

// HealthOK represents a device answering reads.
const HealthOK uint16 = 1

// HealthError represents a device failing reads.
const HealthError uint16 = 2

// HealthText is the label used when health is published.
func HealthText(h uint16) string {
	switch h {
	case HealthOK:
		return "ok"
	case HealthError:
		return "error"
	default:
		return "unknown"
	}
}
