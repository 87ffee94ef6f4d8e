// internal/status/snapshot.go
package status

import "time"

// Snapshot is the per-device health state carried across cycles.
// It holds no memory of the past beyond the current streak.
type Snapshot struct {
	Health              uint16
	ConsecutiveFailures int
	LastError           string
	LastSuccess         time.Time
	ErrorSince          time.Time
}

// Observe folds one read outcome into the snapshot.
// It returns true when Health changed (recovery or new failure streak).
func (s *Snapshot) Observe(at time.Time, err error) bool {
	if err == nil {
		changed := s.Health != HealthOK
		s.Health = HealthOK
		s.ConsecutiveFailures = 0
		s.LastError = ""
		s.ErrorSince = time.Time{}
		s.LastSuccess = at
		return changed
	}

	changed := s.Health != HealthError
	if changed {
		s.ErrorSince = at
	}
	s.Health = HealthError
	s.ConsecutiveFailures++
	s.LastError = err.Error()
	return changed
}

// SecondsInError is how long the current failure streak has lasted.
// Zero when healthy.
func (s Snapshot) SecondsInError(now time.Time) int {
	if s.Health != HealthError || s.ErrorSince.IsZero() {
		return 0
	}
	return int(now.Sub(s.ErrorSince) / time.Second)
}
