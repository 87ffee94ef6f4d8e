// internal/writer/status_writer.go
package writer

import (
	"errors"
	"fmt"
	"time"

	"github.com/tamzrod/pv-reporter/internal/status"
)

// StatusWriter is the delivery-only contract for device health.
// It receives a snapshot and publishes it verbatim.
type StatusWriter interface {
	WriteStatus(s status.Snapshot, now time.Time) error
}

// healthSink is the part of the mirror the status writer needs.
type healthSink interface {
	PublishHealth(device string, s status.Snapshot, secondsInError int) error
}

// deviceStatusWriter publishes one device's health to the mirror.
// Only transitions are published; after a failed publish the next call
// re-asserts unconditionally.
type deviceStatusWriter struct {
	device string
	sink   healthSink

	needFull bool
	last     status.Snapshot
}

// NewDeviceStatusWriter builds a status writer for one device.
func NewDeviceStatusWriter(device string, sink healthSink) *deviceStatusWriter {
	return &deviceStatusWriter{
		device:   device,
		sink:     sink,
		needFull: true, // first write always goes out
		last:     status.Snapshot{Health: status.HealthUnknown},
	}
}

// WriteStatus publishes s when it differs from what was last published.
func (sw *deviceStatusWriter) WriteStatus(s status.Snapshot, now time.Time) error {
	if sw == nil || sw.sink == nil {
		return errors.New("status writer: disabled")
	}

	if !sw.needFull && !sw.changed(s) {
		return nil
	}

	if err := sw.sink.PublishHealth(sw.device, s, s.SecondsInError(now)); err != nil {
		sw.needFull = true
		return fmt.Errorf("status writer: %s: %w", sw.device, err)
	}

	sw.needFull = false
	sw.last = s
	return nil
}

func (sw *deviceStatusWriter) changed(s status.Snapshot) bool {
	return sw.last.Health != s.Health ||
		sw.last.LastError != s.LastError
}
