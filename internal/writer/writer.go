// internal/writer/writer.go
package writer

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/pv-reporter/internal/decoder"
	"github.com/tamzrod/pv-reporter/internal/writer/pvoutput"
)

// Writer fans a report out to the monitoring service and, when
// configured, the MQTT mirror.
type Writer struct {
	reporter reporter
	mirror   mirror
	log      logrus.FieldLogger
}

// New builds a Writer. m may be nil.
func New(r reporter, m mirror, logger logrus.FieldLogger) (*Writer, error) {
	if r == nil {
		return nil, errors.New("writer: reporter required")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Writer{reporter: r, mirror: m, log: logger}, nil
}

// Deliver sends one report. The monitoring service goes first; the
// mirror sees the reading whatever the service outcome was.
func (w *Writer) Deliver(ctx context.Context, rep Report) Result {
	var out Result

	out.Status = w.reporter.SendStatus(ctx, rep.Target, rep.Reading, rep.Weather)

	if w.mirror != nil {
		if err := w.mirror.PublishReading(rep.Device, rep.Target, rep.Reading); err != nil {
			out.MirrorErr = err
			w.log.WithError(err).WithField("device", rep.Device).Warn("mqtt mirror failed")
		}
	}
	return out
}

// DeliverOutput sends the end-of-day generation total for one device.
func (w *Writer) DeliverOutput(ctx context.Context, device, target string, date time.Time, energyWh int64) pvoutput.Result {
	res := w.reporter.SendOutput(ctx, target, date, energyWh, "")
	if res.Delivered {
		w.log.WithFields(logrus.Fields{
			"device":    device,
			"target":    target,
			"energy_wh": energyWh,
			"date":      date.Format("2006-01-02"),
		}).Info("daily output reported")
	}
	return res
}

// Announce mirrors a device identity. Nothing is sent to the monitoring
// service.
func (w *Writer) Announce(device string, id decoder.DeviceIdentity) {
	if w.mirror == nil {
		return
	}
	if err := w.mirror.PublishIdentity(device, id); err != nil {
		w.log.WithError(err).WithField("device", device).Warn("mqtt identity publish failed")
	}
}

// StatusWriter returns the health writer for one device, or nil when no
// mirror is configured.
func (w *Writer) StatusWriter(device string) StatusWriter {
	if w.mirror == nil {
		return nil
	}
	return NewDeviceStatusWriter(device, w.mirror)
}

// Close releases the mirror connection.
func (w *Writer) Close() error {
	if w.mirror == nil {
		return nil
	}
	return w.mirror.Close()
}
