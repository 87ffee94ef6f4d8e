// internal/writer/types.go
package writer

import (
	"context"
	"time"

	"github.com/tamzrod/pv-reporter/internal/decoder"
	"github.com/tamzrod/pv-reporter/internal/status"
	"github.com/tamzrod/pv-reporter/internal/weather"
	"github.com/tamzrod/pv-reporter/internal/writer/pvoutput"
)

// Report is one successful reading on its way to the sinks.
type Report struct {
	Device  string
	Target  string
	Reading decoder.Reading
	Weather weather.Observation
}

// Result combines the reporting outcome with the optional mirror outcome.
// MirrorErr never affects Status.
type Result struct {
	Status    pvoutput.Result
	MirrorErr error
}

// reporter is the exact contract the writer uses for the monitoring service.
type reporter interface {
	SendStatus(ctx context.Context, target string, r decoder.Reading, w weather.Observation) pvoutput.Result
	SendOutput(ctx context.Context, target string, date time.Time, energyWh int64, comment string) pvoutput.Result
}

// mirror is the optional broker sink.
type mirror interface {
	PublishReading(device, target string, r decoder.Reading) error
	PublishIdentity(device string, id decoder.DeviceIdentity) error
	PublishHealth(device string, s status.Snapshot, secondsInError int) error
	Close() error
}
