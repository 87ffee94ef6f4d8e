// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/pv-reporter/internal/clock"
	"github.com/tamzrod/pv-reporter/internal/decoder"
	"github.com/tamzrod/pv-reporter/internal/metrics"
	"github.com/tamzrod/pv-reporter/internal/poller"
	"github.com/tamzrod/pv-reporter/internal/status"
	"github.com/tamzrod/pv-reporter/internal/weather"
	"github.com/tamzrod/pv-reporter/internal/writer"
	"github.com/tamzrod/pv-reporter/internal/writer/pvoutput"
)

// Source is the per-device read side.
type Source interface {
	Device() string
	PollOnce() poller.PollResult
	ReadVersion() (decoder.DeviceIdentity, error)
}

// Sink is the report side.
type Sink interface {
	Deliver(ctx context.Context, rep writer.Report) writer.Result
	DeliverOutput(ctx context.Context, device, target string, date time.Time, energyWh int64) pvoutput.Result
	Announce(device string, id decoder.DeviceIdentity)
}

// Weather refreshes conditions once per active cycle.
type Weather interface {
	Refresh(ctx context.Context) (weather.Observation, error)
}

// Device pairs one inverter with its reporting target.
type Device struct {
	Source Source
	Target string
	Status writer.StatusWriter // optional

	Health   status.Snapshot
	Identity decoder.DeviceIdentity

	// last good reading of the current day, for the daily output
	lastGood decoder.Reading
	hasGood  bool
}

// Name returns the configured device name.
func (d *Device) Name() string { return d.Source.Device() }

// Config is the scheduler config.
type Config struct {
	Window       Window
	Location     *time.Location
	RetryDelay   time.Duration // every device failed
	PartialDelay time.Duration // some devices failed
	DailyOutput  bool
}

// Scheduler runs the poll/report loop on a single goroutine.
type Scheduler struct {
	cfg     Config
	devices []*Device
	sink    Sink
	weather Weather
	metrics *metrics.Metrics
	log     logrus.FieldLogger
	now     clock.Now
	sleep   clock.Sleeper

	state     status.State
	wasActive bool
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

func WithClock(now clock.Now) Option { return func(s *Scheduler) { s.now = now } }

func WithSleeper(sl clock.Sleeper) Option { return func(s *Scheduler) { s.sleep = sl } }

func WithLogger(l logrus.FieldLogger) Option { return func(s *Scheduler) { s.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Scheduler) { s.metrics = m } }

// New builds a Scheduler. w may be nil when weather is disabled.
func New(cfg Config, devices []*Device, sink Sink, w Weather, opts ...Option) (*Scheduler, error) {
	if len(devices) == 0 {
		return nil, errors.New("scheduler: at least one device required")
	}
	if sink == nil {
		return nil, errors.New("scheduler: sink required")
	}
	if cfg.Window.Start < 0 || cfg.Window.Stop > 24 || cfg.Window.Start >= cfg.Window.Stop {
		return nil, errors.New("scheduler: invalid window")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Minute
	}
	if cfg.PartialDelay <= 0 {
		cfg.PartialDelay = cfg.RetryDelay
	}

	for _, d := range devices {
		d.Identity = decoder.SentinelIdentity()
	}

	s := &Scheduler{
		cfg:     cfg,
		devices: devices,
		sink:    sink,
		weather: w,
		log:     logrus.StandardLogger(),
		now:     time.Now,
		sleep:   clock.Sleep,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// State returns the state of the last evaluation.
func (s *Scheduler) State() status.State { return s.state }

// Run identifies every device once, then loops until ctx is done.
// The returned error is ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	s.Identify()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		d := s.Step(ctx)
		if err := s.sleep(ctx, d); err != nil {
			return err
		}
	}
}

// Identify reads the identity of every device. Failure is not fatal.
func (s *Scheduler) Identify() {
	for _, d := range s.devices {
		log := s.log.WithField("device", d.Name())

		id, err := d.Source.ReadVersion()
		d.Identity = id
		if err != nil {
			log.WithError(err).Warn("identity read failed")
			continue
		}

		log.WithFields(logrus.Fields{
			"firmware":         id.Firmware,
			"control_firmware": id.ControlFirmware,
			"serial":           id.SerialNumber,
			"model":            id.ModelCode,
			"device_type":      id.DeviceTypeCode,
		}).Info("inverter identified")
		s.sink.Announce(d.Name(), id)
	}
}

// Step evaluates the state once, does that state's work and returns how
// long to sleep before the next evaluation.
func (s *Scheduler) Step(ctx context.Context) time.Duration {
	now := s.localNow()

	if !s.cfg.Window.Active(now) {
		s.setState(status.StateAsleep)
		if s.wasActive {
			s.wasActive = false
			s.endOfDay(ctx)
		}

		wait := s.cfg.Window.UntilWindow(now)
		if wait <= 0 {
			wait = time.Minute
		}
		s.log.WithField("at", now.Format("2006-01-02 15:04")).
			Infof("Next shift starts in %d minutes", int(wait/time.Minute))
		return wait
	}

	s.wasActive = true
	ok, total := s.Cycle(ctx)

	switch {
	case ok == total:
		s.setState(status.StateActive)
		return UntilNextSlot(s.localNow())
	case ok == 0:
		s.setState(status.StateRetryBackoff)
		return s.cfg.RetryDelay
	default:
		s.setState(status.StateRetryBackoff)
		return s.cfg.PartialDelay
	}
}

// Cycle runs one active cycle: weather first, then every device in
// configured order. It returns how many devices were read successfully.
func (s *Scheduler) Cycle(ctx context.Context) (ok, total int) {
	obs := s.refreshWeather(ctx)

	for _, d := range s.devices {
		if ctx.Err() != nil {
			return ok, len(s.devices)
		}
		if s.pollDevice(ctx, d, obs) {
			ok++
		}
	}
	return ok, len(s.devices)
}

func (s *Scheduler) refreshWeather(ctx context.Context) weather.Observation {
	if s.weather == nil {
		return weather.Observation{}
	}
	obs, err := s.weather.Refresh(ctx)
	if err != nil {
		s.log.WithError(err).Warn("weather refresh failed")
	}
	s.metrics.SetWeatherFresh(obs.Fresh)
	return obs
}

func (s *Scheduler) pollDevice(ctx context.Context, d *Device, obs weather.Observation) bool {
	log := s.log.WithFields(logrus.Fields{"device": d.Name(), "target": d.Target})

	res := d.Source.PollOnce()
	s.metrics.ObserveRead(d.Name(), res.Reading, res.Err)

	if changed := d.Health.Observe(res.At, res.Err); changed {
		log.WithField("health", status.HealthText(d.Health.Health)).Info("device health changed")
	}
	if d.Status != nil {
		if err := d.Status.WriteStatus(d.Health, res.At); err != nil {
			log.WithError(err).Warn("health publish failed")
		}
	}

	if res.Err != nil {
		log.WithError(res.Err).WithField("failures", d.Health.ConsecutiveFailures).Warn("inverter read failed")
		return false
	}

	r := res.Reading
	log.WithFields(logrus.Fields{
		"status":       decoder.StatusText(r.Status),
		"pv_power":     r.PVPower,
		"ac_power":     r.ACPower,
		"energy_today": r.EnergyToday,
	}).Debug("inverter read")

	d.lastGood = r
	d.hasGood = true

	s.sink.Deliver(ctx, writer.Report{
		Device:  d.Name(),
		Target:  d.Target,
		Reading: r,
		Weather: obs,
	})
	return true
}

// endOfDay sends the daily total for every device read during the
// window that just closed.
func (s *Scheduler) endOfDay(ctx context.Context) {
	for _, d := range s.devices {
		if !d.hasGood {
			continue
		}
		d.hasGood = false
		if !s.cfg.DailyOutput {
			continue
		}
		s.sink.DeliverOutput(ctx, d.Name(), d.Target, d.lastGood.Timestamp, d.lastGood.EnergyToday)
	}
}

func (s *Scheduler) setState(st status.State) {
	if s.state != st {
		s.log.WithField("state", st.String()).Debug("scheduler state")
	}
	s.state = st
	s.metrics.SetSchedulerState(int(st))
}

func (s *Scheduler) localNow() time.Time {
	return s.now().In(s.cfg.Location)
}
