// internal/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/pv-reporter/internal/decoder"
	"github.com/tamzrod/pv-reporter/internal/fault"
	"github.com/tamzrod/pv-reporter/internal/poller"
	"github.com/tamzrod/pv-reporter/internal/status"
	"github.com/tamzrod/pv-reporter/internal/weather"
	"github.com/tamzrod/pv-reporter/internal/writer"
	"github.com/tamzrod/pv-reporter/internal/writer/pvoutput"
)

// ---- fakes ----

type fakeSource struct {
	name    string
	fail    bool
	energy  int64
	polls   int
	idErr   error
	clockFn func() time.Time
}

func (f *fakeSource) Device() string { return f.name }

func (f *fakeSource) PollOnce() poller.PollResult {
	f.polls++
	now := f.clockFn()
	if f.fail {
		return poller.PollResult{
			Device:  f.name,
			At:      now,
			Reading: decoder.SentinelReading(now),
			Err:     fault.New(fault.Transport, f.name, errors.New("timeout")),
		}
	}
	return poller.PollResult{
		Device:  f.name,
		At:      now,
		Reading: decoder.Reading{Timestamp: now, Status: 1, EnergyToday: f.energy},
	}
}

func (f *fakeSource) ReadVersion() (decoder.DeviceIdentity, error) {
	if f.idErr != nil {
		return decoder.SentinelIdentity(), f.idErr
	}
	return decoder.DeviceIdentity{SerialNumber: "SN-" + f.name, DeviceTypeCode: 134}, nil
}

type outputCall struct {
	device string
	energy int64
}

type fakeSink struct {
	reports   []writer.Report
	outputs   []outputCall
	announced []string
}

func (f *fakeSink) Deliver(_ context.Context, rep writer.Report) writer.Result {
	f.reports = append(f.reports, rep)
	return writer.Result{Status: pvoutput.Result{Target: rep.Target, Attempts: 1, Delivered: true}}
}

func (f *fakeSink) DeliverOutput(_ context.Context, device, target string, _ time.Time, energyWh int64) pvoutput.Result {
	f.outputs = append(f.outputs, outputCall{device: device, energy: energyWh})
	return pvoutput.Result{Target: target, Attempts: 1, Delivered: true}
}

func (f *fakeSink) Announce(device string, _ decoder.DeviceIdentity) {
	f.announced = append(f.announced, device)
}

type fakeWeather struct {
	err   error
	calls int
}

func (f *fakeWeather) Refresh(context.Context) (weather.Observation, error) {
	f.calls++
	if f.err != nil {
		return weather.Observation{}, f.err
	}
	return weather.Observation{Temperature: 17.5, Description: "clear sky", Fresh: true}, nil
}

// settableClock is a wall clock tests move by hand.
type settableClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *settableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *settableClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type harness struct {
	sched   *Scheduler
	sink    *fakeSink
	weather *fakeWeather
	clock   *settableClock
	sources []*fakeSource
	hook    *test.Hook
}

func newHarness(t *testing.T, daily bool, sources ...*fakeSource) *harness {
	t.Helper()

	clk := &settableClock{now: at(10, 7, 12)}
	logger, hook := test.NewNullLogger()
	sink := &fakeSink{}
	w := &fakeWeather{}

	var devices []*Device
	for _, src := range sources {
		src.clockFn = clk.Now
		devices = append(devices, &Device{Source: src, Target: "sys-" + src.name})
	}

	s, err := New(Config{
		Window:       Window{Start: 5, Stop: 21},
		Location:     time.UTC,
		RetryDelay:   60 * time.Second,
		PartialDelay: 45 * time.Second,
		DailyOutput:  daily,
	}, devices, sink, w, WithClock(clk.Now), WithLogger(logger))
	require.NoError(t, err)

	return &harness{sched: s, sink: sink, weather: w, clock: clk, sources: sources, hook: hook}
}

// ---- tests ----

func TestStep_AllDevicesReported(t *testing.T) {
	h := newHarness(t, false, &fakeSource{name: "a", energy: 500}, &fakeSource{name: "b", energy: 700})

	wait := h.sched.Step(context.Background())

	assert.Equal(t, 168*time.Second, wait)
	assert.Equal(t, status.StateActive, h.sched.State())
	assert.Equal(t, 1, h.weather.calls)

	require.Len(t, h.sink.reports, 2)
	assert.Equal(t, "a", h.sink.reports[0].Device, "devices run in configured order")
	assert.Equal(t, "sys-a", h.sink.reports[0].Target)
	assert.Equal(t, "b", h.sink.reports[1].Device)
	assert.True(t, h.sink.reports[0].Weather.Fresh)
}

func TestStep_PartialFailure(t *testing.T) {
	h := newHarness(t, false, &fakeSource{name: "a", fail: true}, &fakeSource{name: "b", energy: 700})

	wait := h.sched.Step(context.Background())

	assert.Equal(t, 45*time.Second, wait)
	assert.Equal(t, status.StateRetryBackoff, h.sched.State())
	require.Len(t, h.sink.reports, 1, "a failed device does not stop the others")
	assert.Equal(t, "b", h.sink.reports[0].Device)

	devs := h.sched.devices
	assert.Equal(t, status.HealthError, devs[0].Health.Health)
	assert.Equal(t, 1, devs[0].Health.ConsecutiveFailures)
	assert.Equal(t, status.HealthOK, devs[1].Health.Health)
}

func TestStep_AllFailed(t *testing.T) {
	h := newHarness(t, false, &fakeSource{name: "a", fail: true})

	wait := h.sched.Step(context.Background())

	assert.Equal(t, 60*time.Second, wait)
	assert.Equal(t, status.StateRetryBackoff, h.sched.State())
	assert.Empty(t, h.sink.reports)
	assert.Equal(t, 1, h.weather.calls, "weather is refreshed before the read fails")
	assert.Equal(t, 1, h.sources[0].polls)
}

func TestStep_StaleWeatherStillReports(t *testing.T) {
	h := newHarness(t, false, &fakeSource{name: "a", energy: 500})
	h.weather.err = fault.New(fault.Weather, "", errors.New("dns"))

	h.sched.Step(context.Background())

	require.Len(t, h.sink.reports, 1)
	assert.False(t, h.sink.reports[0].Weather.Fresh)
}

func TestStep_Asleep(t *testing.T) {
	src := &fakeSource{name: "a"}
	h := newHarness(t, false, src)
	h.clock.Set(at(22, 15, 0))

	wait := h.sched.Step(context.Background())

	assert.Equal(t, time.Duration((5-22+24)*60-15)*time.Minute, wait)
	assert.Equal(t, status.StateAsleep, h.sched.State())
	assert.Zero(t, src.polls)
	assert.Zero(t, h.weather.calls)

	var logged bool
	for _, e := range h.hook.AllEntries() {
		if strings.Contains(e.Message, "Next shift starts in 405 minutes") {
			logged = true
		}
	}
	assert.True(t, logged)
}

func TestStep_DailyOutputOnceAfterWindow(t *testing.T) {
	src := &fakeSource{name: "a", energy: 18300}
	h := newHarness(t, true, src, &fakeSource{name: "b", fail: true})

	h.clock.Set(at(20, 55, 0))
	h.sched.Step(context.Background())

	h.clock.Set(at(21, 0, 0))
	h.sched.Step(context.Background())

	require.Len(t, h.sink.outputs, 1, "only devices read today get a daily output")
	assert.Equal(t, outputCall{device: "a", energy: 18300}, h.sink.outputs[0])

	h.clock.Set(at(22, 0, 0))
	h.sched.Step(context.Background())
	assert.Len(t, h.sink.outputs, 1, "sent once per window")
}

func TestStep_DailyOutputDisabled(t *testing.T) {
	h := newHarness(t, false, &fakeSource{name: "a", energy: 18300})

	h.clock.Set(at(20, 55, 0))
	h.sched.Step(context.Background())
	h.clock.Set(at(21, 0, 0))
	h.sched.Step(context.Background())

	assert.Empty(t, h.sink.outputs)
}

func TestRun_IdentifiesThenStopsOnCancel(t *testing.T) {
	h := newHarness(t, false, &fakeSource{name: "a", energy: 500}, &fakeSource{name: "b", idErr: errors.New("no reply")})

	ctx, cancel := context.WithCancel(context.Background())
	var sleeps []time.Duration
	h.sched.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		if len(sleeps) == 2 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	err := h.sched.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, []string{"a"}, h.sink.announced, "failed identity reads are not announced")
	assert.True(t, h.sched.devices[0].Identity.Known())
	assert.False(t, h.sched.devices[1].Identity.Known())
	assert.Len(t, sleeps, 2)
	assert.Equal(t, 2, h.sources[0].polls)
}

func TestNew_Validation(t *testing.T) {
	src := &fakeSource{name: "a"}
	devs := []*Device{{Source: src, Target: "1"}}

	_, err := New(Config{Window: Window{Start: 5, Stop: 21}}, nil, &fakeSink{}, nil)
	assert.Error(t, err)

	_, err = New(Config{Window: Window{Start: 5, Stop: 21}}, devs, nil, nil)
	assert.Error(t, err)

	_, err = New(Config{Window: Window{Start: 21, Stop: 5}}, devs, &fakeSink{}, nil)
	assert.Error(t, err)
}

// ---- end to end: registers -> decoder -> status submission ----

type registerClient struct {
	input []uint16
}

func (c registerClient) ReadHoldingRegisters(_, qty uint16) ([]uint16, error) {
	return make([]uint16, qty), nil
}

func (c registerClient) ReadInputRegisters(_, qty uint16) ([]uint16, error) {
	out := make([]uint16, qty)
	copy(out, c.input)
	return out, nil
}

func TestEndToEnd_FirstSubmissionCarriesEnergy(t *testing.T) {
	var (
		mu    sync.Mutex
		forms []map[string]string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		mu.Lock()
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		forms = append(forms, form)
		mu.Unlock()
		_, _ = w.Write([]byte("OK 200: Added Status"))
	}))
	defer ts.Close()

	input := make([]uint16, decoder.RegisterCount)
	input[0] = 1
	input[1], input[2] = 1, 500 // 6603.6 W
	input[27] = 5               // 500 Wh

	clk := func() time.Time { return at(10, 7, 12) }
	p, err := poller.New(poller.Config{Device: "roof", Address: 1, Clock: clk},
		func(uint8) (poller.Client, func() error, error) {
			return registerClient{input: input}, func() error { return nil }, nil
		})
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	client, err := pvoutput.New(pvoutput.Config{APIKey: "secret", BaseURL: ts.URL}, pvoutput.WithLogger(logger))
	require.NoError(t, err)
	w, err := writer.New(client, nil, logger)
	require.NoError(t, err)

	s, err := New(Config{Window: Window{Start: 5, Stop: 21}, Location: time.UTC},
		[]*Device{{Source: p, Target: "12345"}}, w, nil,
		WithClock(clk), WithLogger(logger))
	require.NoError(t, err)

	s.Step(context.Background())
	s.Step(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, forms, 2)
	assert.Equal(t, "500", forms[0]["v1"])
	assert.Equal(t, "20240601", forms[0]["d"])
	assert.Equal(t, "10:07", forms[0]["t"])
	_, present := forms[1]["v1"]
	assert.False(t, present, "unchanged energy is not resent")
}
