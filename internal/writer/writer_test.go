// internal/writer/writer_test.go
package writer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/tamzrod/pv-reporter/internal/decoder"
	"github.com/tamzrod/pv-reporter/internal/status"
	"github.com/tamzrod/pv-reporter/internal/weather"
	"github.com/tamzrod/pv-reporter/internal/writer/pvoutput"
)

// ---- fakes ----

type fakeReporter struct {
	statuses []string
	outputs  []int64
	deliver  bool
}

func (f *fakeReporter) SendStatus(_ context.Context, target string, _ decoder.Reading, _ weather.Observation) pvoutput.Result {
	f.statuses = append(f.statuses, target)
	return pvoutput.Result{Target: target, Attempts: 1, Delivered: f.deliver}
}

func (f *fakeReporter) SendOutput(_ context.Context, target string, _ time.Time, energyWh int64, _ string) pvoutput.Result {
	f.outputs = append(f.outputs, energyWh)
	return pvoutput.Result{Target: target, Attempts: 1, Delivered: f.deliver}
}

type fakeMirror struct {
	err        error
	readings   []string
	identities []string
	health     []status.Snapshot
	closed     bool
}

func (f *fakeMirror) PublishReading(device, _ string, _ decoder.Reading) error {
	f.readings = append(f.readings, device)
	return f.err
}

func (f *fakeMirror) PublishIdentity(device string, _ decoder.DeviceIdentity) error {
	f.identities = append(f.identities, device)
	return f.err
}

func (f *fakeMirror) PublishHealth(_ string, s status.Snapshot, _ int) error {
	f.health = append(f.health, s)
	return f.err
}

func (f *fakeMirror) Close() error {
	f.closed = true
	return nil
}

// ---- tests ----

func TestDeliver_ReporterAndMirror(t *testing.T) {
	logger, _ := test.NewNullLogger()
	rep := &fakeReporter{deliver: true}
	mir := &fakeMirror{}

	w, err := New(rep, mir, logger)
	if err != nil {
		t.Fatalf("New err=%v", err)
	}

	res := w.Deliver(context.Background(), Report{Device: "roof", Target: "12345"})
	if !res.Status.Delivered || res.MirrorErr != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(rep.statuses) != 1 || rep.statuses[0] != "12345" {
		t.Fatalf("expected one status for 12345, got %v", rep.statuses)
	}
	if len(mir.readings) != 1 || mir.readings[0] != "roof" {
		t.Fatalf("expected one mirrored reading for roof, got %v", mir.readings)
	}
}

func TestDeliver_MirrorFailureDoesNotAffectStatus(t *testing.T) {
	logger, _ := test.NewNullLogger()
	rep := &fakeReporter{deliver: true}
	mir := &fakeMirror{err: errors.New("broker down")}

	w, _ := New(rep, mir, logger)
	res := w.Deliver(context.Background(), Report{Device: "roof", Target: "12345"})

	if !res.Status.Delivered {
		t.Fatalf("status must be delivered regardless of mirror")
	}
	if res.MirrorErr == nil {
		t.Fatalf("expected mirror error")
	}
}

func TestDeliver_NoMirror(t *testing.T) {
	logger, _ := test.NewNullLogger()
	rep := &fakeReporter{deliver: false}

	w, _ := New(rep, nil, logger)
	res := w.Deliver(context.Background(), Report{Device: "roof", Target: "12345"})
	if res.Status.Delivered || res.MirrorErr != nil {
		t.Fatalf("unexpected result: %+v", res)
	}

	w.Announce("roof", decoder.DeviceIdentity{})
	if w.StatusWriter("roof") != nil {
		t.Fatalf("no status writer without a mirror")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close err=%v", err)
	}
}

func TestDeliverOutputAndAnnounce(t *testing.T) {
	logger, _ := test.NewNullLogger()
	rep := &fakeReporter{deliver: true}
	mir := &fakeMirror{}

	w, _ := New(rep, mir, logger)

	res := w.DeliverOutput(context.Background(), "roof", "12345", time.Date(2024, 6, 1, 21, 0, 0, 0, time.UTC), 18342)
	if !res.Delivered || len(rep.outputs) != 1 || rep.outputs[0] != 18342 {
		t.Fatalf("unexpected output delivery: %+v %v", res, rep.outputs)
	}

	w.Announce("roof", decoder.DeviceIdentity{SerialNumber: "AB1"})
	if len(mir.identities) != 1 {
		t.Fatalf("expected identity mirrored")
	}

	if err := w.Close(); err != nil || !mir.closed {
		t.Fatalf("expected mirror closed")
	}
}

func TestNew_RequiresReporter(t *testing.T) {
	if _, err := New(nil, nil, nil); err == nil {
		t.Fatalf("expected error")
	}
}
