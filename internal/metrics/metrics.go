// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tamzrod/pv-reporter/internal/decoder"
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds every reporter collector.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	reads          *prometheus.CounterVec
	reports        *prometheus.CounterVec
	reportAttempts *prometheus.CounterVec
	quotaRemaining *prometheus.GaugeVec
	pvPower        *prometheus.GaugeVec
	acPower        *prometheus.GaugeVec
	energyToday    *prometheus.GaugeVec
	inverterTemp   *prometheus.GaugeVec
	lastReading    *prometheus.GaugeVec
	weatherFresh   prometheus.Gauge
	schedulerState prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	device := []string{"device"}

	m := &Metrics{
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reporter_reads_total",
			Help: "Inverter register reads by result",
		}, []string{"device", "result"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reporter_reports_total",
			Help: "Reporting calls by endpoint and final result",
		}, []string{"target", "endpoint", "result"}),
		reportAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reporter_report_attempts_total",
			Help: "HTTP attempts made while reporting",
		}, []string{"target"}),
		quotaRemaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reporter_rate_limit_remaining",
			Help: "Remaining API requests reported by the monitoring service",
		}, []string{"target"}),
		pvPower: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reporter_pv_power_watts",
			Help: "Last PV input power (watts)",
		}, device),
		acPower: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reporter_ac_power_watts",
			Help: "Last AC output power (watts)",
		}, device),
		energyToday: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reporter_energy_today_wh",
			Help: "Energy generated today (Wh)",
		}, device),
		inverterTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reporter_inverter_temp_celsius",
			Help: "Inverter temperature (celsius)",
		}, device),
		lastReading: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reporter_last_reading_timestamp_seconds",
			Help: "Last successful reading timestamp (epoch seconds)",
		}, device),
		weatherFresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reporter_weather_fresh",
			Help: "Whether the last weather refresh succeeded (1=fresh, 0=stale)",
		}),
		schedulerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reporter_scheduler_state",
			Help: "Scheduler state (1=active, 2=asleep, 3=retry backoff)",
		}),
	}

	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.reads,
		m.reports,
		m.reportAttempts,
		m.quotaRemaining,
		m.pvPower,
		m.acPower,
		m.energyToday,
		m.inverterTemp,
		m.lastReading,
		m.weatherFresh,
		m.schedulerState,
	}
}

// ObserveRead records one read transaction and, on success, the reading.
func (m *Metrics) ObserveRead(device string, r decoder.Reading, err error) {
	if m == nil {
		return
	}
	if err != nil || !r.Valid() {
		m.reads.WithLabelValues(device, ResultError).Inc()
		return
	}
	m.reads.WithLabelValues(device, ResultOK).Inc()
	m.pvPower.WithLabelValues(device).Set(r.PVPower)
	m.acPower.WithLabelValues(device).Set(r.ACPower)
	m.energyToday.WithLabelValues(device).Set(float64(r.EnergyToday))
	m.inverterTemp.WithLabelValues(device).Set(r.InverterTemp)
	m.lastReading.WithLabelValues(device).Set(float64(r.Timestamp.Unix()))
}

// ObserveReport records the final outcome of one reporting call.
func (m *Metrics) ObserveReport(target, endpoint string, attempts int, delivered bool) {
	if m == nil {
		return
	}
	result := ResultOK
	if !delivered {
		result = ResultError
	}
	m.reports.WithLabelValues(target, endpoint, result).Inc()
	m.reportAttempts.WithLabelValues(target).Add(float64(attempts))
}

// SetQuotaRemaining records the remaining API quota for a target.
func (m *Metrics) SetQuotaRemaining(target string, remaining int) {
	if m == nil {
		return
	}
	m.quotaRemaining.WithLabelValues(target).Set(float64(remaining))
}

// SetWeatherFresh records the weather freshness flag.
func (m *Metrics) SetWeatherFresh(fresh bool) {
	if m == nil {
		return
	}
	v := 0.0
	if fresh {
		v = 1.0
	}
	m.weatherFresh.Set(v)
}

// SetSchedulerState records the numeric scheduler state.
func (m *Metrics) SetSchedulerState(state int) {
	if m == nil {
		return
	}
	m.schedulerState.Set(float64(state))
}
