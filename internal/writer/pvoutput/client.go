// internal/writer/pvoutput/client.go
package pvoutput

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/tamzrod/pv-reporter/internal/clock"
	"github.com/tamzrod/pv-reporter/internal/decoder"
	"github.com/tamzrod/pv-reporter/internal/fault"
	"github.com/tamzrod/pv-reporter/internal/metrics"
	"github.com/tamzrod/pv-reporter/internal/weather"
)

// Endpoint names, also used as metric labels.
const (
	EndpointStatus = "addstatus.jsp"
	EndpointOutput = "addoutput.jsp"
)

const (
	headerAPIKey   = "X-Pvoutput-Apikey"
	headerSystemID = "X-Pvoutput-SystemId"

	// retryPause separates attempts after a network or HTTP failure.
	retryPause = 5 * time.Second
)

// Config is the client config. Zero values take the service defaults.
type Config struct {
	APIKey          string
	BaseURL         string
	Cumulative      bool
	MaxAttempts     int
	Timeout         time.Duration
	RequestsPerHour int // 0 disables the local limiter
	LowQuotaWarning int
}

// Result is the outcome of one reporting call. Err is the last attempt's
// *fault.Error when nothing was delivered.
type Result struct {
	Target    string
	Endpoint  string
	Attempts  int
	Delivered bool
	Err       error
}

// Client submits readings to the monitoring service.
// It owns the per-target record of the last energy value sent.
type Client struct {
	cfg     Config
	http    *http.Client
	sleep   clock.Sleeper
	now     clock.Now
	log     logrus.FieldLogger
	metrics *metrics.Metrics

	mu         sync.Mutex
	lastEnergy map[string]int64
	quota      map[string]RateLimitState
	limiters   map[string]*rate.Limiter
}

// Option customizes a Client.
type Option func(*Client)

func WithSleeper(s clock.Sleeper) Option { return func(c *Client) { c.sleep = s } }

func WithClock(now clock.Now) Option { return func(c *Client) { c.now = now } }

func WithLogger(l logrus.FieldLogger) Option { return func(c *Client) { c.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(c *Client) { c.metrics = m } }

func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("pvoutput: api key required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("pvoutput: base url required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &Client{
		cfg:        cfg,
		http:       &http.Client{Timeout: cfg.Timeout},
		sleep:      clock.Sleep,
		now:        time.Now,
		log:        logrus.StandardLogger(),
		lastEnergy: make(map[string]int64),
		quota:      make(map[string]RateLimitState),
		limiters:   make(map[string]*rate.Limiter),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// SendStatus submits one reading for target. It never fails the caller:
// transient errors are retried, and a reading that cannot be delivered
// within the attempt budget is dropped.
func (c *Client) SendStatus(ctx context.Context, target string, r decoder.Reading, w weather.Observation) Result {
	c.mu.Lock()
	prev := c.lastEnergy[target]
	form := BuildStatus(StatusInput{
		Reading:    r,
		Weather:    w,
		Cumulative: c.cfg.Cumulative,
		PrevEnergy: prev,
	})
	// Updated whether or not v1 was included, and whether or not the
	// submission is delivered.
	c.lastEnergy[target] = r.EnergyToday
	c.mu.Unlock()

	return c.post(ctx, target, EndpointStatus, form)
}

// SendOutput submits the end-of-day generation total for target.
func (c *Client) SendOutput(ctx context.Context, target string, date time.Time, energyWh int64, comment string) Result {
	return c.post(ctx, target, EndpointOutput, BuildOutput(date, energyWh, comment))
}

// LastReportedEnergy returns the last energy value built for target,
// 0 for a target nothing has been sent to.
func (c *Client) LastReportedEnergy(target string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastEnergy[target]
}

// Quota returns the last rate limit state seen for target.
func (c *Client) Quota(target string) (RateLimitState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.quota[target]
	return q, ok
}

func (c *Client) post(ctx context.Context, target, endpoint string, form url.Values) Result {
	res := Result{Target: target, Endpoint: endpoint}
	log := c.log.WithFields(logrus.Fields{"target": target, "endpoint": endpoint})
	limiter := c.limiter(target)

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			res.Err = err
			return res
		}

		res.Attempts = attempt
		pause, err := c.attempt(ctx, target, endpoint, form)
		if err == nil {
			res.Delivered = true
			res.Err = nil
			log.WithField("attempt", attempt).Debug("report delivered")
			c.metrics.ObserveReport(target, endpoint, res.Attempts, true)
			return res
		}

		var fe *fault.Error
		if errors.As(err, &fe) {
			fe.Attempt = attempt
		}
		res.Err = err

		if ctx.Err() != nil {
			return res
		}
		if attempt == c.cfg.MaxAttempts {
			break
		}

		log.WithError(err).WithField("retry_in", pause.String()).Warn("report attempt failed")
		if serr := c.sleep(ctx, pause); serr != nil {
			return res
		}
	}

	log.WithError(res.Err).WithField("attempts", res.Attempts).Error("report dropped")
	c.metrics.ObserveReport(target, endpoint, res.Attempts, false)
	return res
}

// attempt performs one POST. On failure it returns how long to wait before
// the next attempt.
func (c *Client) attempt(ctx context.Context, target, endpoint string, form url.Values) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/"+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return retryPause, fault.New(fault.Network, target, fmt.Errorf("pvoutput: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(headerAPIKey, c.cfg.APIKey)
	req.Header.Set(headerSystemID, target)
	req.Header.Set(HeaderRateLimit, "1")

	resp, err := c.http.Do(req)
	if err != nil {
		return retryPause, fault.New(fault.Network, target, fmt.Errorf("pvoutput: %w", err))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	c.recordQuota(target, resp.Header)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return 0, nil
	case resp.StatusCode == http.StatusForbidden:
		wait := cooldown(resp.Header, c.now(), retryPause)
		return wait, fault.New(fault.RateLimited, target,
			fmt.Errorf("pvoutput: http 403: %s", strings.TrimSpace(string(body))))
	default:
		return retryPause, fault.New(fault.Network, target,
			fmt.Errorf("pvoutput: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
}

func (c *Client) recordQuota(target string, h http.Header) {
	q, ok := parseRateLimit(h)
	if !ok {
		return
	}

	c.mu.Lock()
	c.quota[target] = q
	c.mu.Unlock()

	c.metrics.SetQuotaRemaining(target, q.Remaining)
	if q.Remaining > c.cfg.LowQuotaWarning {
		return
	}
	fields := logrus.Fields{"target": target, "remaining": q.Remaining}
	if q.Limit > 0 {
		fields["limit"] = q.Limit
	}
	if !q.Reset.IsZero() {
		fields["reset"] = q.Reset.In(c.now().Location()).Format("15:04:05")
	}
	c.log.WithFields(fields).Warn("pvoutput request quota running low")
}

// limiter returns the per-target client-side limiter. The full hourly
// quota is available as burst, refilled evenly over the hour.
func (c *Client) limiter(target string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if l, ok := c.limiters[target]; ok {
		return l
	}
	var l *rate.Limiter
	if c.cfg.RequestsPerHour <= 0 {
		l = rate.NewLimiter(rate.Inf, 0)
	} else {
		l = rate.NewLimiter(rate.Limit(float64(c.cfg.RequestsPerHour)/3600), c.cfg.RequestsPerHour)
	}
	c.limiters[target] = l
	return l
}
